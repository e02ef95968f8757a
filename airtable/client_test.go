// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package airtable

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-marketplace/env"
	"github.com/stacklok/toolhive-marketplace/env/mocks"
	"github.com/stacklok/toolhive-marketplace/httperr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New("key", "appBASE", "Plugins",
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithRateLimit(0, 0),
		WithRetry(2, time.Millisecond),
	)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresSettings(t *testing.T) {
	t.Parallel()

	_, err := New("", "app", "t")
	require.ErrorContains(t, err, "API key")
	_, err = New("k", " ", "t")
	require.ErrorContains(t, err, "base ID")
	_, err = New("k", "app", "")
	require.ErrorContains(t, err, "table")
}

func TestNewFromEnv(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	reader := mocks.NewMockReader(ctrl)
	reader.EXPECT().Getenv(APIKeyEnv).Return("")

	_, err := NewFromEnv(reader, "app", "Plugins")
	var missing *env.MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{APIKeyEnv}, missing.Keys)

	reader.EXPECT().Getenv(APIKeyEnv).Return("pat123")
	c, err := NewFromEnv(reader, "app", "Plugins")
	require.NoError(t, err)
	assert.Equal(t, "pat123", c.apiKey)
}

func TestList_FollowsOffsets(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/appBASE/Plugins", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "Grid", r.URL.Query().Get("view"))
		assert.Equal(t, []string{"Name", "Hash"}, r.URL.Query()["fields[]"])

		switch r.URL.Query().Get("offset") {
		case "":
			fmt.Fprint(w, `{"records": [{"id": "rec1", "fields": {"Name": "a"}}], "offset": "itr1"}`)
		case "itr1":
			fmt.Fprint(w, `{"records": [{"id": "rec2", "fields": {"Name": "b"}}]}`)
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	})

	records, err := c.List(t.Context(), ListOptions{View: "Grid", Fields: []string{"Name", "Hash"}})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec1", records[0].ID)
	assert.Equal(t, "b", records[1].Fields["Name"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestCreate_Batches(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		sizes []int
		next  int
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req writeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Typecast)

		mu.Lock()
		defer mu.Unlock()
		sizes = append(sizes, len(req.Records))
		for i := range req.Records {
			next++
			req.Records[i].ID = fmt.Sprintf("rec%d", next)
		}
		_ = json.NewEncoder(w).Encode(writeResponse{Records: req.Records})
	})

	fields := make([]Fields, 23)
	for i := range fields {
		fields[i] = Fields{"Name": fmt.Sprintf("plugin-%d", i)}
	}
	records, err := c.Create(t.Context(), fields)
	require.NoError(t, err)
	require.Len(t, records, 23)
	assert.Equal(t, "rec23", records[22].ID)
	assert.Equal(t, []int{10, 10, 3}, sizes)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var req writeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(writeResponse{Records: req.Records})
	})

	_, err := c.Update(t.Context(), []Record{{Fields: Fields{"Name": "x"}}})
	require.ErrorContains(t, err, "requires record IDs")

	records, err := c.Update(t.Context(), []Record{{ID: "rec1", Fields: Fields{"Name": "x"}}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec1", records[0].ID)
}

func TestDelete_Batches(t *testing.T) {
	t.Parallel()

	var batches [][]string
	var mu sync.Mutex
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		ids := r.URL.Query()["records[]"]
		mu.Lock()
		batches = append(batches, ids)
		mu.Unlock()

		var resp deleteResponse
		for _, id := range ids {
			resp.Records = append(resp.Records, struct {
				ID      string `json:"id"`
				Deleted bool   `json:"deleted"`
			}{ID: id, Deleted: true})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("rec%d", i)
	}
	deleted, err := c.Delete(t.Context(), ids)
	require.NoError(t, err)
	assert.Equal(t, ids, deleted)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 10)
	assert.Len(t, batches[1], 2)
}

func TestErrors_MapStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"object error", http.StatusUnprocessableEntity, `{"error": {"type": "INVALID_VALUE_FOR_COLUMN", "message": "Field \"Version\" cannot accept the provided value"}}`, "airtable: 422 INVALID_VALUE_FOR_COLUMN: Field"},
		{"string error", http.StatusNotFound, `{"error": "NOT_FOUND"}`, "airtable: 404 NOT_FOUND"},
		{"no body", http.StatusForbidden, ``, "airtable: 403 Forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := c.List(t.Context(), ListOptions{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, tt.status, httperr.Code(err))
			assert.False(t, httperr.IsRetryable(err))
			assert.Equal(t, int32(1), calls.Load(), "client errors are not retried")

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestRetry(t *testing.T) {
	t.Parallel()

	t.Run("recovers after rate limiting", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, `{"records": []}`)
		})

		records, err := c.List(t.Context(), ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := c.List(t.Context(), ListOptions{})
		require.Error(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, httperr.Code(err))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not resend creates after server errors", func(t *testing.T) {
		t.Parallel()
		var (
			calls     atomic.Int32
			committed atomic.Int32
		)
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var req writeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			committed.Add(int32(len(req.Records)))
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_ = json.NewEncoder(w).Encode(writeResponse{Records: req.Records})
		})

		_, err := c.Create(t.Context(), []Fields{{"Name": "celery-config"}})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadGateway, httperr.Code(err))
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, int32(1), committed.Load())
	})

	t.Run("resends creates rejected by rate limiting", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			var req writeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			req.Records[0].ID = "rec1"
			_ = json.NewEncoder(w).Encode(writeResponse{Records: req.Records})
		})

		records, err := c.Create(t.Context(), []Fields{{"Name": "celery-config"}})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "rec1", records[0].ID)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("resends updates after server errors", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			var req writeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			_ = json.NewEncoder(w).Encode(writeResponse{Records: req.Records})
		})

		_, err := c.Update(t.Context(), []Record{{ID: "rec1", Fields: Fields{"Name": "celery-config"}}})
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"records": []}`)
	}))
	t.Cleanup(srv.Close)

	c, err := New("key", "app", "t", WithBaseURL(srv.URL), WithRateLimit(20, 1))
	require.NoError(t, err)

	start := time.Now()
	for range 3 {
		_, err := c.List(t.Context(), ListOptions{})
		require.NoError(t, err)
	}
	// Three requests at 20/s with a burst of one need at least two intervals.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
