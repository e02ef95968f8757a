// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/stacklok/toolhive-marketplace/env"
	"github.com/stacklok/toolhive-marketplace/httperr"
)

// APIKeyEnv is the environment variable holding the Airtable token.
const APIKeyEnv = "AIRTABLE_API_KEY"

const (
	// DefaultBaseURL is the Airtable REST endpoint.
	DefaultBaseURL = "https://api.airtable.com/v0"
	// DefaultRequestsPerSecond is the per-base Airtable rate limit.
	DefaultRequestsPerSecond = 5
	// MaxBatchSize is the maximum number of records per write request.
	MaxBatchSize = 10
	// DefaultMaxRetries is how often a retryable request is repeated.
	DefaultMaxRetries = 3

	maxErrorBody = 64 * 1024
)

// Fields are the cell values of a record, keyed by field name.
type Fields map[string]any

// Record is one table row.
type Record struct {
	ID          string `json:"id,omitempty"`
	CreatedTime string `json:"createdTime,omitempty"`
	Fields      Fields `json:"fields"`
}

// APIError is a non-2xx Airtable response.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.Type != "" && e.Message != "":
		return fmt.Sprintf("airtable: %d %s: %s", e.StatusCode, e.Type, e.Message)
	case e.Type != "":
		return fmt.Sprintf("airtable: %d %s", e.StatusCode, e.Type)
	default:
		return fmt.Sprintf("airtable: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
}

// Client accesses one Airtable table.
type Client struct {
	baseURL    string
	apiKey     string
	baseID     string
	table      string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the request rate. A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, burst))
	}
}

// WithRetry sets the retry count and the initial backoff of retryable requests.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max(0, maxRetries)
		c.backoff = backoff
	}
}

// New creates a client for table in base baseID.
func New(apiKey, baseID, table string, opts ...Option) (*Client, error) {
	switch {
	case strings.TrimSpace(apiKey) == "":
		return nil, errors.New("airtable: API key is required")
	case strings.TrimSpace(baseID) == "":
		return nil, errors.New("airtable: base ID is required")
	case strings.TrimSpace(table) == "":
		return nil, errors.New("airtable: table is required")
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		baseID:     baseID,
		table:      table,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(DefaultRequestsPerSecond, 1),
		maxRetries: DefaultMaxRetries,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromEnv creates a client using the API key from AIRTABLE_API_KEY. It
// fails immediately when the variable is unset.
func NewFromEnv(reader env.Reader, baseID, table string, opts ...Option) (*Client, error) {
	values, err := env.Require(reader, APIKeyEnv)
	if err != nil {
		return nil, err
	}
	return New(values[0], baseID, table, opts...)
}

// ListOptions filter a List call.
type ListOptions struct {
	View            string
	FilterByFormula string
	Fields          []string
	// PageSize is at most 100; zero lets Airtable choose
	PageSize int
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// List returns every record of the table, following pagination offsets.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	q := url.Values{}
	if opts.View != "" {
		q.Set("view", opts.View)
	}
	if opts.FilterByFormula != "" {
		q.Set("filterByFormula", opts.FilterByFormula)
	}
	for _, f := range opts.Fields {
		q.Add("fields[]", f)
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(min(opts.PageSize, 100)))
	}

	var records []Record
	for {
		var page listResponse
		if err := c.do(ctx, http.MethodGet, q, nil, &page); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		q.Set("offset", page.Offset)
	}
}

type writeRequest struct {
	Records  []Record `json:"records"`
	Typecast bool     `json:"typecast,omitempty"`
}

type writeResponse struct {
	Records []Record `json:"records"`
}

// Create inserts records and returns them with their IDs.
func (c *Client) Create(ctx context.Context, fields []Fields) ([]Record, error) {
	records := make([]Record, 0, len(fields))
	for _, f := range fields {
		records = append(records, Record{Fields: f})
	}
	return c.write(ctx, http.MethodPost, records)
}

// Update patches the given fields of existing records.
func (c *Client) Update(ctx context.Context, records []Record) ([]Record, error) {
	for _, r := range records {
		if r.ID == "" {
			return nil, errors.New("airtable: update requires record IDs")
		}
	}
	return c.write(ctx, http.MethodPatch, records)
}

func (c *Client) write(ctx context.Context, method string, records []Record) ([]Record, error) {
	out := make([]Record, 0, len(records))
	for batch := range slices.Chunk(records, MaxBatchSize) {
		body := writeRequest{Records: make([]Record, len(batch)), Typecast: true}
		for i, r := range batch {
			body.Records[i] = Record{ID: r.ID, Fields: r.Fields}
		}
		var resp writeResponse
		if err := c.do(ctx, method, nil, body, &resp); err != nil {
			return out, err
		}
		out = append(out, resp.Records...)
	}
	return out, nil
}

type deleteResponse struct {
	Records []struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	} `json:"records"`
}

// Delete removes records by ID and returns the IDs Airtable confirmed.
func (c *Client) Delete(ctx context.Context, ids []string) ([]string, error) {
	deleted := make([]string, 0, len(ids))
	for batch := range slices.Chunk(ids, MaxBatchSize) {
		q := url.Values{}
		for _, id := range batch {
			q.Add("records[]", id)
		}
		var resp deleteResponse
		if err := c.do(ctx, http.MethodDelete, q, nil, &resp); err != nil {
			return deleted, err
		}
		for _, r := range resp.Records {
			if r.Deleted {
				deleted = append(deleted, r.ID)
			}
		}
	}
	return deleted, nil
}

func (c *Client) tableURL() string {
	return c.baseURL + "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(c.table)
}

func (c *Client) do(ctx context.Context, method string, q url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("airtable: encoding request: %w", err)
		}
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = c.doOnce(ctx, method, q, payload, out)
		if err == nil || !retryable(method, err) || attempt >= c.maxRetries {
			return err
		}
		wait := c.backoff << attempt
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(wait):
		}
	}
}

// retryable reports whether a failed request may be sent again. Creates are
// not idempotent: a 5xx or transport error can follow a committed write, so
// they are only retried when Airtable rejected them with 429.
func retryable(method string, err error) bool {
	if method == http.MethodPost {
		return httperr.Code(err) == http.StatusTooManyRequests
	}
	return httperr.IsRetryable(err)
}

func (c *Client) doOnce(ctx context.Context, method string, q url.Values, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("airtable: waiting for rate limiter: %w", err)
	}

	u := c.tableURL()
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("airtable: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return httperr.WithCode(fmt.Errorf("airtable: %s %s: %w", method, c.table, err), http.StatusBadGateway)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httperr.WithCode(parseError(resp), resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("airtable: decoding response: %w", err)
	}
	return nil
}

// parseError reads both error shapes Airtable returns:
// {"error": {"type": ..., "message": ...}} and {"error": "NOT_FOUND"}.
func parseError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(data, &envelope) != nil || len(envelope.Error) == 0 {
		return apiErr
	}
	var detail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if json.Unmarshal(envelope.Error, &detail) == nil {
		apiErr.Type, apiErr.Message = detail.Type, detail.Message
		return apiErr
	}
	_ = json.Unmarshal(envelope.Error, &apiErr.Type)
	return apiErr
}
