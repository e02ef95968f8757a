// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(WithOutput(&buf))
	logger.Info("hello", "plugin", "rag-pipeline")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "rag-pipeline", entry["plugin"])

	ts, ok := entry["time"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339, ts)
	assert.NoError(t, err, "timestamp should be RFC3339")
}

func TestNew_TextFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(WithOutput(&buf), WithFormat(FormatText)).Info("text message")

	assert.Contains(t, buf.String(), "msg=\"text message\"")
	assert.NotContains(t, buf.String(), "{")
}

func TestNew_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var lvl slog.LevelVar
	lvl.Set(slog.LevelWarn)
	logger := New(WithOutput(&buf), WithLevel(&lvl))

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	lvl.Set(slog.LevelDebug)
	logger.Debug("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_Component(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(WithOutput(&buf), WithComponent("webhooks")).Info("x")
	assert.Contains(t, buf.String(), `"component":"webhooks"`)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{"TEXT", FormatText, false},
		{"yaml", FormatJSON, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	assert.False(t, Discard().Enabled(t.Context(), slog.LevelError))
}
