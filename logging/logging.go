// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format represents the log output format.
type Format int

const (
	// FormatJSON produces JSON output via [log/slog.JSONHandler]. This is the default.
	FormatJSON Format = iota

	// FormatText produces human-readable output via [log/slog.TextHandler].
	FormatText
)

// ParseFormat converts a configuration value ("json" or "text") to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format %q (expected json or text)", s)
	}
}

type config struct {
	format    Format
	level     slog.Leveler
	output    io.Writer
	component string
}

// Option configures the logger created by [New].
type Option func(*config)

// WithFormat sets the output format.
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithLevel sets the minimum log level. Accepts a [*log/slog.LevelVar] for
// runtime changes.
func WithLevel(l slog.Leveler) Option {
	return func(c *config) {
		c.level = l
	}
}

// WithOutput sets the destination writer. The default is [os.Stderr].
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		c.output = w
	}
}

// WithComponent attaches a "component" attribute to every record.
func WithComponent(name string) Option {
	return func(c *config) {
		c.component = name
	}
}

// New creates a [*log/slog.Logger] for the marketplace server components.
//
// Defaults: JSON, INFO, stderr, RFC3339 timestamps.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		format: FormatJSON,
		level:  slog.LevelInfo,
		output: os.Stderr,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       cfg.level,
		ReplaceAttr: replaceAttr,
	}

	var handler slog.Handler
	switch cfg.format {
	case FormatText:
		handler = slog.NewTextHandler(cfg.output, handlerOpts)
	default:
		handler = slog.NewJSONHandler(cfg.output, handlerOpts)
	}

	logger := slog.New(handler)
	if cfg.component != "" {
		logger = logger.With("component", cfg.component)
	}
	return logger
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.Format(time.RFC3339))
		}
	}
	return a
}
