// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"fmt"
	"net/url"
	"regexp"

	"golang.org/x/net/http/httpguts"
)

const (
	maxHeaderNameLength  = 256
	maxHeaderValueLength = 8192
)

var placeholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-[^}]*)?\}`)

// ValidateHeaderName validates that a string is a valid HTTP header name per RFC 7230.
func ValidateHeaderName(name string) error {
	if name == "" {
		return fmt.Errorf("header name cannot be empty")
	}
	if len(name) > maxHeaderNameLength {
		return fmt.Errorf("header name exceeds maximum length of %d bytes", maxHeaderNameLength)
	}
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("invalid HTTP header name %q: contains invalid characters", name)
	}
	return nil
}

// ValidateHeaderValue validates that a header value has no control characters.
func ValidateHeaderValue(value string) error {
	if value == "" {
		return fmt.Errorf("header value cannot be empty")
	}
	if len(value) > maxHeaderValueLength {
		return fmt.Errorf("header value exceeds maximum length of %d bytes", maxHeaderValueLength)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("invalid HTTP header value: contains control characters")
	}
	return nil
}

// ValidateRemoteURL validates the URL of a remote (sse or http) MCP server.
// It must be absolute http(s) with a host and no fragment.
func ValidateRemoteURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("server URL cannot be empty")
	}

	parsed, err := url.Parse(placeholderRegex.ReplaceAllString(raw, "placeholder"))
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("server URL must use http or https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("server URL must include a host: %s", raw)
	}
	if parsed.Fragment != "" {
		return fmt.Errorf("server URL must not contain fragments (#): %s", raw)
	}
	return nil
}

// Placeholders returns the variable names referenced by ${VAR} placeholders in s,
// in order of appearance and without duplicates.
func Placeholders(s string) []string {
	matches := placeholderRegex.FindAllStringSubmatch(s, -1)
	seen := make(map[string]bool, len(matches))
	var names []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
