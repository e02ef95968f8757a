// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package httperr provides error types that carry HTTP status codes, both for
// errors returned by remote APIs and for errors rendered by our own handlers.
package httperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// CodedError wraps an error with an HTTP status code.
type CodedError struct {
	err  error
	code int
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	return e.err.Error()
}

// Unwrap returns the underlying error for errors.Is() and errors.As() compatibility.
func (e *CodedError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *CodedError) HTTPCode() int {
	return e.code
}

// WithCode wraps an error with an HTTP status code. If err is nil, WithCode returns nil.
func WithCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &CodedError{err: err, code: code}
}

// New creates a new error with the given message and HTTP status code.
func New(message string, code int) error {
	return &CodedError{err: errors.New(message), code: code}
}

// Code extracts the HTTP status code from an error chain.
// It returns 200 for nil and 500 when no CodedError is present.
func Code(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether the status carried by err is worth retrying:
// 429 and any 5xx.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	code := Code(err)
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// errorBody is the JSON shape of error responses.
type errorBody struct {
	Error string `json:"error"`
}

// Write renders err as a JSON error response using its status code.
// Messages of 5xx errors are replaced with the status text so internal
// details do not leak to callers.
func Write(w http.ResponseWriter, err error) {
	code := Code(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		msg = http.StatusText(code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}
