// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
)

var (
	// ErrExpressionCheck is returned when a rule fails syntax or type checking.
	ErrExpressionCheck = errors.New("CEL expression check failed")

	// ErrEvaluation is returned when evaluating a rule fails.
	ErrEvaluation = errors.New("CEL expression evaluation failed")

	// ErrInvalidResult is returned when a rule does not produce a bool.
	ErrInvalidResult = errors.New("CEL expression returned invalid result type")
)

// Location is one issue in a rule expression.
type Location struct {
	Line int    `json:"line,omitempty"`
	Col  int    `json:"col,omitempty"`
	Msg  string `json:"msg,omitempty"`
}

// Details holds the structured issues of a rule expression.
type Details struct {
	Errors []Location `json:"errors,omitempty"`
	Source string     `json:"source,omitempty"`
}

// AsJSON returns the details as a JSON string.
func (d *Details) AsJSON() string {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf(`{"error": "failed to marshal JSON: %s"}`, err)
	}
	return string(b)
}

func detailsFromIssues(source string, issues *cel.Issues) Details {
	d := Details{Source: source, Errors: make([]Location, 0, len(issues.Errors()))}
	for _, err := range issues.Errors() {
		d.Errors = append(d.Errors, Location{
			Line: err.Location.Line(),
			Col:  err.Location.Column(),
			Msg:  err.Message,
		})
	}
	return d
}

// ParseError is a syntax error in a rule expression.
type ParseError struct {
	Details
	original error
}

// Error implements the error interface.
func (pe *ParseError) Error() string {
	return fmt.Sprintf("CEL parse error in expression %q: %s", pe.Source, pe.original)
}

// Unwrap returns the underlying error.
func (pe *ParseError) Unwrap() error {
	return pe.original
}

// CheckError is a type checking error in a rule expression.
type CheckError struct {
	Details
	original error
}

// Error implements the error interface.
func (ce *CheckError) Error() string {
	return fmt.Sprintf("CEL check error in expression %q: %s", ce.Source, ce.original)
}

// Unwrap returns the underlying error.
func (ce *CheckError) Unwrap() error {
	return ce.original
}

func newParseError(source string, issues *cel.Issues) error {
	return &ParseError{
		Details:  detailsFromIssues(source, issues),
		original: fmt.Errorf("%w: %w", ErrExpressionCheck, issues.Err()),
	}
}

func newCheckError(source string, issues *cel.Issues) error {
	return &CheckError{
		Details:  detailsFromIssues(source, issues),
		original: fmt.Errorf("%w: %w", ErrExpressionCheck, issues.Err()),
	}
}
