// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

const (
	// DefaultMaxExpressionLength is the maximum allowed length for a rule expression.
	DefaultMaxExpressionLength = 10000

	// DefaultCostLimit is the runtime cost limit for a single rule evaluation.
	DefaultCostLimit = 1000000

	// PluginVar is the variable rules are evaluated against.
	PluginVar = "plugin"
)

// Engine compiles rule expressions against the plugin variable.
// It is safe for concurrent use from multiple goroutines.
type Engine struct {
	once sync.Once
	env  *cel.Env
	err  error

	maxExpressionLength int
	costLimit           uint64
}

// Program is a compiled rule expression.
type Program struct {
	source  string
	program cel.Program
}

// Source returns the original expression.
func (p *Program) Source() string {
	return p.source
}

// NewEngine returns an engine with the default limits.
func NewEngine() *Engine {
	return &Engine{
		maxExpressionLength: DefaultMaxExpressionLength,
		costLimit:           DefaultCostLimit,
	}
}

// WithMaxExpressionLength sets the maximum allowed expression length.
func (e *Engine) WithMaxExpressionLength(maxLen int) *Engine {
	e.maxExpressionLength = maxLen
	return e
}

// WithCostLimit sets the runtime cost limit for evaluation.
func (e *Engine) WithCostLimit(limit uint64) *Engine {
	e.costLimit = limit
	return e
}

func (e *Engine) environment() (*cel.Env, error) {
	e.once.Do(func() {
		e.env, e.err = cel.NewEnv(
			cel.Variable(PluginVar, cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return e.env, e.err
}

// Compile parses, type-checks and plans expr. Expressions must produce a bool.
func (e *Engine) Compile(expr string) (*Program, error) {
	if len(expr) > e.maxExpressionLength {
		return nil, fmt.Errorf("%w: expression length %d exceeds maximum of %d",
			ErrExpressionCheck, len(expr), e.maxExpressionLength)
	}

	env, err := e.environment()
	if err != nil {
		return nil, fmt.Errorf("failed to get CEL environment: %w", err)
	}

	parsed, issues := env.Parse(expr)
	if issues.Err() != nil {
		return nil, newParseError(expr, issues)
	}

	checked, issues := env.Check(parsed)
	if issues.Err() != nil {
		return nil, newCheckError(expr, issues)
	}
	if t := checked.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: rule %q must evaluate to bool, got %s", ErrExpressionCheck, expr, t.String())
	}

	program, err := env.Program(checked, cel.CostLimit(e.costLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program for %q: %w", expr, err)
	}

	return &Program{source: expr, program: program}, nil
}

// Check reports whether expr would compile, without planning a program.
func (e *Engine) Check(expr string) error {
	_, err := e.Compile(expr)
	return err
}

// Eval evaluates the program against plugin and returns the boolean result.
func (p *Program) Eval(plugin map[string]any) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{PluginVar: plugin})
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrEvaluation, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: expected bool, got %T", ErrInvalidResult, out.Value())
	}
	return result, nil
}
