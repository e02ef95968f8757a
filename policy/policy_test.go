// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-marketplace/policy"
)

func testPlugin() policy.Plugin {
	return policy.Plugin{
		Name:     "celery-config",
		Version:  "1.0.0",
		Category: "task-queues",
		License:  "MIT",
		Keywords: []string{"celery", "redis"},
		Skills:   []string{"celery-setup"},
		MCPServers: map[string]policy.MCPServer{
			"flower": {Transport: "stdio", Command: "uvx", Env: []string{"CELERY_BROKER_URL"}},
		},
	}
}

func TestEngine_Compile_ValidExpressions(t *testing.T) {
	t.Parallel()

	engine := policy.NewEngine()

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "string equality", expr: `plugin.license == "MIT"`, want: true},
		{name: "list membership", expr: `"redis" in plugin.keywords`, want: true},
		{name: "size check", expr: `size(plugin.skills) > 0`, want: true},
		{name: "map macro", expr: `plugin.mcpServers.all(k, plugin.mcpServers[k].transport != "sse")`, want: true},
		{name: "nested list", expr: `plugin.mcpServers.exists(k, "CELERY_BROKER_URL" in plugin.mcpServers[k].env)`, want: true},
		{name: "negative result", expr: `plugin.hasHooks`, want: false},
		{name: "string function", expr: `plugin.name.startsWith("celery-")`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			prog, err := engine.Compile(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, prog.Source())

			got, err := prog.Eval(testPlugin().Map())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_Compile_Errors(t *testing.T) {
	t.Parallel()

	engine := policy.NewEngine()

	_, err := engine.Compile(`plugin.name ==`)
	var parseErr *policy.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.NotEmpty(t, parseErr.Errors)
	assert.True(t, errors.Is(err, policy.ErrExpressionCheck))
	assert.Contains(t, parseErr.AsJSON(), `"source":"plugin.name =="`)

	_, err = engine.Compile(`unknown == "x"`)
	var checkErr *policy.CheckError
	require.True(t, errors.As(err, &checkErr))

	_, err = engine.Compile(`"not a bool"`)
	assert.ErrorIs(t, err, policy.ErrExpressionCheck)

	short := policy.NewEngine().WithMaxExpressionLength(5)
	_, err = short.Compile(`plugin.hasHooks`)
	assert.ErrorIs(t, err, policy.ErrExpressionCheck)
	assert.Error(t, short.Check(`plugin.hasHooks`))
}

func TestEngine_Eval_NonBoolDyn(t *testing.T) {
	t.Parallel()

	prog, err := policy.NewEngine().Compile(`plugin.name`)
	require.NoError(t, err)
	_, err = prog.Eval(testPlugin().Map())
	assert.ErrorIs(t, err, policy.ErrInvalidResult)
}

func TestCompileRules(t *testing.T) {
	t.Parallel()

	rs, err := policy.CompileRules([]policy.Rule{
		{Expr: `plugin.license != ""`, Message: "license required"},
		{ID: "R010", Expr: `plugin.category in ["rag", "web"]`, Severity: policy.SeverityWarning},
		{Expr: `plugin.description != ""`},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, rs.Len())

	violations := rs.Evaluate(testPlugin())
	require.Len(t, violations, 2)
	assert.Equal(t, "R010", violations[0].Rule.ID)
	assert.Equal(t, policy.SeverityWarning, violations[0].Rule.Severity)
	assert.Equal(t, "celery-config", violations[0].Plugin)
	assert.Equal(t, "R003", violations[1].Rule.ID)
	assert.Equal(t, policy.SeverityError, violations[1].Rule.Severity)
	assert.True(t, strings.HasPrefix(violations[1].Message, "policy R003 failed"))
}

func TestCompileRules_Errors(t *testing.T) {
	t.Parallel()

	_, err := policy.CompileRules([]policy.Rule{
		{ID: "X1", Expr: `true`},
		{ID: "R002", Expr: `true`},
		{ID: "R002", Expr: `true`},
		{ID: "R004", Expr: `true`, Severity: "fatal"},
		{ID: "R005", Expr: `plugin.`},
	})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `id "X1" must match R###`)
	assert.Contains(t, msg, "rule R002: duplicate id")
	assert.Contains(t, msg, `unknown severity "fatal"`)
	assert.Contains(t, msg, "rule R005")
}

func TestRuleSet_Nil(t *testing.T) {
	t.Parallel()

	var rs *policy.RuleSet
	assert.Equal(t, 0, rs.Len())
	assert.Nil(t, rs.Evaluate(testPlugin()))
}
