// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-marketplace/catalog"
	"github.com/stacklok/toolhive-marketplace/marketplace/marketplacetest"
	"github.com/stacklok/toolhive-marketplace/validator"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, resultText(t, res))
	var v T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &v))
	return v
}

func TestListPlugins(t *testing.T) {
	t.Parallel()
	s := New(Options{Root: marketplacetest.New(t)})
	ctx := context.Background()

	res, err := s.handleList(ctx, callRequest(ToolListPlugins, nil))
	require.NoError(t, err)
	list := decode[PluginList](t, res)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, marketplacetest.CeleryPlugin, list.Plugins[0].Name)
	assert.Equal(t, []string{"celery-setup"}, list.Plugins[0].Skills)
	assert.Equal(t, []string{"flower"}, list.Plugins[0].MCPServers)

	res, err = s.handleList(ctx, callRequest(ToolListPlugins, map[string]any{"category": "rag"}))
	require.NoError(t, err)
	list = decode[PluginList](t, res)
	assert.Equal(t, "rag", list.Category)
	require.Len(t, list.Plugins, 1)
	assert.Equal(t, marketplacetest.RAGPlugin, list.Plugins[0].Name)

	res, err = s.handleList(ctx, callRequest(ToolListPlugins, map[string]any{"category": "nope"}))
	require.NoError(t, err)
	list = decode[PluginList](t, res)
	assert.Zero(t, list.Count)
	assert.NotNil(t, list.Plugins)
}

func TestSearchPlugins(t *testing.T) {
	t.Parallel()
	s := New(Options{Root: marketplacetest.New(t)})

	res, err := s.handleSearch(context.Background(), callRequest(ToolSearchPlugins, map[string]any{"query": "redis"}))
	require.NoError(t, err)
	list := decode[PluginList](t, res)
	assert.Equal(t, "redis", list.Query)
	require.NotEmpty(t, list.Plugins)
	assert.Equal(t, marketplacetest.CeleryPlugin, list.Plugins[0].Name)

	res, err = s.handleSearch(context.Background(), callRequest(ToolSearchPlugins, nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestGetPlugin(t *testing.T) {
	t.Parallel()
	s := New(Options{Root: marketplacetest.New(t)})

	res, err := s.handleGet(context.Background(), callRequest(ToolGetPlugin, map[string]any{"name": marketplacetest.RAGPlugin}))
	require.NoError(t, err)
	p := decode[catalog.Plugin](t, res)
	assert.Equal(t, "0.2.0", p.Version)
	require.Len(t, p.Agents, 1)
	assert.Equal(t, "rag-reviewer", p.Agents[0].Name)
	require.Len(t, p.MCPServers, 1)
	assert.Equal(t, []string{"Authorization"}, p.MCPServers[0].Headers)

	res, err = s.handleGet(context.Background(), callRequest(ToolGetPlugin, map[string]any{"name": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), `plugin "missing" not found`)
}

func TestValidatePlugin(t *testing.T) {
	t.Parallel()
	root := marketplacetest.New(t)
	require.NoError(t, os.Chmod(filepath.Join(root, "plugins", marketplacetest.CeleryPlugin, "scripts", "lint.sh"), 0o644))
	s := New(Options{Root: root})
	ctx := context.Background()

	res, err := s.handleValidate(ctx, callRequest(ToolValidatePlugin, map[string]any{"name": marketplacetest.CeleryPlugin}))
	require.NoError(t, err)
	out := decode[ValidationResult](t, res)
	assert.Equal(t, marketplacetest.CeleryPlugin, out.Plugin)
	require.NotEmpty(t, out.Findings)
	assert.Equal(t, validator.CodeScriptNotExecutable, out.Findings[0].Code)
	for _, f := range out.Findings {
		assert.Equal(t, marketplacetest.CeleryPlugin, f.Plugin)
	}

	res, err = s.handleValidate(ctx, callRequest(ToolValidatePlugin, map[string]any{"name": marketplacetest.RAGPlugin}))
	require.NoError(t, err)
	out = decode[ValidationResult](t, res)
	assert.True(t, out.Valid)

	res, err = s.handleValidate(ctx, callRequest(ToolValidatePlugin, map[string]any{"name": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestValidatePlugin_ChecksOnlyRequestedPlugin(t *testing.T) {
	t.Parallel()
	log := filepath.Join(t.TempDir(), "ran.log")
	s := New(Options{
		Root: marketplacetest.New(t),
		Validator: validator.Options{
			Scripts: []validator.Script{
				{Name: "record", Command: []string{"sh", "-c", fmt.Sprintf(`basename "$1" >> %q`, log), "sh"}},
			},
		},
	})

	res, err := s.handleValidate(context.Background(), callRequest(ToolValidatePlugin, map[string]any{"name": marketplacetest.RAGPlugin}))
	require.NoError(t, err)
	out := decode[ValidationResult](t, res)
	assert.True(t, out.Valid)

	ran, err := os.ReadFile(log)
	require.NoError(t, err)
	assert.Equal(t, "rag-pipeline\n", string(ran))
}

func TestCatalogResource(t *testing.T) {
	t.Parallel()
	s := New(Options{Root: marketplacetest.New(t)})

	var req mcp.ReadResourceRequest
	req.Params.URI = CatalogURI
	contents, err := s.handleCatalogResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", text.MIMEType)

	var c catalog.Catalog
	require.NoError(t, json.Unmarshal([]byte(text.Text), &c))
	assert.Equal(t, "test-marketplace", c.Name)
	assert.Len(t, c.Plugins, 2)
}

func TestLoadFailureIsToolError(t *testing.T) {
	t.Parallel()
	s := New(Options{Root: t.TempDir()})

	res, err := s.handleList(context.Background(), callRequest(ToolListPlugins, nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
