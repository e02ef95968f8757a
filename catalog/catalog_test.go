// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-marketplace/marketplace"
	"github.com/stacklok/toolhive-marketplace/marketplace/marketplacetest"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Build(marketplacetest.New(t))
	require.NoError(t, err)
	return c
}

func TestBuild(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)
	assert.Equal(t, "test-marketplace", c.Name)
	assert.Equal(t, "Test Owner", c.Owner)
	assert.Equal(t, "1.0.0", c.Version)
	require.Len(t, c.Plugins, 2)

	celery, ok := c.Get(marketplacetest.CeleryPlugin)
	require.True(t, ok)
	assert.Equal(t, "./plugins/celery-config", celery.Source)
	assert.NotEmpty(t, celery.Dir)
	require.Len(t, celery.Skills, 1)
	assert.Equal(t, "celery-setup", celery.Skills[0].Name)
	assert.Equal(t, []Component{{Name: "celery-worker", Description: "Start a Celery worker for the current project"}}, celery.Commands)
	assert.True(t, celery.HasHooks)
	require.Len(t, celery.MCPServers, 1)
	assert.Equal(t, MCPServer{
		Name:      "flower",
		Transport: "stdio",
		Command:   "uvx",
		Args:      []string{"celery-flower-mcp@0.3.1"},
		Env:       []string{"CELERY_BROKER_URL"},
	}, celery.MCPServers[0])

	rag, ok := c.Get(marketplacetest.RAGPlugin)
	require.True(t, ok)
	require.Len(t, rag.Agents, 1)
	assert.Equal(t, []string{"Authorization"}, rag.MCPServers[0].Headers)
	assert.False(t, rag.HasHooks)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestFromMarketplace_RemoteAndManifestFallbacks(t *testing.T) {
	t.Parallel()

	root := marketplacetest.New(t)
	m := &marketplace.Marketplace{
		Name:  "mixed",
		Owner: marketplace.Person{Name: "o"},
		Plugins: []marketplace.PluginEntry{
			{Name: "remote", Source: marketplace.PluginSource{Kind: marketplace.SourceGitHub, Repo: "acme/remote"}},
			{Name: "rag-pipeline", Source: marketplace.LocalSource("./plugins/rag-pipeline")},
		},
	}
	c := FromMarketplace(root, m)
	require.Len(t, c.Plugins, 2)

	rag := c.Plugins[0]
	assert.Equal(t, "rag-pipeline", rag.Name)
	assert.Equal(t, "0.2.0", rag.Version)
	assert.Equal(t, "Retrieval augmented generation pipeline templates", rag.Description)

	remote := c.Plugins[1]
	assert.Equal(t, "github:acme/remote", remote.Source)
	assert.Empty(t, remote.Dir)
	assert.Empty(t, remote.Skills)
}

func TestFilterAndCategories(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)
	assert.Equal(t, []string{"rag", "task-queues"}, c.Categories())
	assert.Len(t, c.Filter(""), 2)
	rag := c.Filter("RAG")
	require.Len(t, rag, 1)
	assert.Equal(t, marketplacetest.RAGPlugin, rag[0].Name)
	assert.Empty(t, c.Filter("web"))
}

func TestSearch(t *testing.T) {
	t.Parallel()

	c := testCatalog(t)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "name substring", query: "celery", want: []string{"celery-config"}},
		{name: "keyword", query: "embeddings", want: []string{"rag-pipeline"}},
		{name: "skill description", query: "vector", want: []string{"rag-pipeline"}},
		{name: "all terms must match", query: "celery vector", want: nil},
		{name: "case insensitive", query: "REDIS", want: []string{"celery-config"}},
		{name: "matches both, ranked", query: "templates", want: []string{"celery-config", "rag-pipeline"}},
		{name: "empty query", query: "  ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got []string
			for _, p := range c.Search(tt.query) {
				got = append(got, p.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearch_RanksNameAboveDescription(t *testing.T) {
	t.Parallel()

	c := &Catalog{Plugins: []Plugin{
		{Name: "alpha", Description: "works with redis"},
		{Name: "redis-cache"},
	}}
	got := c.Search("redis")
	require.Len(t, got, 2)
	assert.Equal(t, "redis-cache", got[0].Name)
}

func TestPlugin_Hash(t *testing.T) {
	t.Parallel()

	a := Plugin{Name: "x", Version: "1.0.0"}
	b := Plugin{Name: "x", Version: "1.0.0", Dir: "/somewhere"}
	c := Plugin{Name: "x", Version: "1.0.1"}

	assert.Len(t, a.Hash(), 64)
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}
