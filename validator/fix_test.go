// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package validator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-marketplace/marketplace"
	"github.com/stacklok/toolhive-marketplace/marketplace/marketplacetest"
)

const unsortedMarketplace = `{
  "name": "test-marketplace",
  "owner": {"name": "Test Owner"},
  "plugins": [
    {
      "name": "rag-pipeline",
      "source": "./plugins/rag-pipeline",
      "version": "0.1.0",
      "x-featured": true
    },
    {
      "name": "celery-config",
      "source": "./plugins/celery-config",
      "description": "Celery task queue templates",
      "version": "1.0.0"
    }
  ]
}
`

func TestFix(t *testing.T) {
	t.Parallel()

	files := marketplacetest.Files()
	files[".claude-plugin/marketplace.json"] = unsortedMarketplace
	files[celeryDir+"scripts/setup.py"] = "#!/usr/bin/env python3\nprint('ok')\n"
	root := t.TempDir()
	marketplacetest.Write(t, root, files)

	v := New(Options{Root: root})
	before, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{CodeUnsortedPlugins, CodeVersionDrift, CodeDescriptionMissing, CodeScriptNotExecutable},
		codes(before))

	report, err := v.Fix(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Findings)
	assert.Len(t, report.Fixed, 4)

	m, err := marketplace.Load(root)
	require.NoError(t, err)
	require.Len(t, m.Plugins, 2)
	assert.Equal(t, marketplacetest.CeleryPlugin, m.Plugins[0].Name)
	rag := m.Plugins[1]
	assert.Equal(t, "0.2.0", rag.Version)
	assert.Equal(t, "Retrieval augmented generation pipeline templates", rag.Description)
	assert.JSONEq(t, "true", string(rag.Extra["x-featured"]))

	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(celeryDir+"scripts/setup.py")))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	// A second run finds nothing to do and leaves the file untouched.
	written, err := os.ReadFile(marketplace.MarketplacePath(root))
	require.NoError(t, err)
	again, err := v.Fix(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again.Fixed)
	assert.Empty(t, again.Findings)
	rewritten, err := os.ReadFile(marketplace.MarketplacePath(root))
	require.NoError(t, err)
	assert.Equal(t, string(written), string(rewritten))
}

func TestFix_UnparsableMarketplace(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	marketplacetest.Write(t, root, map[string]string{".claude-plugin/marketplace.json": "{"})

	report, err := New(Options{Root: root}).Fix(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, report.Findings)
	assert.Equal(t, CodeMarketplaceSchema, report.Findings[0].Code)
	assert.Empty(t, report.Fixed)
}

func TestValidate_ChangedSince(t *testing.T) {
	t.Parallel()

	files := marketplacetest.Files()
	files[celeryDir+"commands/celery-beat.md"] = "no frontmatter"
	root := t.TempDir()
	marketplacetest.Write(t, root, files)

	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	w, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, w.AddGlob("."))
	_, err = w.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)

	skill := filepath.Join(root, filepath.FromSlash(ragDir+"skills/vector-search/SKILL.md"))
	require.NoError(t, os.WriteFile(skill, []byte("---\nname: vector-search\n---\n"), 0o644))

	report, err := New(Options{Root: root, ChangedSince: "HEAD"}).Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Plugins)
	for _, f := range report.Findings {
		assert.Equal(t, marketplacetest.RAGPlugin, f.Plugin, "unexpected finding %s", f)
	}
	assert.NotEmpty(t, report.ByCode(CodeSkillFrontmatter))

	full, err := New(Options{Root: root}).Validate(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, full.ByCode(CodeComponentNoDesc))

	_, err = New(Options{Root: t.TempDir(), ChangedSince: "HEAD"}).Validate(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "marketplace.json not found"))
}
