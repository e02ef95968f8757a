// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package marketplacetest builds marketplace trees for tests.
package marketplacetest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	// CeleryPlugin is the name of the first fixture plugin.
	CeleryPlugin = "celery-config"
	// RAGPlugin is the name of the second fixture plugin.
	RAGPlugin = "rag-pipeline"
)

// MarketplaceJSON is the marketplace.json of the fixture returned by New.
const MarketplaceJSON = `{
  "name": "test-marketplace",
  "owner": {
    "name": "Test Owner",
    "email": "owner@example.com"
  },
  "metadata": {
    "description": "Integration templates",
    "version": "1.0.0"
  },
  "plugins": [
    {
      "name": "celery-config",
      "source": "./plugins/celery-config",
      "description": "Celery task queue templates",
      "version": "1.0.0",
      "author": {
        "name": "Test Owner"
      },
      "license": "MIT",
      "keywords": [
        "celery",
        "redis"
      ],
      "category": "task-queues"
    },
    {
      "name": "rag-pipeline",
      "source": "./plugins/rag-pipeline",
      "description": "Retrieval augmented generation pipeline templates",
      "version": "0.2.0",
      "keywords": [
        "rag",
        "embeddings"
      ],
      "category": "rag"
    }
  ]
}
`

// Files returns the file set of the fixture marketplace, keyed by
// slash-separated path. Callers may modify the map before writing it.
func Files() map[string]string {
	return map[string]string{
		".claude-plugin/marketplace.json": MarketplaceJSON,

		"plugins/celery-config/.claude-plugin/plugin.json": `{
  "name": "celery-config",
  "version": "1.0.0",
  "description": "Celery task queue templates",
  "license": "MIT"
}
`,
		"plugins/celery-config/skills/celery-setup/SKILL.md": `---
name: celery-setup
description: Configure Celery workers with a Redis broker and result backend.
allowed-tools: Read, Write, Bash
---
# Celery setup

Set CELERY_BROKER_URL before starting workers.
`,
		"plugins/celery-config/skills/celery-setup/scripts/check.sh": "#!/bin/sh\ntest -n \"$CELERY_BROKER_URL\"\n",
		"plugins/celery-config/commands/celery-worker.md": `---
description: Start a Celery worker for the current project
argument-hint: <queue>
---
Run celery -A app worker -Q $ARGUMENTS.
`,
		"plugins/celery-config/hooks/hooks.json": `{
  "hooks": {
    "PostToolUse": [
      {
        "matcher": "Write",
        "hooks": [
          {"type": "command", "command": "${CLAUDE_PLUGIN_ROOT}/scripts/lint.sh"}
        ]
      }
    ]
  }
}
`,
		"plugins/celery-config/scripts/lint.sh": "#!/bin/sh\nexit 0\n",
		"plugins/celery-config/.mcp.json": `{
  "mcpServers": {
    "flower": {
      "command": "uvx",
      "args": ["celery-flower-mcp@0.3.1"],
      "env": {"CELERY_BROKER_URL": "${CELERY_BROKER_URL}"}
    }
  }
}
`,

		"plugins/rag-pipeline/.claude-plugin/plugin.json": `{
  "name": "rag-pipeline",
  "version": "0.2.0",
  "description": "Retrieval augmented generation pipeline templates"
}
`,
		"plugins/rag-pipeline/skills/vector-search/SKILL.md": `---
name: vector-search
description: Wire a vector store client into a retrieval pipeline.
---
# Vector search
`,
		"plugins/rag-pipeline/agents/rag-reviewer.md": `---
description: Reviews retrieval pipelines for chunking and ranking issues
tools: Read, Grep
---
You review RAG code.
`,
		"plugins/rag-pipeline/.mcp.json": `{
  "mcpServers": {
    "docs": {
      "type": "http",
      "url": "https://mcp.example.com/mcp",
      "headers": {"Authorization": "Bearer ${DOCS_TOKEN}"}
    }
  }
}
`,
	}
}

// New writes the fixture marketplace into a temporary directory and returns its root.
func New(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	Write(t, root, Files())
	return root
}

// Write writes files under root. Files ending in .sh are made executable.
func Write(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("creating directory for %s: %v", rel, err)
		}
		mode := os.FileMode(0o644)
		if strings.HasSuffix(rel, ".sh") {
			mode = 0o755
		}
		if err := os.WriteFile(path, []byte(content), mode); err != nil {
			t.Fatalf("writing %s: %v", rel, err)
		}
		if err := os.Chmod(path, mode); err != nil {
			t.Fatalf("chmod %s: %v", rel, err)
		}
	}
}
