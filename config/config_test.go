// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-marketplace/policy"
	"github.com/stacklok/toolhive-marketplace/registry"
	"github.com/stacklok/toolhive-marketplace/validator"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	root := t.TempDir()
	t.Chdir(root)

	cfg, err := Load(Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Root)
	assert.Empty(t, cfg.File)
	assert.Equal(t, validator.DefaultConcurrency, cfg.Validate.Concurrency)
	assert.Equal(t, "Plugins", cfg.Airtable.Table)
	assert.InDelta(t, 5, cfg.Airtable.RequestsPerSecond, 0)
	assert.Equal(t, registry.DefaultNamespace, cfg.Export.Namespace)
	assert.True(t, cfg.Export.GroupByCategory)
	assert.Equal(t, ":8080", cfg.Serve.Addr)
	assert.Equal(t, "json", cfg.Serve.LogFormat)
}

func TestLoad_FileAndEnv(t *testing.T) {
	root := t.TempDir()
	t.Chdir(t.TempDir())
	writeFile(t, filepath.Join(root, ".marketplace.yaml"), `
validate:
  concurrency: 2
  rules:
    - id: R001
      expr: plugin.license != ""
      message: plugins must declare a license
      severity: warning
  scripts:
    - name: shellcheck
      command: [shellcheck, -x]
      timeout: 30s
airtable:
  base_id: appFromFile
  table: Catalog
export:
  group_by_category: false
`)
	t.Setenv("MARKETPLACE_AIRTABLE_BASE_ID", "appFromEnv")
	t.Setenv("MARKETPLACE_SERVE_ADDR", "127.0.0.1:9000")

	cfg, err := Load(Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".marketplace.yaml"), cfg.File)
	assert.Equal(t, 2, cfg.Validate.Concurrency)
	assert.Equal(t, "appFromEnv", cfg.Airtable.BaseID)
	assert.Equal(t, "Catalog", cfg.Airtable.Table)
	assert.Equal(t, "127.0.0.1:9000", cfg.Serve.Addr)
	assert.False(t, cfg.Export.GroupByCategory)

	require.Len(t, cfg.Validate.Rules, 1)
	assert.Equal(t, policy.SeverityWarning, cfg.Validate.Rules[0].Severity)
	require.Len(t, cfg.Validate.Scripts, 1)
	assert.Equal(t, []string{"shellcheck", "-x"}, cfg.Validate.Scripts[0].Command)
	assert.Equal(t, 30*time.Second, cfg.Validate.Scripts[0].Timeout)

	opts, err := cfg.ValidatorOptions()
	require.NoError(t, err)
	assert.Equal(t, root, opts.Root)
	assert.Equal(t, 1, opts.Rules.Len())
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "serve:\n  branch: release\n")

	cfg, err := Load(Options{File: path})
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Serve.Branch)
	assert.Equal(t, ".", cfg.Root)

	_, err = Load(Options{File: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "concurrency", content: "validate:\n  concurrency: 0\n", want: "validate.concurrency"},
		{name: "log format", content: "serve:\n  log_format: xml\n", want: "serve.log_format"},
		{name: "script without command", content: "validate:\n  scripts:\n    - name: empty\n", want: "command is required"},
		{name: "bad rule", content: "validate:\n  rules:\n    - id: R001\n      expr: 'plugin.name +'\n      message: broken\n", want: "validate.rules"},
		{name: "bad yaml", content: "validate: [", want: "reading config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			t.Chdir(root)
			writeFile(t, filepath.Join(root, ".marketplace.yaml"), tt.content)
			_, err := Load(Options{Root: root})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "MARKETPLACE_TEST_DOTENV_VALUE"
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DotEnvFile), key+"=from-file\n")
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	require.NoError(t, LoadDotEnv(t.TempDir(), dir))
	assert.Equal(t, "from-file", os.Getenv(key))

	// Existing variables win over the file.
	t.Setenv(key, "from-env")
	require.NoError(t, LoadDotEnv(dir))
	assert.Equal(t, "from-env", os.Getenv(key))
}
