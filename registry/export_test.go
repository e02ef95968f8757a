// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/registry/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-marketplace/catalog"
	"github.com/stacklok/toolhive-marketplace/marketplace/marketplacetest"
	"github.com/stacklok/toolhive-marketplace/oci/plugins"
)

func TestExport(t *testing.T) {
	t.Parallel()

	root := marketplacetest.New(t)
	c, err := catalog.Build(root)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg, err := Export(c, Options{
		Root:            root,
		OCIRepository:   "ghcr.io/stacklok/marketplace/",
		GroupByCategory: true,
		Now:             now,
	})
	require.NoError(t, err)

	assert.Equal(t, SchemaURL, reg.Schema)
	assert.Equal(t, "2026-03-01T12:00:00Z", reg.Meta.LastUpdated)
	assert.Equal(t, "test-marketplace", reg.Meta.Marketplace)
	require.Len(t, reg.Data.Servers, 2)

	flower, ok := reg.Server("io.github.stacklok/celery-config-flower")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", flower.Version)
	require.Len(t, flower.Packages, 1)
	pkg := flower.Packages[0]
	assert.Equal(t, RegistryTypePyPI, pkg.RegistryType)
	assert.Equal(t, "celery-flower-mcp", pkg.Identifier)
	assert.Equal(t, "0.3.1", pkg.Version)
	assert.Equal(t, model.TransportTypeStdio, pkg.Transport.Type)
	require.Len(t, pkg.EnvironmentVariables, 1)
	assert.Equal(t, "CELERY_BROKER_URL", pkg.EnvironmentVariables[0].Name)
	assert.True(t, pkg.EnvironmentVariables[0].IsRequired)
	assert.False(t, pkg.EnvironmentVariables[0].IsSecret)

	require.NotNil(t, flower.Meta)
	ns, ok := flower.Meta.PublisherProvided[DefaultNamespace].(map[string]interface{})
	require.True(t, ok)
	ext, ok := ns["celery-flower-mcp"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "celery-config", ext["plugin"])
	assert.Equal(t, "task-queues", ext["category"])
	assert.Equal(t, []interface{}{"celery-setup"}, ext["skills"])

	docs, ok := reg.Server("io.github.stacklok/rag-pipeline-docs")
	require.True(t, ok)
	assert.Empty(t, docs.Packages)
	require.Len(t, docs.Remotes, 1)
	assert.Equal(t, model.TransportTypeStreamableHTTP, docs.Remotes[0].Type)
	assert.Equal(t, "https://mcp.example.com/mcp", docs.Remotes[0].URL)
	require.Len(t, docs.Remotes[0].Headers, 1)
	assert.True(t, docs.Remotes[0].Headers[0].IsSecret)

	require.Len(t, reg.Data.Groups, 2)
	assert.Equal(t, "rag", reg.Data.Groups[0].Name)
	assert.Equal(t, "task-queues", reg.Data.Groups[1].Name)

	require.Len(t, reg.Data.Skills, 2)
	skill := reg.Data.Skills[0]
	assert.Equal(t, "celery-setup", skill.Name)
	assert.Equal(t, DefaultNamespace, skill.Namespace)
	assert.Equal(t, "1.0.0", skill.Version)
	assert.Equal(t, "MIT", skill.License)
	assert.Equal(t, []string{"Read", "Write", "Bash"}, skill.AllowedTools)
	require.Len(t, skill.Packages, 1)
	assert.Equal(t, SkillPackage{
		RegistryType: "oci",
		Identifier:   "ghcr.io/stacklok/marketplace/celery-config:1.0.0",
		MediaType:    plugins.ArtifactTypePlugin,
	}, skill.Packages[0])
	require.NoError(t, skill.Validate())

	data, err := json.Marshal(reg)
	require.NoError(t, err)
	require.NoError(t, ValidateUpstreamRegistryBytes(data))
}

func TestExport_CustomNamespaceAndNoGroups(t *testing.T) {
	t.Parallel()

	c := &catalog.Catalog{
		Name: "m",
		Plugins: []catalog.Plugin{{
			Name:       "queue-tools",
			Repository: "https://github.com/acme/templates",
			MCPServers: []catalog.MCPServer{{Name: "queue-tools", Transport: "sse", URL: "https://q.example.com/sse"}},
			Skills:     []catalog.Skill{{Name: "queues", Description: "Queue setup", Dir: "/m/plugins/queue-tools/skills/queues"}},
		}},
	}
	reg, err := Export(c, Options{Namespace: "com.acme", Root: "/m"})
	require.NoError(t, err)

	require.Len(t, reg.Data.Servers, 1)
	s := reg.Data.Servers[0]
	assert.Equal(t, "com.acme/queue-tools", s.Name)
	assert.Equal(t, DefaultVersion, s.Version)
	assert.Equal(t, "queue-tools MCP server", s.Description)
	require.NotNil(t, s.Repository)
	assert.Equal(t, "github", s.Repository.Source)
	assert.Equal(t, model.TransportTypeSSE, s.Remotes[0].Type)
	assert.Empty(t, reg.Data.Groups)

	require.Len(t, reg.Data.Skills, 1)
	assert.Equal(t, []SkillPackage{{
		RegistryType: "git",
		URL:          "https://github.com/acme/templates",
		Subfolder:    "plugins/queue-tools/skills/queues",
	}}, reg.Data.Skills[0].Packages)
}

func TestStdioPackage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		server       catalog.MCPServer
		registryType string
		identifier   string
		version      string
		args         []string
		env          []string
	}{
		{
			name:         "npx scoped package",
			server:       catalog.MCPServer{Command: "npx", Args: []string{"-y", "@acme/mcp-server@2.1.0", "--port", "0"}},
			registryType: RegistryTypeNPM,
			identifier:   "@acme/mcp-server",
			version:      "2.1.0",
			args:         []string{"--port", "0"},
		},
		{
			name:         "npx unversioned",
			server:       catalog.MCPServer{Command: "npx", Args: []string{"redis-mcp"}},
			registryType: RegistryTypeNPM,
			identifier:   "redis-mcp",
		},
		{
			name:         "uvx with python flag",
			server:       catalog.MCPServer{Command: "uvx", Args: []string{"--python", "3.12", "mcp-server-qdrant==0.7.1"}},
			registryType: RegistryTypePyPI,
			identifier:   "mcp-server-qdrant",
			version:      "0.7.1",
		},
		{
			name:         "pipx run with extras",
			server:       catalog.MCPServer{Command: "/usr/local/bin/pipx", Args: []string{"run", "celery-mcp[redis]@1.0", "serve"}},
			registryType: RegistryTypePyPI,
			identifier:   "celery-mcp",
			version:      "1.0",
			args:         []string{"serve"},
		},
		{
			name: "docker run",
			server: catalog.MCPServer{
				Command: "docker",
				Args:    []string{"run", "-i", "--rm", "-e", "QDRANT_URL", "--env=API_KEY=x", "ghcr.io/acme/qdrant-mcp:1.2", "stdio"},
				Env:     []string{"QDRANT_URL"},
			},
			registryType: model.RegistryTypeOCI,
			identifier:   "ghcr.io/acme/qdrant-mcp:1.2",
			args:         []string{"stdio"},
			env:          []string{"QDRANT_URL", "API_KEY"},
		},
		{
			name:         "raw command",
			server:       catalog.MCPServer{Command: "python", Args: []string{"-m", "server"}},
			registryType: RegistryTypeCommand,
			identifier:   "python",
			args:         []string{"-m", "server"},
		},
		{
			name:         "docker without run",
			server:       catalog.MCPServer{Command: "docker", Args: []string{"compose", "up"}},
			registryType: RegistryTypeCommand,
			identifier:   "docker",
			args:         []string{"compose", "up"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pkg := stdioPackage(tt.server)
			assert.Equal(t, tt.registryType, pkg.RegistryType)
			assert.Equal(t, tt.identifier, pkg.Identifier)
			assert.Equal(t, tt.version, pkg.Version)

			var args []string
			for _, a := range pkg.PackageArguments {
				assert.Equal(t, model.ArgumentTypePositional, a.Type)
				args = append(args, a.Value)
			}
			assert.Equal(t, tt.args, args)

			var env []string
			for _, e := range pkg.EnvironmentVariables {
				env = append(env, e.Name)
			}
			assert.Equal(t, tt.env, env)
		})
	}
}

func TestServerToServerJSON_CommandExtension(t *testing.T) {
	t.Parallel()

	p := &catalog.Plugin{Name: "local-tools", Description: "Local tools"}
	s := ServerToServerJSON("m", DefaultNamespace, p, catalog.MCPServer{
		Name: "runner", Transport: "stdio", Command: "./bin/runner", Args: []string{"--stdio"},
	})

	ext := s.Meta.PublisherProvided[DefaultNamespace].(map[string]interface{})["./bin/runner"].(map[string]interface{})
	assert.Equal(t, []interface{}{"./bin/runner", "--stdio"}, ext["command"])
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncate(" short ", 10))
	long := truncate("abcdefghij klmnop", 10)
	assert.Equal(t, "abcdefg...", long)
	assert.LessOrEqual(t, len([]rune(long)), 10)
}

func TestValidateUpstreamRegistryBytes_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing meta", func(t *testing.T) {
		t.Parallel()
		err := ValidateUpstreamRegistryBytes([]byte(`{"$schema": "x", "version": "1.0.0", "data": {"servers": []}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registry schema validation failed")
	})

	t.Run("bad extensions", func(t *testing.T) {
		t.Parallel()
		doc := `{
  "$schema": "x",
  "version": "1.0.0",
  "meta": {"last_updated": "2026-03-01T12:00:00Z"},
  "data": {"servers": [{
    "name": "io.github.stacklok/a",
    "description": "A",
    "version": "1.0.0",
    "_meta": {"io.modelcontextprotocol.registry/publisher-provided": {
      "io.github.stacklok": {"a": {"status": "retired", "plugin": "a"}}
    }}
  }]}
}`
		err := ValidateUpstreamRegistryBytes([]byte(doc))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "publisher-provided extensions validation failed")
		assert.Contains(t, err.Error(), "server io.github.stacklok/a")
	})
}

func TestPluginExtensions_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, (&PluginExtensions{Status: StatusActive, Plugin: "celery-config"}).Validate())
	err := (&PluginExtensions{Status: StatusActive, Plugin: "Not Kebab"}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publisher-provided extensions schema validation failed")
}
