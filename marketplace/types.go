// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package marketplace

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Updates to these types should be reflected in the JSON schema files located in
// marketplace/data. Raw documents are validated against those schemas before
// they are decoded, so the schemas stay the source of truth for required fields.

// Person identifies a marketplace owner or plugin author.
type Person struct {
	// Name is the display name (required)
	Name string `json:"name" yaml:"name"`
	// Email is an optional contact address
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
	// URL is an optional profile or homepage URL
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Metadata holds marketplace-wide settings.
type Metadata struct {
	// Description is a human-readable summary of the marketplace
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Version is the marketplace release version
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	// PluginRoot is prepended to bare plugin sources (e.g. "./plugins")
	PluginRoot string `json:"pluginRoot,omitempty" yaml:"pluginRoot,omitempty"`
}

// Marketplace is the index stored in .claude-plugin/marketplace.json.
type Marketplace struct {
	// Schema is an optional JSON schema URL
	Schema string `json:"$schema,omitempty"`
	// Name identifies the marketplace
	Name string `json:"name"`
	// Owner is the maintainer of the marketplace
	Owner Person `json:"owner"`
	// Metadata holds optional marketplace-wide settings
	Metadata *Metadata `json:"metadata,omitempty"`
	// Plugins lists every plugin distributed through the marketplace
	Plugins []PluginEntry `json:"plugins"`

	// Extra preserves top-level fields this package does not model
	Extra map[string]json.RawMessage `json:"-"`
}

// Plugin returns the entry with the given name.
func (m *Marketplace) Plugin(name string) (*PluginEntry, bool) {
	for i := range m.Plugins {
		if m.Plugins[i].Name == name {
			return &m.Plugins[i], true
		}
	}
	return nil, false
}

// UnmarshalJSON implements json.Unmarshaler, keeping unknown fields in Extra.
func (m *Marketplace) UnmarshalJSON(data []byte) error {
	type plain Marketplace
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extraFields(data, &p)
	if err != nil {
		return err
	}
	*m = Marketplace(p)
	m.Extra = extra
	return nil
}

// MarshalJSON implements json.Marshaler, writing Extra after the known fields.
func (m Marketplace) MarshalJSON() ([]byte, error) {
	type plain Marketplace
	return withExtraFields(plain(m), m.Extra)
}

// SourceKind enumerates where a plugin's files come from.
type SourceKind string

const (
	// SourceLocal is a directory inside the marketplace repository.
	SourceLocal SourceKind = "local"
	// SourceGitHub is a GitHub repository ("owner/repo").
	SourceGitHub SourceKind = "github"
	// SourceGit is an arbitrary git URL.
	SourceGit SourceKind = "git"
	// SourceURL is a plain URL.
	SourceURL SourceKind = "url"
)

// PluginSource is either a relative path string or an object naming a remote
// repository. Both forms round-trip unchanged.
type PluginSource struct {
	// Path is set for local sources
	Path string
	// Kind is the source type; SourceLocal when Path is set
	Kind SourceKind
	// Repo is the "owner/repo" of GitHub sources
	Repo string
	// URL is the location of git and url sources
	URL string
	// Ref is an optional branch, tag or commit
	Ref string
	// Subpath is an optional directory inside a remote source
	Subpath string
}

type remoteSource struct {
	Source string `json:"source"`
	Repo   string `json:"repo,omitempty"`
	URL    string `json:"url,omitempty"`
	Ref    string `json:"ref,omitempty"`
	Path   string `json:"path,omitempty"`
}

// LocalSource returns a local source pointing at path.
func LocalSource(path string) PluginSource {
	return PluginSource{Kind: SourceLocal, Path: path}
}

// IsLocal reports whether the plugin lives inside the marketplace repository.
func (s PluginSource) IsLocal() bool {
	return s.Kind == SourceLocal
}

// String returns a short description of the source.
func (s PluginSource) String() string {
	switch s.Kind {
	case SourceLocal:
		return s.Path
	case SourceGitHub:
		return "github:" + s.Repo
	default:
		return string(s.Kind) + ":" + s.URL
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *PluginSource) UnmarshalJSON(data []byte) error {
	var path string
	if err := json.Unmarshal(data, &path); err == nil {
		*s = LocalSource(path)
		return nil
	}
	var rs remoteSource
	if err := json.Unmarshal(data, &rs); err != nil {
		return fmt.Errorf("plugin source must be a path or an object: %w", err)
	}
	kind := SourceKind(rs.Source)
	switch kind {
	case SourceGitHub, SourceGit, SourceURL:
	default:
		return fmt.Errorf("unknown plugin source type %q", rs.Source)
	}
	*s = PluginSource{Kind: kind, Repo: rs.Repo, URL: rs.URL, Ref: rs.Ref, Subpath: rs.Path}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s PluginSource) MarshalJSON() ([]byte, error) {
	if s.Kind == SourceLocal || s.Kind == "" {
		return json.Marshal(s.Path)
	}
	return json.Marshal(remoteSource{Source: string(s.Kind), Repo: s.Repo, URL: s.URL, Ref: s.Ref, Path: s.Subpath})
}

// PluginEntry is one item of the marketplace plugin list.
type PluginEntry struct {
	// Name is the kebab-case plugin identifier
	Name string `json:"name"`
	// Source locates the plugin files
	Source PluginSource `json:"source"`
	// Description is a one-line summary shown in listings
	Description string `json:"description,omitempty"`
	// Version is the released plugin version and should match plugin.json
	Version string `json:"version,omitempty"`
	// Author is the plugin author
	Author *Person `json:"author,omitempty"`
	// Homepage is a documentation URL
	Homepage string `json:"homepage,omitempty"`
	// Repository is the source repository URL
	Repository string `json:"repository,omitempty"`
	// License is an SPDX identifier
	License string `json:"license,omitempty"`
	// Keywords aid search
	Keywords []string `json:"keywords,omitempty"`
	// Category groups plugins in listings (e.g. "task-queues", "rag")
	Category string `json:"category,omitempty"`
	// Tags are free-form labels
	Tags []string `json:"tags,omitempty"`
	// Strict requires a plugin.json when true (the default)
	Strict *bool `json:"strict,omitempty"`

	// Extra preserves fields this package does not model
	Extra map[string]json.RawMessage `json:"-"`
}

// IsStrict reports whether the plugin must ship its own plugin.json.
func (e *PluginEntry) IsStrict() bool {
	return e.Strict == nil || *e.Strict
}

// UnmarshalJSON implements json.Unmarshaler, keeping unknown fields in Extra.
func (e *PluginEntry) UnmarshalJSON(data []byte) error {
	type plain PluginEntry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extraFields(data, &p)
	if err != nil {
		return err
	}
	*e = PluginEntry(p)
	e.Extra = extra
	return nil
}

// MarshalJSON implements json.Marshaler, writing Extra after the known fields.
func (e PluginEntry) MarshalJSON() ([]byte, error) {
	type plain PluginEntry
	return withExtraFields(plain(e), e.Extra)
}

// PathList is a string or a list of strings in plugin.json.
type PathList []string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PathList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*p = PathList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected a path or a list of paths: %w", err)
	}
	*p = list
	return nil
}

// PluginManifest is the plugin's own .claude-plugin/plugin.json.
type PluginManifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
	Author      *Person  `json:"author,omitempty"`
	Homepage    string   `json:"homepage,omitempty"`
	Repository  string   `json:"repository,omitempty"`
	License     string   `json:"license,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	// Commands lists extra command files or directories, relative to the plugin root
	Commands PathList `json:"commands,omitempty"`
	// Agents lists extra agent files or directories, relative to the plugin root
	Agents PathList `json:"agents,omitempty"`
	// Hooks is a path to a hooks file or an inline hooks object
	Hooks json.RawMessage `json:"hooks,omitempty"`
	// MCPServers is a path to an MCP config file or an inline server map
	MCPServers json.RawMessage `json:"mcpServers,omitempty"`
}

// TransportType is the transport of a declared MCP server.
type TransportType string

const (
	// TransportStdio launches the server as a subprocess.
	TransportStdio TransportType = "stdio"
	// TransportSSE connects to a server-sent-events endpoint.
	TransportSSE TransportType = "sse"
	// TransportHTTP connects to a streamable HTTP endpoint.
	TransportHTTP TransportType = "http"
)

// MCPServer is one server declared in .mcp.json.
type MCPServer struct {
	Type    TransportType     `json:"type,omitempty"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Transport returns the declared transport, inferring stdio when a command is
// given and http when only a URL is.
func (s *MCPServer) Transport() TransportType {
	if s.Type != "" {
		return s.Type
	}
	if s.Command == "" && s.URL != "" {
		return TransportHTTP
	}
	return TransportStdio
}

// IsRemote reports whether the server is reached over the network.
func (s *MCPServer) IsRemote() bool {
	t := s.Transport()
	return t == TransportSSE || t == TransportHTTP
}

// MCPConfig is the content of a plugin's .mcp.json.
type MCPConfig struct {
	Servers map[string]*MCPServer `json:"mcpServers"`
}

// HookCommand is a single hook action.
type HookCommand struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

// HookMatcher binds hook commands to a tool matcher.
type HookMatcher struct {
	Matcher string        `json:"matcher,omitempty"`
	Hooks   []HookCommand `json:"hooks"`
}

// HooksConfig is the content of hooks/hooks.json, keyed by event name.
type HooksConfig struct {
	Description string                   `json:"description,omitempty"`
	Hooks       map[string][]HookMatcher `json:"hooks"`
}

// Commands returns every command hook in the config.
func (h *HooksConfig) Commands() []HookCommand {
	var cmds []HookCommand
	for _, matchers := range h.Hooks {
		for _, m := range matchers {
			for _, c := range m.Hooks {
				if c.Type == "command" && strings.TrimSpace(c.Command) != "" {
					cmds = append(cmds, c)
				}
			}
		}
	}
	return cmds
}
