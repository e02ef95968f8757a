// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package catalog flattens a marketplace into a searchable list of plugins
// with their components. Building a catalog is lenient: components that fail
// to parse are left out, since reporting them is the validator's job.
package catalog

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"

	"github.com/stacklok/toolhive-marketplace/marketplace"
)

// Catalog is the flattened view of a marketplace.
type Catalog struct {
	Name        string   `json:"name"`
	Owner       string   `json:"owner"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Plugins     []Plugin `json:"plugins"`
}

// Plugin is a marketplace entry merged with its plugin.json and components.
type Plugin struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Version     string      `json:"version,omitempty"`
	Category    string      `json:"category,omitempty"`
	Author      string      `json:"author,omitempty"`
	License     string      `json:"license,omitempty"`
	Homepage    string      `json:"homepage,omitempty"`
	Repository  string      `json:"repository,omitempty"`
	Source      string      `json:"source"`
	Keywords    []string    `json:"keywords,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Skills      []Skill     `json:"skills,omitempty"`
	Commands    []Component `json:"commands,omitempty"`
	Agents      []Component `json:"agents,omitempty"`
	MCPServers  []MCPServer `json:"mcpServers,omitempty"`
	HasHooks    bool        `json:"hasHooks,omitempty"`

	// Dir is the local plugin directory; empty for remote sources
	Dir string `json:"-"`
}

// Skill summarizes a SKILL.md.
type Skill struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Version      string            `json:"version,omitempty"`
	License      string            `json:"license,omitempty"`
	AllowedTools []string          `json:"allowedTools,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	// Dir is the local skill directory
	Dir string `json:"-"`
}

// Component summarizes a command or agent.
type Component struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// MCPServer summarizes a declared MCP server. Only environment variable and
// header names are kept; values may carry secrets or placeholders.
type MCPServer struct {
	Name      string   `json:"name"`
	Transport string   `json:"transport"`
	Command   string   `json:"command,omitempty"`
	Args      []string `json:"args,omitempty"`
	URL       string   `json:"url,omitempty"`
	Env       []string `json:"env,omitempty"`
	Headers   []string `json:"headers,omitempty"`
}

// Build loads the marketplace under root and collects every plugin's components.
func Build(root string) (*Catalog, error) {
	m, err := marketplace.Load(root)
	if err != nil {
		return nil, err
	}
	return FromMarketplace(root, m), nil
}

// FromMarketplace builds a catalog from an already loaded marketplace.
func FromMarketplace(root string, m *marketplace.Marketplace) *Catalog {
	c := &Catalog{
		Name:    m.Name,
		Owner:   m.Owner.Name,
		Plugins: make([]Plugin, 0, len(m.Plugins)),
	}
	if m.Metadata != nil {
		c.Description = m.Metadata.Description
		c.Version = m.Metadata.Version
	}
	for i := range m.Plugins {
		c.Plugins = append(c.Plugins, buildPlugin(root, m, &m.Plugins[i]))
	}
	slices.SortStableFunc(c.Plugins, func(a, b Plugin) int { return cmp.Compare(a.Name, b.Name) })
	return c
}

func buildPlugin(root string, m *marketplace.Marketplace, e *marketplace.PluginEntry) Plugin {
	p := Plugin{
		Name:        e.Name,
		Description: e.Description,
		Version:     e.Version,
		Category:    e.Category,
		License:     e.License,
		Homepage:    e.Homepage,
		Repository:  e.Repository,
		Source:      e.Source.String(),
		Keywords:    e.Keywords,
		Tags:        e.Tags,
	}
	if e.Author != nil {
		p.Author = e.Author.Name
	}

	dir, err := m.PluginDir(root, e)
	if err != nil {
		return p
	}
	p.Dir = dir

	pm, _ := marketplace.ReadManifest(dir)
	if pm != nil {
		p.Description = cmp.Or(p.Description, pm.Description)
		p.Version = cmp.Or(p.Version, pm.Version)
		p.License = cmp.Or(p.License, pm.License)
		p.Homepage = cmp.Or(p.Homepage, pm.Homepage)
		p.Repository = cmp.Or(p.Repository, pm.Repository)
		if p.Author == "" && pm.Author != nil {
			p.Author = pm.Author.Name
		}
		if len(p.Keywords) == 0 {
			p.Keywords = pm.Keywords
		}
	}

	if skills, err := marketplace.ReadSkills(dir); err == nil {
		for _, s := range skills {
			p.Skills = append(p.Skills, Skill{
				Name:         s.Frontmatter.Name,
				Description:  s.Frontmatter.Description,
				Version:      s.Frontmatter.Version,
				License:      s.Frontmatter.License,
				AllowedTools: s.Frontmatter.AllowedTools,
				Metadata:     s.Frontmatter.Metadata,
				Dir:          s.Dir,
			})
		}
	}
	p.Commands = components(dir, pm, marketplace.ListCommands)
	p.Agents = components(dir, pm, marketplace.ListAgents)

	if cfg, err := marketplace.ReadMCPConfig(dir, pm); err == nil && cfg != nil {
		p.MCPServers = servers(cfg)
	}
	if hooks, err := marketplace.ReadHooks(dir, pm); err == nil && hooks != nil {
		p.HasHooks = len(hooks.Hooks) > 0
	}
	return p
}

func components(
	dir string,
	pm *marketplace.PluginManifest,
	list func(string, *marketplace.PluginManifest) ([]string, error),
) []Component {
	files, err := list(dir, pm)
	if err != nil {
		return nil
	}
	var out []Component
	for _, rel := range files {
		mc, err := marketplace.ReadMarkdownComponent(dir, rel)
		if err != nil {
			continue
		}
		c := Component{Name: mc.Name}
		if mc.Frontmatter != nil {
			c.Description = mc.Frontmatter.Description
		}
		out = append(out, c)
	}
	return out
}

func servers(cfg *marketplace.MCPConfig) []MCPServer {
	out := make([]MCPServer, 0, len(cfg.Servers))
	for name, s := range cfg.Servers {
		if s == nil {
			continue
		}
		out = append(out, MCPServer{
			Name:      name,
			Transport: string(s.Transport()),
			Command:   s.Command,
			Args:      s.Args,
			URL:       s.URL,
			Env:       sortedKeys(s.Env),
			Headers:   sortedKeys(s.Headers),
		})
	}
	slices.SortFunc(out, func(a, b MCPServer) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get returns the plugin with the given name.
func (c *Catalog) Get(name string) (*Plugin, bool) {
	for i := range c.Plugins {
		if c.Plugins[i].Name == name {
			return &c.Plugins[i], true
		}
	}
	return nil, false
}

// Filter returns the plugins in category, or all plugins when category is empty.
func (c *Catalog) Filter(category string) []Plugin {
	if category == "" {
		return c.Plugins
	}
	var out []Plugin
	for _, p := range c.Plugins {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out
}

// Categories returns the distinct plugin categories in order.
func (c *Catalog) Categories() []string {
	var out []string
	for _, p := range c.Plugins {
		if p.Category != "" {
			out = append(out, p.Category)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Hash returns a stable SHA-256 of the plugin's catalog representation.
func (p *Plugin) Hash() string {
	// Plugin has no maps other than skill metadata, which encoding/json sorts.
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
