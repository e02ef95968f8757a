// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy

// MCPServer describes a declared MCP server to rules.
type MCPServer struct {
	Transport string
	Command   string
	URL       string
	Env       []string
}

// Plugin is the set of facts rules can inspect.
type Plugin struct {
	Name        string
	Version     string
	Description string
	Category    string
	License     string
	Author      string
	Keywords    []string
	Tags        []string
	Skills      []string
	Commands    []string
	Agents      []string
	HasHooks    bool
	MCPServers  map[string]MCPServer
}

// Map returns the CEL representation of p. Every key is always present so
// rules can use field selection without has() guards.
func (p Plugin) Map() map[string]any {
	servers := make(map[string]any, len(p.MCPServers))
	for name, s := range p.MCPServers {
		servers[name] = map[string]any{
			"transport": s.Transport,
			"command":   s.Command,
			"url":       s.URL,
			"env":       stringsOrEmpty(s.Env),
		}
	}
	return map[string]any{
		"name":        p.Name,
		"version":     p.Version,
		"description": p.Description,
		"category":    p.Category,
		"license":     p.License,
		"author":      p.Author,
		"keywords":    stringsOrEmpty(p.Keywords),
		"tags":        stringsOrEmpty(p.Tags),
		"skills":      stringsOrEmpty(p.Skills),
		"commands":    stringsOrEmpty(p.Commands),
		"agents":      stringsOrEmpty(p.Agents),
		"hasHooks":    p.HasHooks,
		"mcpServers":  servers,
	}
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
