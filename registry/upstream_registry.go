// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	upstreamv0 "github.com/modelcontextprotocol/registry/pkg/api/v0"
)

// SchemaURL identifies the schema of exported registry documents.
const SchemaURL = "https://raw.githubusercontent.com/stacklok/toolhive-marketplace/main/registry/data/upstream-registry.schema.json"

// FormatVersion is the version of the exported document format.
const FormatVersion = "1.0.0"

// UpstreamRegistry stores servers in upstream ServerJSON format with
// meta/data separation.
type UpstreamRegistry struct {
	// Schema is the JSON schema URL for validation
	Schema string `json:"$schema" yaml:"$schema"`

	// Version is the document format version
	Version string `json:"version" yaml:"version"`

	// Meta contains registry metadata
	Meta UpstreamMeta `json:"meta" yaml:"meta"`

	// Data contains the actual registry content
	Data UpstreamData `json:"data" yaml:"data"`
}

// UpstreamMeta contains metadata about the registry
type UpstreamMeta struct {
	// LastUpdated is when the registry was generated, in RFC3339 format
	LastUpdated string `json:"last_updated" yaml:"last_updated"`
	// Marketplace is the name of the exported marketplace
	Marketplace string `json:"marketplace,omitempty" yaml:"marketplace,omitempty"`
}

// UpstreamData contains the registry content.
type UpstreamData struct {
	// Servers contains the server definitions in upstream MCP format
	Servers []upstreamv0.ServerJSON `json:"servers" yaml:"servers"`

	// Groups collects the servers of each plugin category
	Groups []UpstreamGroup `json:"groups,omitempty" yaml:"groups,omitempty"`

	// Skills contains the skill definitions
	Skills []Skill `json:"skills,omitempty" yaml:"skills,omitempty"`
}

// UpstreamGroup is a named collection of related MCP servers.
type UpstreamGroup struct {
	Name        string                  `json:"name" yaml:"name"`
	Description string                  `json:"description" yaml:"description"`
	Servers     []upstreamv0.ServerJSON `json:"servers" yaml:"servers"`
}

// Server returns the server with the given upstream name.
func (r *UpstreamRegistry) Server(name string) (*upstreamv0.ServerJSON, bool) {
	for i := range r.Data.Servers {
		if r.Data.Servers[i].Name == name {
			return &r.Data.Servers[i], true
		}
	}
	return nil, false
}
