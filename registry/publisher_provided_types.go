// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

// PublisherProvidedKey is the _meta key for publisher-provided data.
const PublisherProvidedKey = "io.modelcontextprotocol.registry/publisher-provided"

// DefaultNamespace is the publisher namespace used when none is configured.
const DefaultNamespace = "io.github.stacklok"

// Status values of servers and skills.
const (
	StatusActive     = "active"
	StatusDeprecated = "deprecated"
)

// PluginExtensions carries the marketplace details of an exported server or
// skill in _meta[PublisherProvidedKey][namespace][identifier].
type PluginExtensions struct {
	// Status indicates whether the entry is active or deprecated (required)
	Status string `json:"status" yaml:"status"`
	// Plugin is the name of the plugin declaring the entry (required)
	Plugin string `json:"plugin" yaml:"plugin"`
	// Marketplace is the name of the exporting marketplace
	Marketplace string `json:"marketplace,omitempty" yaml:"marketplace,omitempty"`
	// Category is the plugin's marketplace category
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	// Tags are the plugin's tags and keywords
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	// Transport is the transport declared in .mcp.json
	Transport string `json:"transport,omitempty" yaml:"transport,omitempty"`
	// Command is the raw launcher command line of stdio servers
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`
	// Skills lists the plugin's skill names
	Skills []string `json:"skills,omitempty" yaml:"skills,omitempty"`
	// Commands lists the plugin's slash command names
	Commands []string `json:"commands,omitempty" yaml:"commands,omitempty"`
	// Agents lists the plugin's agent names
	Agents []string `json:"agents,omitempty" yaml:"agents,omitempty"`
}
