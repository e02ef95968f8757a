// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package syncer

import (
	"strings"

	"github.com/stacklok/toolhive-marketplace/airtable"
	"github.com/stacklok/toolhive-marketplace/catalog"
)

// Airtable column names.
const (
	FieldName        = "Name"
	FieldDescription = "Description"
	FieldVersion     = "Version"
	FieldCategory    = "Category"
	FieldAuthor      = "Author"
	FieldLicense     = "License"
	FieldHomepage    = "Homepage"
	FieldRepository  = "Repository"
	FieldSource      = "Source"
	FieldKeywords    = "Keywords"
	FieldTags        = "Tags"
	FieldSkills      = "Skills"
	FieldCommands    = "Commands"
	FieldAgents      = "Agents"
	FieldMCPServers  = "MCP Servers"
	FieldHooks       = "Has Hooks"
	FieldHash        = "Content Hash"
)

// Fields returns the Airtable row of p, including its content hash.
func Fields(p *catalog.Plugin) airtable.Fields {
	f := airtable.Fields{
		FieldName:        p.Name,
		FieldDescription: p.Description,
		FieldVersion:     p.Version,
		FieldCategory:    p.Category,
		FieldAuthor:      p.Author,
		FieldLicense:     p.License,
		FieldHomepage:    p.Homepage,
		FieldRepository:  p.Repository,
		FieldSource:      p.Source,
		FieldKeywords:    strings.Join(p.Keywords, ", "),
		FieldTags:        strings.Join(p.Tags, ", "),
		FieldSkills:      joinNames(p.Skills, func(s catalog.Skill) string { return s.Name }),
		FieldCommands:    joinNames(p.Commands, componentName),
		FieldAgents:      joinNames(p.Agents, componentName),
		FieldMCPServers:  joinNames(p.MCPServers, func(s catalog.MCPServer) string { return s.Name }),
		FieldHooks:       p.HasHooks,
		FieldHash:        p.Hash(),
	}
	return f
}

func componentName(c catalog.Component) string { return c.Name }

func joinNames[T any](items []T, name func(T) string) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, name(it))
	}
	return strings.Join(names, ", ")
}
