// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package marketplace reads and writes plugin marketplace repositories.

A marketplace is a directory whose .claude-plugin/marketplace.json lists the
plugins it distributes. Each local plugin is a directory with its own
.claude-plugin/plugin.json manifest plus optional components:

	skills/<name>/SKILL.md     skills with YAML frontmatter
	commands/*.md              slash commands
	agents/*.md                subagents
	hooks/hooks.json           lifecycle hooks
	.mcp.json                  MCP server declarations

Raw documents are validated against JSON schemas embedded in the package
before they are decoded. Fields this package does not model are preserved
when a marketplace is written back with Save.
*/
package marketplace
