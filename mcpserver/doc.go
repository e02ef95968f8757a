// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package mcpserver exposes a marketplace catalog over the Model Context
// Protocol. The catalog is rebuilt from disk on every request, so edits to
// the marketplace are visible without restarting the server.
//
// Tools:
//
//   - list_plugins: plugins, optionally filtered by category
//   - search_plugins: plugins matching a free-text query
//   - get_plugin: one plugin with all of its components
//   - validate_plugin: validation findings of one plugin
//
// The catalog document is also served as the marketplace://catalog resource.
package mcpserver
