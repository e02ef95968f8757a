// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package http validates the HTTP pieces of MCP server declarations found in a
plugin's .mcp.json: header names and values, and remote server URLs.

Values may contain ${VAR} placeholders (optionally ${VAR:-default}) that the
client expands at runtime; placeholders are accepted wherever a literal would
be, and [Placeholders] lists the variable names so callers can check they are
documented.
*/
package http
