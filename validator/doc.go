// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package validator checks a marketplace repository and repairs what it can.

Validation produces a Report of Findings. Each finding carries a stable code:

	M001-M004  marketplace.json (schema, duplicate, invalid and unsorted names)
	P001-P007  plugin entries and plugin.json
	S001-S003  skills
	C001       commands and agents
	X001       script permissions
	H001-H002  hooks
	E001-E004  MCP server declarations
	R###       CEL policy rules
	Z001       external check scripts

Problems in the repository are findings, not errors; an error from Validate
or Fix means the repository could not be read or written.

Fix applies every fixable finding (entry order, version and description
drift, script modes), rewrites marketplace.json and validates again.
Running Fix on an already fixed tree changes nothing.
*/
package validator
