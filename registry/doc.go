// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package registry exports a marketplace catalog in the upstream MCP registry
format.

Every MCP server declared by a plugin becomes an upstream ServerJSON and
every skill becomes a registry Skill. Launcher commands are mapped to
packages where the registry type can be inferred:

	npx <pkg>                 npm package
	uvx <pkg>, pipx run <pkg> pypi package
	docker run <image>        oci package
	anything else             stdio package carrying the raw command

Remote servers (http and sse) become remotes. Marketplace details that have
no upstream field are stored under the publisher-provided _meta key, keyed
first by publisher namespace and then by package identifier or remote URL.
*/
package registry
