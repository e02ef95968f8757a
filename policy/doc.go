// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package policy evaluates marketplace-specific rules written in CEL against
plugin facts.

Each rule is an assertion over a single variable, plugin, that must hold for
every plugin in the marketplace:

	rules, err := policy.CompileRules([]policy.Rule{{
	    ID:      "R001",
	    Expr:    `plugin.license != ""`,
	    Message: "plugins must declare a license",
	}})

	violations, err := rules.Evaluate(policy.Plugin{Name: "celery-config"})

Rules are compiled once with length and runtime cost limits and are safe for
concurrent evaluation. Compilation failures are returned as *ParseError or
*CheckError with line and column information.
*/
package policy
