// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package validator

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/stacklok/toolhive-marketplace/marketplace"
	"github.com/stacklok/toolhive-marketplace/validation/name"
)

var marketplacePath = path.Join(marketplace.ManifestDir, marketplace.MarketplaceFile)

// checkMarketplace runs the checks that look only at marketplace.json.
func checkMarketplace(m *marketplace.Marketplace) []Finding {
	var findings []Finding

	seen := make(map[string]int, len(m.Plugins))
	for i, entry := range m.Plugins {
		if first, dup := seen[entry.Name]; dup {
			findings = append(findings, Finding{
				Code:     CodeDuplicatePlugin,
				Severity: SeverityError,
				Plugin:   entry.Name,
				Path:     marketplacePath,
				Message:  fmt.Sprintf("plugin %q is listed at positions %d and %d", entry.Name, first+1, i+1),
			})
			continue
		}
		seen[entry.Name] = i

		if err := name.ValidatePlugin(entry.Name); err != nil {
			findings = append(findings, Finding{
				Code:     CodeInvalidPluginName,
				Severity: SeverityError,
				Plugin:   entry.Name,
				Path:     marketplacePath,
				Message:  err.Error(),
			})
		}
	}

	if !pluginsSorted(m.Plugins) {
		findings = append(findings, Finding{
			Code:     CodeUnsortedPlugins,
			Severity: SeverityWarning,
			Path:     marketplacePath,
			Message:  "plugin entries are not sorted by name",
			Fixable:  true,
		})
	}
	return findings
}

func comparePlugins(a, b marketplace.PluginEntry) int {
	return strings.Compare(a.Name, b.Name)
}

func pluginsSorted(entries []marketplace.PluginEntry) bool {
	return slices.IsSortedFunc(entries, comparePlugins)
}
