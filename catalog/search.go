// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"cmp"
	"slices"
	"strings"
)

// Search returns the plugins matching every whitespace-separated term of
// query, best matches first. A term matches a plugin when it is a substring
// of its name, description, category, keywords, tags or skill names and
// descriptions. Name matches rank above keyword matches, which rank above
// matches elsewhere.
func (c *Catalog) Search(query string) []Plugin {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		plugin Plugin
		score  int
	}
	var hits []scored
	for _, p := range c.Plugins {
		total := 0
		for _, term := range terms {
			s := termScore(&p, term)
			if s == 0 {
				total = 0
				break
			}
			total += s
		}
		if total > 0 {
			hits = append(hits, scored{plugin: p, score: total})
		}
	}

	slices.SortStableFunc(hits, func(a, b scored) int {
		return cmp.Or(cmp.Compare(b.score, a.score), cmp.Compare(a.plugin.Name, b.plugin.Name))
	})
	out := make([]Plugin, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.plugin)
	}
	return out
}

func termScore(p *Plugin, term string) int {
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), term) }
	anyContains := func(list []string) bool { return slices.ContainsFunc(list, contains) }

	switch {
	case strings.EqualFold(p.Name, term):
		return 10
	case contains(p.Name):
		return 8
	case anyContains(p.Keywords) || anyContains(p.Tags) || contains(p.Category):
		return 5
	case contains(p.Description):
		return 3
	}
	for _, s := range p.Skills {
		if contains(s.Name) || contains(s.Description) {
			return 2
		}
	}
	for _, cm := range p.Commands {
		if contains(cm.Name) {
			return 1
		}
	}
	return 0
}
