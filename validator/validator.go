// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package validator

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/toolhive-marketplace/gitdiff"
	"github.com/stacklok/toolhive-marketplace/marketplace"
	"github.com/stacklok/toolhive-marketplace/policy"
)

// DefaultConcurrency is the number of plugins checked in parallel.
const DefaultConcurrency = 8

// Options configures a Validator.
type Options struct {
	// Root is the marketplace repository root
	Root string
	// Concurrency bounds parallel plugin checks; DefaultConcurrency when zero
	Concurrency int
	// ChangedSince limits plugin checks to plugins changed since this git revision
	ChangedSince string
	// Plugins limits plugin checks and scripts to the named plugins; all when empty
	Plugins []string
	// Rules are evaluated against every plugin
	Rules *policy.RuleSet
	// Scripts are external checks run once per plugin
	Scripts []Script
}

// Validator checks a marketplace repository.
type Validator struct {
	opts Options
}

// New returns a validator for opts.
func New(opts Options) *Validator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	for i := range opts.Scripts {
		if opts.Scripts[i].Timeout <= 0 {
			opts.Scripts[i].Timeout = DefaultScriptTimeout
		}
	}
	return &Validator{opts: opts}
}

// Validate runs every check and returns the sorted report.
func (v *Validator) Validate(ctx context.Context) (*Report, error) {
	report, _, err := v.run(ctx)
	return report, err
}

// state is what a validation run learned about the tree, kept for Fix.
type state struct {
	marketplace *marketplace.Marketplace
}

func (v *Validator) run(ctx context.Context) (*Report, *state, error) {
	raw, err := marketplace.ReadFile(v.opts.Root)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{Findings: []Finding{}}
	mp := filepath.ToSlash(filepath.Join(marketplace.ManifestDir, marketplace.MarketplaceFile))
	if err := marketplace.ValidateMarketplaceBytes(raw); err != nil {
		report.add(Finding{Code: CodeMarketplaceSchema, Severity: SeverityError, Path: mp, Message: err.Error()})
	}
	m, err := marketplace.Parse(raw)
	if err != nil {
		report.add(Finding{Code: CodeMarketplaceSchema, Severity: SeverityError, Path: mp, Message: err.Error()})
		report.Sort()
		return report, nil, nil
	}

	report.Findings = append(report.Findings, checkMarketplace(m)...)

	var changes *gitdiff.ChangeSet
	if v.opts.ChangedSince != "" {
		changes, err = gitdiff.Changed(v.opts.Root, v.opts.ChangedSince)
		if err != nil {
			return nil, nil, fmt.Errorf("computing changes since %s: %w", v.opts.ChangedSince, err)
		}
	}

	selected := make(map[string]bool, len(v.opts.Plugins))
	for _, name := range v.opts.Plugins {
		selected[name] = true
	}

	results := make([][]Finding, len(m.Plugins))
	checked := make([]bool, len(m.Plugins))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.Concurrency)
	for i := range m.Plugins {
		entry := &m.Plugins[i]
		if len(selected) > 0 && !selected[entry.Name] {
			continue
		}
		if changes != nil {
			if dir, err := m.PluginDir(v.opts.Root, entry); err == nil && !changes.Touches(dir) {
				continue
			}
		}
		checked[i] = true
		g.Go(func() error {
			pc := &pluginCheck{root: v.opts.Root, m: m, entry: entry, rules: v.opts.Rules}
			findings := pc.run()
			if pc.dir != "" {
				scriptFindings, err := runScripts(gctx, v.opts.Root, pc.dir, entry.Name, v.opts.Scripts)
				if err != nil {
					return err
				}
				findings = append(findings, scriptFindings...)
			}
			results[i] = findings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for i, findings := range results {
		if checked[i] {
			report.Plugins++
		}
		report.Findings = append(report.Findings, findings...)
	}
	report.Sort()
	return report, &state{marketplace: m}, nil
}

func (r *Report) add(f Finding) {
	r.Findings = append(r.Findings, f)
}

// relPath returns path relative to root in slash form.
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
