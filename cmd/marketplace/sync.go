// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/stacklok/toolhive-marketplace/airtable"
	"github.com/stacklok/toolhive-marketplace/catalog"
	"github.com/stacklok/toolhive-marketplace/metrics"
	"github.com/stacklok/toolhive-marketplace/syncer"
	"github.com/stacklok/toolhive-marketplace/syncstate"
	"github.com/stacklok/toolhive-marketplace/validator"
)

type syncFlags struct {
	dryRun       bool
	prune        bool
	skipValidate bool
	baseID       string
	table        string
	state        string
}

func runSync(ctx context.Context, a *app, args []string) error {
	fs, common := newFlagSet(a, "sync")
	var f syncFlags
	fs.BoolVar(&f.dryRun, "dry-run", false, "print the plan without calling Airtable")
	fs.BoolVar(&f.prune, "prune", false, "delete rows of plugins removed from the marketplace")
	fs.BoolVar(&f.skipValidate, "skip-validate", false, "sync even when validation reports errors")
	fs.StringVar(&f.baseID, "base-id", "", "Airtable base id (overrides airtable.base_id)")
	fs.StringVar(&f.table, "table", "", "Airtable table (overrides airtable.table)")
	fs.StringVar(&f.state, "state", "", "sync state database (overrides airtable.state_path)")
	if err := a.parse(fs, common, args); err != nil {
		return err
	}

	if !f.skipValidate {
		opts, err := a.cfg.ValidatorOptions()
		if err != nil {
			return err
		}
		opts.ChangedSince = ""
		report, err := validator.New(opts).Validate(ctx)
		if err != nil {
			return err
		}
		if report.HasErrors() {
			if err := report.WriteText(a.stderr); err != nil {
				return err
			}
			return errFindings
		}
	}

	res, err := a.syncCatalog(ctx, f, nil)
	if err != nil {
		return err
	}
	if err := res.Plan.WriteText(a.stdout); err != nil {
		return err
	}
	if f.dryRun {
		fmt.Fprintln(a.stdout, "dry run: no changes were made")
	}
	return nil
}

// syncCatalog builds the catalog under the configured root and syncs it. The
// Airtable key is only required when changes are applied.
func (a *app) syncCatalog(ctx context.Context, f syncFlags, m *metrics.Metrics) (*syncer.Result, error) {
	cfg := a.cfg
	baseID := cmp.Or(f.baseID, cfg.Airtable.BaseID)
	table := cmp.Or(f.table, cfg.Airtable.Table)
	if baseID == "" || table == "" {
		return nil, usageErrorf("an Airtable base id and table are required (--base-id, --table or the airtable config section)")
	}

	var client syncer.Airtable = dryRunClient{}
	if !f.dryRun {
		c, err := airtable.NewFromEnv(a.env, baseID, table,
			airtable.WithRateLimit(cfg.Airtable.RequestsPerSecond, 1))
		if err != nil {
			return nil, err
		}
		client = c
	}

	c, err := catalog.Build(cfg.Root)
	if err != nil {
		return nil, err
	}

	statePath := cmp.Or(f.state, cfg.Airtable.StatePath, syncstate.DefaultPath())
	store, err := syncstate.Open(statePath, syncstate.Options{Logger: a.componentLogger("syncstate")})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	s := syncer.New(client, store, syncstate.Target(baseID, table),
		syncer.WithLogger(a.componentLogger("syncer")),
		syncer.WithMetrics(m),
	)
	return s.Sync(ctx, c, syncer.Options{DryRun: f.dryRun, Prune: f.prune})
}

// dryRunClient fails every call; dry runs never reach it.
type dryRunClient struct{}

func (dryRunClient) List(context.Context, airtable.ListOptions) ([]airtable.Record, error) {
	return nil, errDryRun
}

func (dryRunClient) Create(context.Context, []airtable.Fields) ([]airtable.Record, error) {
	return nil, errDryRun
}

func (dryRunClient) Update(context.Context, []airtable.Record) ([]airtable.Record, error) {
	return nil, errDryRun
}

func (dryRunClient) Delete(context.Context, []string) ([]string, error) {
	return nil, errDryRun
}

var errDryRun = errors.New("airtable called during a dry run")
