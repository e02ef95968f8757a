// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacklok/toolhive-marketplace/airtable"
	"github.com/stacklok/toolhive-marketplace/catalog"
	"github.com/stacklok/toolhive-marketplace/logging"
	"github.com/stacklok/toolhive-marketplace/metrics"
	"github.com/stacklok/toolhive-marketplace/syncstate"
)

// Airtable is the subset of the Airtable client a sync uses.
type Airtable interface {
	List(ctx context.Context, opts airtable.ListOptions) ([]airtable.Record, error)
	Create(ctx context.Context, fields []airtable.Fields) ([]airtable.Record, error)
	Update(ctx context.Context, records []airtable.Record) ([]airtable.Record, error)
	Delete(ctx context.Context, ids []string) ([]string, error)
}

// State is the subset of the sync state store a sync uses.
type State interface {
	List(ctx context.Context, target string) ([]syncstate.Record, error)
	Upsert(ctx context.Context, r *syncstate.Record) error
	Delete(ctx context.Context, target, plugin string) error
	BeginRun(ctx context.Context, target string, dryRun bool) (*syncstate.Run, error)
	FinishRun(ctx context.Context, run *syncstate.Run, runErr error) error
}

// Options controls a single sync.
type Options struct {
	// DryRun computes the plan from stored state only, without calling Airtable
	DryRun bool
	// Prune deletes rows of plugins removed from the marketplace
	Prune bool
}

// Result is the outcome of a sync.
type Result struct {
	Plan *Plan
	Run  *syncstate.Run
}

// Syncer reconciles catalogs with one Airtable table.
type Syncer struct {
	client  Airtable
	state   State
	target  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithMetrics records sync decisions and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Syncer) { s.metrics = m }
}

// New returns a syncer writing to target, the syncstate key of the table.
func New(client Airtable, state State, target string, opts ...Option) *Syncer {
	s := &Syncer{
		client: client,
		state:  state,
		target: target,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync plans and, unless opts.DryRun is set, applies the changes needed to make
// the table match c.
func (s *Syncer) Sync(ctx context.Context, c *catalog.Catalog, opts Options) (res *Result, err error) {
	start := time.Now()
	run, err := s.state.BeginRun(ctx, s.target, opts.DryRun)
	if err != nil {
		return nil, err
	}
	res = &Result{Run: run}
	defer func() {
		if res.Plan != nil {
			run.Skipped = res.Plan.Count(ActionSkip)
		}
		if ferr := s.state.FinishRun(context.WithoutCancel(ctx), run, err); ferr != nil {
			err = errors.Join(err, ferr)
		}
		s.metrics.SyncFinished(time.Since(start))
	}()

	records, err := s.state.List(ctx, s.target)
	if err != nil {
		return res, err
	}

	var remote []airtable.Record
	if !opts.DryRun {
		remote, err = s.client.List(ctx, airtable.ListOptions{Fields: []string{FieldName}})
		if err != nil {
			return res, fmt.Errorf("list airtable records: %w", err)
		}
		if remote == nil {
			remote = []airtable.Record{}
		}
	}

	res.Plan = BuildPlan(s.target, c, records, remote, opts.Prune)
	s.logger.Info("sync planned",
		"target", s.target,
		"create", res.Plan.Count(ActionCreate),
		"update", res.Plan.Count(ActionUpdate),
		"delete", res.Plan.Count(ActionDelete),
		"skip", res.Plan.Count(ActionSkip),
		"dry_run", opts.DryRun,
	)
	for _, a := range Actions {
		s.metrics.SyncOperation(string(a), res.Plan.Count(a))
	}
	if opts.DryRun {
		run.Created = res.Plan.Count(ActionCreate)
		run.Updated = res.Plan.Count(ActionUpdate)
		run.Deleted = res.Plan.Count(ActionDelete)
		return res, nil
	}

	err = s.apply(ctx, res.Plan, run)
	return res, err
}

func (s *Syncer) apply(ctx context.Context, plan *Plan, run *syncstate.Run) error {
	if creates := plan.Of(ActionCreate); len(creates) > 0 {
		fields := make([]airtable.Fields, len(creates))
		for i, c := range creates {
			fields[i] = c.Fields
		}
		created, err := s.client.Create(ctx, fields)
		if err != nil {
			return fmt.Errorf("create airtable records: %w", err)
		}
		if len(created) != len(creates) {
			return fmt.Errorf("airtable created %d records, expected %d", len(created), len(creates))
		}
		for i, c := range creates {
			if err := s.save(ctx, run, c.Plugin, created[i].ID, c.Hash); err != nil {
				return err
			}
		}
		run.Created = len(created)
	}

	if updates := plan.Of(ActionUpdate); len(updates) > 0 {
		records := make([]airtable.Record, len(updates))
		for i, c := range updates {
			records[i] = airtable.Record{ID: c.RecordID, Fields: c.Fields}
		}
		if _, err := s.client.Update(ctx, records); err != nil {
			return fmt.Errorf("update airtable records: %w", err)
		}
		for _, c := range updates {
			if err := s.save(ctx, run, c.Plugin, c.RecordID, c.Hash); err != nil {
				return err
			}
		}
		run.Updated = len(updates)
	}

	if deletes := plan.Of(ActionDelete); len(deletes) > 0 {
		ids := make([]string, len(deletes))
		for i, c := range deletes {
			ids[i] = c.RecordID
		}
		if _, err := s.client.Delete(ctx, ids); err != nil {
			return fmt.Errorf("delete airtable records: %w", err)
		}
		for _, c := range deletes {
			if err := s.state.Delete(ctx, s.target, c.Plugin); err != nil {
				return err
			}
		}
		run.Deleted = len(deletes)
	}

	s.logger.Info("sync applied",
		"target", s.target,
		"run_id", run.ID,
		"created", run.Created,
		"updated", run.Updated,
		"deleted", run.Deleted,
	)
	return nil
}

func (s *Syncer) save(ctx context.Context, run *syncstate.Run, plugin, recordID, hash string) error {
	return s.state.Upsert(ctx, &syncstate.Record{
		Target:   s.target,
		Plugin:   plugin,
		RecordID: recordID,
		Hash:     hash,
		RunID:    run.ID,
	})
}
