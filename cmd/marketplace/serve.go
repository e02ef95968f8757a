// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"cmp"
	"context"
	"fmt"

	"github.com/google/go-github/v66/github"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/stacklok/toolhive-marketplace/env"
	"github.com/stacklok/toolhive-marketplace/gitdiff"
	"github.com/stacklok/toolhive-marketplace/logging"
	"github.com/stacklok/toolhive-marketplace/metrics"
	"github.com/stacklok/toolhive-marketplace/validator"
	"github.com/stacklok/toolhive-marketplace/webhook"
)

// Webhook secret variables.
const (
	githubSecretEnv = "GITHUB_WEBHOOK_SECRET"
	resendSecretEnv = "RESEND_WEBHOOK_SECRET"
)

func runServe(ctx context.Context, a *app, args []string) error {
	fs, common := newFlagSet(a, "serve")
	addr := fs.String("addr", "", "listen address (overrides serve.addr)")
	gitPull := fs.Bool("git-pull", false, "pull the marketplace checkout before each job")
	prune := fs.Bool("prune", false, "prune removed plugins when syncing")
	if err := a.parse(fs, common, args); err != nil {
		return err
	}

	format, err := logging.ParseFormat(a.cfg.Serve.LogFormat)
	if err != nil {
		return err
	}
	slogger := logging.New(logging.WithFormat(format), logging.WithOutput(a.stderr))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	syncEnabled := a.cfg.Airtable.BaseID != ""
	if syncEnabled {
		if _, err := env.Require(a.env, "AIRTABLE_API_KEY"); err != nil {
			return err
		}
	}

	srv, err := webhook.NewServer(webhook.Config{
		GitHubSecret: env.Lookup(a.env, githubSecretEnv, ""),
		ResendSecret: env.Lookup(a.env, resendSecretEnv, ""),
		Branch:       a.cfg.Serve.Branch,
		OnPush: func(ctx context.Context, ev *github.PushEvent) error {
			return a.onPush(ctx, ev, pushJob{gitPull: *gitPull, sync: syncEnabled, prune: *prune, metrics: m})
		},
	}, webhook.WithLogger(slogger), webhook.WithMetrics(m, reg))
	if err != nil {
		return fmt.Errorf("%w (set %s and/or %s)", err, githubSecretEnv, resendSecretEnv)
	}
	return srv.ListenAndServe(ctx, cmp.Or(*addr, a.cfg.Serve.Addr))
}

type pushJob struct {
	gitPull bool
	sync    bool
	prune   bool
	metrics *metrics.Metrics
}

// onPush validates the marketplace and, when it is valid and Airtable is
// configured, syncs the catalog.
func (a *app) onPush(ctx context.Context, ev *github.PushEvent, job pushJob) error {
	slogger := a.componentLogger("job").With("commit", ev.GetAfter())
	if job.gitPull {
		head, err := gitdiff.Pull(ctx, a.cfg.Root, "")
		if err != nil {
			return err
		}
		slogger.Info("checkout updated", "head", head)
	}

	opts, err := a.cfg.ValidatorOptions()
	if err != nil {
		return err
	}
	// A push may touch marketplace.json itself, so every plugin is checked.
	opts.ChangedSince = ""
	report, err := validator.New(opts).Validate(ctx)
	if err != nil {
		return err
	}
	job.metrics.ValidationRun(report.HasErrors(), findingCounts(report))
	slogger.Info("validation finished",
		"plugins", report.Plugins,
		"errors", report.Count(validator.SeverityError),
		"warnings", report.Count(validator.SeverityWarning),
	)
	if report.HasErrors() {
		return errFindings
	}
	if !job.sync {
		return nil
	}

	res, err := a.syncCatalog(ctx, syncFlags{prune: job.prune}, job.metrics)
	if err != nil {
		return err
	}
	slogger.Info("sync finished", "run_id", res.Run.ID, "created", res.Run.Created, "updated", res.Run.Updated, "deleted", res.Run.Deleted)
	return nil
}

func findingCounts(r *validator.Report) map[[2]string]int {
	counts := make(map[[2]string]int)
	for _, f := range r.Findings {
		counts[[2]string{f.Code, string(f.Severity)}]++
	}
	return counts
}
