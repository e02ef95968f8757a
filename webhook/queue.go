// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/stacklok/toolhive-marketplace/logging"
	"github.com/stacklok/toolhive-marketplace/metrics"
)

// Job is a unit of background work.
type Job struct {
	Name string
	// Reason describes what triggered the job, for logs
	Reason string
	Run    func(ctx context.Context) error
}

// Queue runs jobs one at a time. At most one job waits while another runs;
// further submissions are coalesced into the waiting one.
type Queue struct {
	jobs    chan Job
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewQueue returns an idle queue. Call Run to start its worker.
func NewQueue(logger *slog.Logger, m *metrics.Metrics) *Queue {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Queue{jobs: make(chan Job, 1), logger: logger, metrics: m}
}

// Enqueue schedules j and reports whether it was queued. It returns false
// when a job is already waiting.
func (q *Queue) Enqueue(j Job) bool {
	select {
	case q.jobs <- j:
		q.metrics.SetQueued(len(q.jobs))
		q.logger.Info("job queued", "job", j.Name, "reason", j.Reason)
		return true
	default:
		q.metrics.JobOutcome("coalesced", 0)
		q.logger.Info("job coalesced", "job", j.Name, "reason", j.Reason)
		return false
	}
}

// Run executes queued jobs until ctx is cancelled. A job in progress sees the
// cancellation through its context.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-q.jobs:
			q.metrics.SetQueued(len(q.jobs))
			q.run(ctx, j)
		}
	}
}

// run executes j, turning a panic into a failed outcome so the worker keeps
// serving later jobs.
func (q *Queue) run(ctx context.Context, j Job) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			elapsed := time.Since(start)
			q.metrics.JobOutcome("failed", elapsed)
			q.logger.Error("job panicked",
				"job", j.Name,
				"duration", elapsed,
				"panic", v,
				"stack", string(debug.Stack()),
			)
		}
	}()

	err := j.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		q.metrics.JobOutcome("failed", elapsed)
		q.logger.Error("job failed", "job", j.Name, "duration", elapsed, "error", err)
		return
	}
	q.metrics.JobOutcome("succeeded", elapsed)
	q.logger.Info("job finished", "job", j.Name, "duration", elapsed)
}
