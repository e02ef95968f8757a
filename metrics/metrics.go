// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package metrics defines the prometheus collectors of the marketplace
// tooling. A nil *Metrics is valid and records nothing, so library code can
// take metrics as an optional dependency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

// Metrics holds every collector.
type Metrics struct {
	ValidationRuns *prometheus.CounterVec
	Findings       *prometheus.CounterVec
	SyncOperations *prometheus.CounterVec
	SyncDuration   prometheus.Histogram
	WebhookEvents  *prometheus.CounterVec
	Jobs           *prometheus.CounterVec
	JobDuration    prometheus.Histogram
	JobsQueued     prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ValidationRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_runs_total",
			Help:      "Validation runs by result (ok or failed).",
		}, []string{"result"}),
		Findings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_findings_total",
			Help:      "Validation findings by code and severity.",
		}, []string{"code", "severity"}),
		SyncOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_operations_total",
			Help:      "Airtable sync decisions by action.",
		}, []string{"action"}),
		SyncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of Airtable sync runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		WebhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Verified webhook deliveries by source and event type.",
		}, []string{"source", "event"}),
		Jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Background jobs by outcome (succeeded, failed or coalesced).",
		}, []string{"outcome"}),
		JobDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of background jobs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		JobsQueued: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_queued",
			Help:      "Background jobs waiting to run.",
		}),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ValidationRun records a validation run and its findings.
func (m *Metrics) ValidationRun(failed bool, findings map[[2]string]int) {
	if m == nil {
		return
	}
	result := "ok"
	if failed {
		result = "failed"
	}
	m.ValidationRuns.WithLabelValues(result).Inc()
	for key, n := range findings {
		m.Findings.WithLabelValues(key[0], key[1]).Add(float64(n))
	}
}

// SyncOperation records n sync decisions of the given action.
func (m *Metrics) SyncOperation(action string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SyncOperations.WithLabelValues(action).Add(float64(n))
}

// SyncFinished records the duration of a sync run.
func (m *Metrics) SyncFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.SyncDuration.Observe(d.Seconds())
}

// WebhookEvent records a verified webhook delivery.
func (m *Metrics) WebhookEvent(source, event string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(source, event).Inc()
}

// JobOutcome records the outcome of a background job.
func (m *Metrics) JobOutcome(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.JobDuration.Observe(d.Seconds())
	}
}

// SetQueued sets the number of waiting jobs.
func (m *Metrics) SetQueued(n int) {
	if m == nil {
		return
	}
	m.JobsQueued.Set(float64(n))
}
