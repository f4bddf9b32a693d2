// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package metrics exposes the scheduler's Prometheus instrumentation: one
// set of counters/gauges per tick, dispatch, and token-contention event.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "pytf"
	subsystem = "scheduler"
)

// Metrics holds the scheduler's counters, gauges and histogram. The tick loop
// updates them; the worker runner updates none, and nothing in this module
// observes TickDurationSeconds.
type Metrics struct {
	TicksTotal          prometheus.Counter
	TickDurationSeconds prometheus.Histogram

	JobsDispatchedTotal *prometheus.CounterVec
	JobsFailedTotal     *prometheus.CounterVec

	JobsByStatus *prometheus.GaugeVec

	TokenWaitTotal *prometheus.CounterVec
	TokensInUse    *prometheus.GaugeVec
}

// New creates and registers every metric against reg. If reg is nil, the
// default Prometheus registerer is used.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ticks_total",
			Help:      "Total number of main loop ticks executed.",
		}),
		TickDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one tick's scheduling pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		JobsDispatchedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_dispatched_total",
			Help:      "Total number of jobs dispatched, by family and queue.",
		}, []string{"family", "queue"}),
		JobsFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_failed_total",
			Help:      "Total number of terminal job failures, by family.",
		}, []string{"family"}),
		JobsByStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_by_status",
			Help:      "Number of jobs observed in each status at the last tick.",
		}, []string{"status"}),
		TokenWaitTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "token_wait_total",
			Help:      "Total number of times a job was downgraded to Token Wait.",
		}, []string{"token"}),
		TokensInUse: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tokens_in_use",
			Help:      "Current number of holders for each named token.",
		}, []string{"token"}),
	}
}

// ObserveTick updates the per-status gauge and token-usage gauge from one
// tick's scheduling output. Callers pass already-aggregated counts.
func (m *Metrics) ObserveTick(statusCounts map[string]int, tokenUsage map[string]int) {
	if m == nil {
		return
	}
	for status, n := range statusCounts {
		m.JobsByStatus.WithLabelValues(status).Set(float64(n))
	}
	for token, n := range tokenUsage {
		m.TokensInUse.WithLabelValues(token).Set(float64(n))
	}
}
