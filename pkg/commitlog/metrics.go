// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package commitlog

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the commit-log metric instruments. Registered on the
// registerer handed to New; a nil registerer yields unregistered (but
// usable) instruments.
type Metrics struct {
	CDCSizeBytes      prometheus.Gauge
	CDCBudgetBytes    prometheus.Gauge
	CDCRejectedWrites prometheus.Counter
	CDCRecalcRuns     prometheus.Counter
	CDCRecalcFailures prometheus.Counter
	SegmentSwitches   prometheus.Counter
}

// MakeMetrics builds the metric set and registers it with reg if non-nil.
func MakeMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CDCSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cdclog",
			Name:      "cdc_size_bytes",
			Help:      "Best-effort CDC bytes counted toward the budget",
		}),
		CDCBudgetBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cdclog",
			Name:      "cdc_budget_bytes",
			Help:      "Configured bound on CDC bytes on disk",
		}),
		CDCRejectedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cdclog",
			Name:      "cdc_rejected_writes_total",
			Help:      "CDC-tracked mutations rejected for lack of budget",
		}),
		CDCRecalcRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cdclog",
			Name:      "cdc_recalc_runs_total",
			Help:      "Completed CDC raw directory size recalculations",
		}),
		CDCRecalcFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cdclog",
			Name:      "cdc_recalc_failures_total",
			Help:      "CDC size recalculations that failed with an I/O error",
		}),
		SegmentSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cdclog",
			Name:      "segment_switches_total",
			Help:      "Active segment hand-offs",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.CDCSizeBytes, m.CDCBudgetBytes, m.CDCRejectedWrites,
			m.CDCRecalcRuns, m.CDCRecalcFailures, m.SegmentSwitches,
		)
	}
	return m
}
