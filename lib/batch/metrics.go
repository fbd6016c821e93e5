// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package batch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters and gauges updated during a run.
type Metrics struct {
	tasksSubmitted  prometheus.Counter
	tasksIncomplete prometheus.Gauge
	polls           prometheus.Counter
	providerErrors  *prometheus.CounterVec
}

// NewMetrics returns a Metrics registered with reg. If reg is nil, a
// private registry is used.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{}
	m.tasksSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "azurebatch",
		Subsystem: "run",
		Name:      "tasks_submitted_total",
		Help:      "Number of tasks accepted by the Batch service.",
	})
	reg.MustRegister(m.tasksSubmitted)
	m.tasksIncomplete = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "azurebatch",
		Subsystem: "run",
		Name:      "tasks_incomplete",
		Help:      "Number of tasks not yet in the completed state, as of the latest poll.",
	})
	reg.MustRegister(m.tasksIncomplete)
	m.polls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "azurebatch",
		Subsystem: "run",
		Name:      "polls_total",
		Help:      "Number of task list polls made while waiting for completion.",
	})
	reg.MustRegister(m.polls)
	m.providerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "azurebatch",
		Subsystem: "run",
		Name:      "provider_errors_total",
		Help:      "Number of errors returned by the Batch service, by kind.",
	}, []string{"kind"})
	reg.MustRegister(m.providerErrors)
	return m
}

func (m *Metrics) providerError(err error) {
	m.providerErrors.WithLabelValues(KindOf(err).String()).Inc()
}
