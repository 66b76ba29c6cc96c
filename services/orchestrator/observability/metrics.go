// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for debate turns.
//
// # Description
//
// DebateMetrics implements debate.Recorder. Metrics include:
//   - Turn counters by provider and outcome (accepted, retried, fallback)
//   - Upstream call and error counters
//   - Normalizer correction counters
//   - Turn latency histograms
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint from the registry passed to
// NewDebateMetrics.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/AleutianAI/AleutianDebate/services/debate"
	"github.com/AleutianAI/AleutianDebate/services/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "debate"

// outcomeError labels turns that ended in a provider failure.
const outcomeError = "error"

// DebateMetrics holds all Prometheus metrics for debate turns.
//
// # Fields
//
//   - TurnsTotal: Completed and failed turns by provider and outcome
//   - UpstreamCallsTotal: Adapter calls by provider (1 or 2 per turn)
//   - UpstreamErrorsTotal: Adapter failures by provider and error kind
//   - CorrectionsTotal: Normalizer repairs by correction
//   - TurnDurationSeconds: Turn latency by provider
//   - ConversationsCreatedTotal: New conversations by provider and stance
type DebateMetrics struct {
	TurnsTotal                *prometheus.CounterVec
	UpstreamCallsTotal        *prometheus.CounterVec
	UpstreamErrorsTotal       *prometheus.CounterVec
	CorrectionsTotal          *prometheus.CounterVec
	TurnDurationSeconds       *prometheus.HistogramVec
	ConversationsCreatedTotal *prometheus.CounterVec
}

// NewDebateMetrics creates and registers all metrics on reg.
//
// # Inputs
//
//   - reg: Registry to register on. Tests pass a fresh prometheus.NewRegistry().
//
// # Limitations
//
//   - Panics if called twice with the same registry (duplicate registration).
func NewDebateMetrics(reg prometheus.Registerer) *DebateMetrics {
	factory := promauto.With(reg)
	return &DebateMetrics{
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "turns_total",
				Help:      "Total debate turns by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		UpstreamCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "upstream_calls_total",
				Help:      "Total model provider calls",
			},
			[]string{"provider"},
		),
		UpstreamErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "upstream_errors_total",
				Help:      "Total model provider failures by error kind",
			},
			[]string{"provider", "kind"},
		),
		CorrectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "normalizer_corrections_total",
				Help:      "Total repairs applied to model replies",
			},
			[]string{"correction"},
		),
		TurnDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "turn_duration_seconds",
				Help:      "Time spent obtaining a compliant reply",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		ConversationsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "conversations_created_total",
				Help:      "Total conversations created by provider and stance",
			},
			[]string{"provider", "stance"},
		),
	}
}

// =============================================================================
// debate.Recorder
// =============================================================================

// ConversationCreated implements debate.Recorder.
func (m *DebateMetrics) ConversationCreated(provider string, stance debate.Stance) {
	m.ConversationsCreatedTotal.WithLabelValues(provider, string(stance)).Inc()
}

// TurnCompleted implements debate.Recorder.
func (m *DebateMetrics) TurnCompleted(provider string, result debate.TurnResult, elapsed time.Duration) {
	m.TurnsTotal.WithLabelValues(provider, string(result.Outcome)).Inc()
	m.UpstreamCallsTotal.WithLabelValues(provider).Add(float64(result.Attempts))
	m.TurnDurationSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
	for _, c := range result.Corrections {
		m.CorrectionsTotal.WithLabelValues(string(c)).Inc()
	}
}

// TurnFailed implements debate.Recorder.
func (m *DebateMetrics) TurnFailed(provider string, err error, elapsed time.Duration) {
	kind, ok := llm.KindOf(err)
	if !ok {
		kind = llm.KindGeneric
	}
	m.TurnsTotal.WithLabelValues(provider, outcomeError).Inc()
	m.UpstreamErrorsTotal.WithLabelValues(provider, kind.String()).Inc()
	m.TurnDurationSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
}

var _ debate.Recorder = (*DebateMetrics)(nil)
