// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianDebate/services/debate"
	"github.com/AleutianAI/AleutianDebate/services/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*DebateMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewDebateMetrics(reg), reg
}

func TestNewDebateMetrics_RegistersOnGivenRegistry(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.ConversationCreated("dummy", debate.StancePro)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "debate_conversations_created_total")

	// A second set on a fresh registry must not panic.
	assert.NotPanics(t, func() { NewDebateMetrics(prometheus.NewRegistry()) })
}

func TestTurnCompleted(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.TurnCompleted("openai", debate.TurnResult{
		Outcome:     debate.OutcomeRetried,
		Attempts:    2,
		Corrections: []debate.Correction{debate.CorrectionMarkerAdded, debate.CorrectionBannerInserted},
	}, 150*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("openai", "retried")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpstreamCallsTotal.WithLabelValues("openai")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CorrectionsTotal.WithLabelValues("marker_added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CorrectionsTotal.WithLabelValues("banner_inserted")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TurnDurationSeconds))
}

func TestTurnFailed(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.TurnFailed("anthropic", llm.NewProviderError("anthropic", llm.KindRateLimited, ""), time.Second)
	m.TurnFailed("anthropic", errors.New("unclassified"), time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("anthropic", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamErrorsTotal.WithLabelValues("anthropic", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamErrorsTotal.WithLabelValues("anthropic", "generic")))
}
