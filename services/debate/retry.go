// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package debate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianDebate/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.debate.core")

// Outcome records how a turn's reply was obtained.
type Outcome string

const (
	// OutcomeAccepted means the first attempt passed.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeRetried means the corrective attempt passed.
	OutcomeRetried Outcome = "retried"
	// OutcomeFallback means both attempts failed the language check.
	OutcomeFallback Outcome = "fallback"
)

// TurnRequest is the input of one bot turn.
type TurnRequest struct {
	Topic     string
	Stance    Stance
	History   []llm.Message
	Message   string
	FirstTurn bool
}

// TurnResult is a compliant reply and how it was obtained.
type TurnResult struct {
	Reply       string
	Outcome     Outcome
	Attempts    int
	Corrections []Correction
}

// RetryController obtains a compliant reply with at most one corrective
// attempt.
//
// # Description
//
// Attempt 1 sends the user message. If the normalized reply fails the
// language check, attempt 2 sends the same message with an
// English-only instruction appended. If that also fails, the normalized
// FallbackReply is used. Marker and length problems are repaired by the
// Normalizer and never cause a retry.
//
// Adapter errors propagate immediately and are never retried.
//
// # Thread Safety
//
// Safe for concurrent use if the classifier is.
type RetryController struct {
	normalizer Normalizer
	classifier LanguageClassifier
	logger     *slog.Logger
}

// NewRetryController wires a controller. A nil classifier selects
// HeuristicEnglishClassifier; a nil logger selects slog.Default().
func NewRetryController(n Normalizer, classifier LanguageClassifier, logger *slog.Logger) *RetryController {
	if classifier == nil {
		classifier = HeuristicEnglishClassifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryController{normalizer: n, classifier: classifier, logger: logger}
}

// Obtain runs the retry protocol against adapter.
//
// # Outputs
//
//   - TurnResult: Reply satisfies the marker, language and length rules.
//   - error: An adapter failure from either attempt, unchanged.
func (rc *RetryController) Obtain(ctx context.Context, provider string, adapter llm.Completer, req TurnRequest) (TurnResult, error) {
	ctx, span := tracer.Start(ctx, "debate.RetryController.Obtain")
	defer span.End()
	span.SetAttributes(
		attribute.String("debate.provider", provider),
		attribute.String("debate.stance", string(req.Stance)),
		attribute.Bool("debate.first_turn", req.FirstTurn),
	)

	instructions := StandingInstructions(req.Topic, req.Stance)
	messages := []string{req.Message, RetryMessage(req.Message, req.Stance)}

	for i, msg := range messages {
		attempt := i + 1
		raw, err := adapter.Complete(ctx, instructions, req.History, msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "provider call failed")
			return TurnResult{Attempts: attempt}, fmt.Errorf("attempt %d: %w", attempt, err)
		}

		norm := rc.normalizer.Normalize(raw, req.Topic, req.Stance, req.FirstTurn)
		if rc.acceptable(norm) {
			outcome := OutcomeAccepted
			if attempt > 1 {
				outcome = OutcomeRetried
			}
			span.SetAttributes(attribute.String("debate.outcome", string(outcome)), attribute.Int("debate.attempts", attempt))
			return TurnResult{Reply: norm.Text, Outcome: outcome, Attempts: attempt, Corrections: norm.Corrections}, nil
		}
		rc.logger.Debug("reply rejected by language check",
			"provider", provider, "attempt", attempt)
	}

	norm := rc.normalizer.Normalize(FallbackReply(req.Stance), req.Topic, req.Stance, req.FirstTurn)
	rc.logger.Info("using fallback reply", "provider", provider)
	span.SetAttributes(attribute.String("debate.outcome", string(OutcomeFallback)), attribute.Int("debate.attempts", len(messages)))
	return TurnResult{Reply: norm.Text, Outcome: OutcomeFallback, Attempts: len(messages), Corrections: norm.Corrections}, nil
}

func (rc *RetryController) acceptable(n Normalized) bool {
	return rc.classifier.IsTargetLanguage(n.Content)
}
