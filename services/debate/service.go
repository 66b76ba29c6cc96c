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
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianDebate/services/llm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// =============================================================================
// Metrics hook
// =============================================================================

// Recorder receives turn-level events. The orchestrator plugs in a
// Prometheus-backed implementation; tests use NopRecorder.
type Recorder interface {
	ConversationCreated(provider string, stance Stance)
	TurnCompleted(provider string, result TurnResult, elapsed time.Duration)
	TurnFailed(provider string, err error, elapsed time.Duration)
}

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) ConversationCreated(string, Stance) {}
func (NopRecorder) TurnCompleted(string, TurnResult, time.Duration) {}
func (NopRecorder) TurnFailed(string, error, time.Duration) {}

var _ Recorder = NopRecorder{}

// TurnEvent describes one turn after it has been stored.
type TurnEvent struct {
	ConversationID string
	Topic          string
	Stance         Stance
	Provider       string
	Created        bool
	Outcome        Outcome
	Attempts       int
	UserMessage    string
	Reply          string
	At             time.Time
}

// TurnSink is notified of every stored turn. A sink error is logged and
// never fails the turn.
type TurnSink interface {
	TurnStored(ctx context.Context, ev TurnEvent) error
}

// =============================================================================
// Service
// =============================================================================

// HandleRequest is one inbound user message.
//
// ConversationID empty starts a new conversation. Provider and Stance are
// hints that only apply to a new conversation; they are ignored otherwise.
type HandleRequest struct {
	ConversationID string
	Message        string
	Provider       string
	Stance         string
}

// HandleResult is the conversation id and its full history after the turn.
type HandleResult struct {
	ConversationID string
	History        []Turn
	Created        bool
	Outcome        Outcome
}

// Option configures a ConversationService.
type Option func(*ConversationService)

// WithRecorder installs a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *ConversationService) { s.recorder = r }
}

// WithTurnSink installs a sink notified after each successful write.
func WithTurnSink(sink TurnSink) Option {
	return func(s *ConversationService) { s.sink = sink }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *ConversationService) { s.logger = l }
}

// WithController replaces the default RetryController.
func WithController(rc *RetryController) Option {
	return func(s *ConversationService) { s.controller = rc }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ConversationService) { s.now = now }
}

// WithIDGenerator replaces NewConversationID.
func WithIDGenerator(gen func() string) Option {
	return func(s *ConversationService) { s.newID = gen }
}

// ConversationService runs one debate turn per call.
//
// # Description
//
// Handle creates or loads a session, obtains a compliant reply through the
// RetryController, appends the exchange with FIFO eviction and writes the
// session exactly once. A failed turn writes nothing, so a failed first
// message does not create a conversation.
//
// # Thread Safety
//
// Safe for concurrent use. Turns for the same conversation id are serialized
// within one process; across processes the Store is last-write-wins.
type ConversationService struct {
	store           Store
	registry        *llm.Registry
	defaultProvider string
	controller      *RetryController
	recorder        Recorder
	sink            TurnSink
	logger          *slog.Logger
	now             func() time.Time
	newID           func() string
	locks           keyedMutex
}

// NewConversationService wires the service. defaultProvider is used for new
// conversations that do not name a provider.
func NewConversationService(store Store, registry *llm.Registry, defaultProvider string, opts ...Option) *ConversationService {
	s := &ConversationService{
		store:           store,
		registry:        registry,
		defaultProvider: strings.ToLower(strings.TrimSpace(defaultProvider)),
		recorder:        NopRecorder{},
		logger:          slog.Default(),
		now:             time.Now,
		newID:           NewConversationID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.controller == nil {
		s.controller = NewRetryController(Normalizer{}, nil, s.logger)
	}
	return s
}

// Handle processes one user message.
//
// # Inputs
//
//   - ctx: Bounds the provider calls and the store operations.
//   - req: The message and optional conversation id and creation hints.
//
// # Outputs
//
//   - HandleResult: The id (new or given) and the full stored history.
//   - error: ErrEmptyMessage, ErrConversationNotFound, ErrUnsupportedProvider,
//     ErrInvalidStance, a *llm.ProviderError, or a store failure.
func (s *ConversationService) Handle(ctx context.Context, req HandleRequest) (HandleResult, error) {
	ctx, span := tracer.Start(ctx, "debate.ConversationService.Handle")
	defer span.End()

	if strings.TrimSpace(req.Message) == "" {
		return HandleResult{}, ErrEmptyMessage
	}

	if req.ConversationID != "" {
		unlock := s.locks.lock(req.ConversationID)
		defer unlock()
	}

	sess, created, err := s.loadOrCreate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return HandleResult{}, err
	}
	span.SetAttributes(
		attribute.String("debate.conversation_id", sess.ID),
		attribute.String("debate.provider", sess.Provider),
		attribute.Bool("debate.created", created),
	)

	adapter, ok := s.registry.Get(sess.Provider)
	if !ok {
		return HandleResult{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, sess.Provider)
	}

	start := s.now()
	result, err := s.controller.Obtain(ctx, sess.Provider, adapter, TurnRequest{
		Topic:     sess.Topic,
		Stance:    sess.Stance,
		History:   sess.ModelHistory(),
		Message:   req.Message,
		FirstTurn: sess.IsFirstExchange(),
	})
	elapsed := s.now().Sub(start)
	if err != nil {
		s.recorder.TurnFailed(sess.Provider, err, elapsed)
		s.logger.Warn("turn failed",
			"conversation_id", sess.ID, "provider", sess.Provider, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		return HandleResult{}, err
	}

	storedAt := s.now()
	sess.AppendExchange(req.Message, result.Reply, storedAt)
	if err := s.store.Set(ctx, sess.ID, sess); err != nil {
		return HandleResult{}, fmt.Errorf("saving conversation %s: %w", sess.ID, err)
	}

	if s.sink != nil {
		err := s.sink.TurnStored(ctx, TurnEvent{
			ConversationID: sess.ID,
			Topic:          sess.Topic,
			Stance:         sess.Stance,
			Provider:       sess.Provider,
			Created:        created,
			Outcome:        result.Outcome,
			Attempts:       result.Attempts,
			UserMessage:    req.Message,
			Reply:          result.Reply,
			At:             storedAt,
		})
		if err != nil {
			s.logger.Warn("turn event not delivered", "conversation_id", sess.ID, "error", err)
		}
	}

	if created {
		s.recorder.ConversationCreated(sess.Provider, sess.Stance)
	}
	s.recorder.TurnCompleted(sess.Provider, result, elapsed)
	s.logger.Info("turn completed",
		"conversation_id", sess.ID,
		"provider", sess.Provider,
		"outcome", string(result.Outcome),
		"attempts", result.Attempts,
		"duration_ms", elapsed.Milliseconds())

	return HandleResult{
		ConversationID: sess.ID,
		History:        append([]Turn{}, sess.History...),
		Created:        created,
		Outcome:        result.Outcome,
	}, nil
}

// Conversation returns the stored session for id.
func (s *ConversationService) Conversation(ctx context.Context, id string) (*Session, error) {
	sess, found, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return sess, nil
}

// Providers lists the registered provider names.
func (s *ConversationService) Providers() []string {
	return s.registry.Names()
}

func (s *ConversationService) loadOrCreate(ctx context.Context, req HandleRequest) (*Session, bool, error) {
	if req.ConversationID != "" {
		sess, err := s.Conversation(ctx, req.ConversationID)
		if err != nil {
			return nil, false, err
		}
		return sess, false, nil
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = s.defaultProvider
	}
	if _, ok := s.registry.Get(provider); !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}

	stance := DefaultStance
	if strings.TrimSpace(req.Stance) != "" {
		parsed, err := ParseStance(req.Stance)
		if err != nil {
			return nil, false, err
		}
		stance = parsed
	}

	return NewSession(s.newID(), req.Message, stance, provider, s.now()), true, nil
}

// =============================================================================
// Per-id locking
// =============================================================================

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
