// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events publishes stored debate turns on a message bus.
//
// # Description
//
// Publisher implements debate.TurnSink on top of a watermill
// message.Publisher. Open selects the bus: an in-process go channel or a
// Redis stream shared with other services. Consume reads turn messages
// back, which the orchestrator uses for its turn audit log.
//
// # Message Format
//
// One JSON TurnMessage per turn. Metadata carries conversation_id and
// provider so consumers can route without decoding the payload.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianDebate/services/debate"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// DefaultTopic is the topic (Redis stream name) turns are published on.
const DefaultTopic = "debate.turns"

// TurnMessage is the wire form of debate.TurnEvent.
type TurnMessage struct {
	ConversationID string    `json:"conversation_id"`
	Topic          string    `json:"topic"`
	Stance         string    `json:"stance"`
	Provider       string    `json:"provider"`
	Created        bool      `json:"created"`
	Outcome        string    `json:"outcome"`
	Attempts       int       `json:"attempts"`
	UserMessage    string    `json:"user_message"`
	Reply          string    `json:"reply"`
	At             time.Time `json:"at"`
}

func newTurnMessage(ev debate.TurnEvent) TurnMessage {
	return TurnMessage{
		ConversationID: ev.ConversationID,
		Topic:          ev.Topic,
		Stance:         string(ev.Stance),
		Provider:       ev.Provider,
		Created:        ev.Created,
		Outcome:        string(ev.Outcome),
		Attempts:       ev.Attempts,
		UserMessage:    ev.UserMessage,
		Reply:          ev.Reply,
		At:             ev.At.UTC(),
	}
}

// =============================================================================
// Publisher
// =============================================================================

// Publisher sends every stored turn to one topic.
//
// # Thread Safety
//
// Safe for concurrent use if the underlying publisher is. Both watermill
// publishers used here are.
type Publisher struct {
	pub   message.Publisher
	topic string
}

// NewPublisher wraps pub. An empty topic uses DefaultTopic.
func NewPublisher(pub message.Publisher, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{pub: pub, topic: topic}
}

// TurnStored implements debate.TurnSink.
func (p *Publisher) TurnStored(ctx context.Context, ev debate.TurnEvent) error {
	payload, err := json.Marshal(newTurnMessage(ev))
	if err != nil {
		return fmt.Errorf("encode turn event: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("conversation_id", ev.ConversationID)
	msg.Metadata.Set("provider", ev.Provider)

	if err := p.pub.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish turn event to %s: %w", p.topic, err)
	}
	return nil
}

var _ debate.TurnSink = (*Publisher)(nil)

// =============================================================================
// Consumer
// =============================================================================

// Handler processes one decoded turn. Returning an error nacks the message.
type Handler func(ctx context.Context, turn TurnMessage) error

// Consume subscribes to topic and calls handle for each turn until ctx is
// cancelled or the subscription closes.
//
// # Description
//
// Messages that cannot be decoded are logged and acked so they do not block
// the stream. A handler error nacks the message for redelivery.
//
// # Outputs
//
//   - error: Non-nil only if the subscription cannot be created.
func Consume(ctx context.Context, sub message.Subscriber, topic string, handle Handler, logger *slog.Logger) error {
	if topic == "" {
		topic = DefaultTopic
	}
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var turn TurnMessage
			if err := json.Unmarshal(msg.Payload, &turn); err != nil {
				logger.Warn("dropping undecodable turn event", "message_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			if err := handle(msg.Context(), turn); err != nil {
				logger.Warn("turn event handler failed", "message_id", msg.UUID, "error", err)
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}

// AuditLog returns a Handler that writes one log line per turn.
func AuditLog(logger *slog.Logger) Handler {
	return func(_ context.Context, turn TurnMessage) error {
		logger.Info("turn audited",
			"conversation_id", turn.ConversationID,
			"provider", turn.Provider,
			"stance", turn.Stance,
			"outcome", turn.Outcome,
			"attempts", turn.Attempts,
			"created", turn.Created)
		return nil
	}
}
