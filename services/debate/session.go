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
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDebate/services/llm"
	"github.com/google/uuid"
)

// HistoryCap is the maximum number of turns kept per conversation, counting
// user and bot turns alike.
const HistoryCap = 10

// Turn is one history entry.
type Turn struct {
	Role    llm.Role `json:"role"`
	Message string   `json:"message"`
}

// Session is the persisted state of one conversation.
//
// # Description
//
// Topic, Stance and Provider are set when the session is created and never
// change afterwards. History is chronological, oldest first, and never
// exceeds HistoryCap entries.
type Session struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Stance    Stance    `json:"stance"`
	Provider  string    `json:"provider"`
	History   []Turn    `json:"history"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession starts an empty conversation.
func NewSession(id, topic string, stance Stance, provider string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Topic:     topic,
		Stance:    stance,
		Provider:  strings.ToLower(strings.TrimSpace(provider)),
		History:   []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewConversationID returns a 32 character lowercase hex id.
func NewConversationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsFirstExchange reports whether no turn has been recorded yet.
func (s *Session) IsFirstExchange() bool {
	return len(s.History) == 0
}

// AppendExchange records a user turn and the bot reply, then evicts the
// oldest turns until the history fits HistoryCap.
func (s *Session) AppendExchange(user, bot string, now time.Time) {
	s.History = append(s.History,
		Turn{Role: llm.RoleUser, Message: user},
		Turn{Role: llm.RoleBot, Message: bot},
	)
	if over := len(s.History) - HistoryCap; over > 0 {
		s.History = append([]Turn(nil), s.History[over:]...)
	}
	s.UpdatedAt = now
}

// ModelHistory converts the stored turns into adapter messages.
func (s *Session) ModelHistory() []llm.Message {
	out := make([]llm.Message, 0, len(s.History))
	for _, t := range s.History {
		out = append(out, llm.Message{Role: t.Role, Content: t.Message})
	}
	return out
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.History = append([]Turn{}, s.History...)
	return &c
}
