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
	"regexp"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianDebate/services/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AppendExchangeEvictsOldestPair(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSession("id", "topic", StancePro, "Dummy", now)
	assert.Equal(t, "dummy", s.Provider)
	assert.True(t, s.IsFirstExchange())

	for i := 0; i < 7; i++ {
		s.AppendExchange(fmt.Sprintf("u%d", i), fmt.Sprintf("b%d", i), now.Add(time.Duration(i)*time.Second))
		assert.LessOrEqual(t, len(s.History), HistoryCap)
	}

	require.Len(t, s.History, HistoryCap)
	assert.Equal(t, Turn{Role: llm.RoleUser, Message: "u2"}, s.History[0])
	assert.Equal(t, Turn{Role: llm.RoleBot, Message: "b6"}, s.History[HistoryCap-1])
	assert.Equal(t, now.Add(6*time.Second), s.UpdatedAt)
	assert.Equal(t, now, s.CreatedAt)
}

func TestSession_ModelHistoryAndClone(t *testing.T) {
	s := NewSession("id", "topic", StanceContra, "dummy", time.Now())
	s.AppendExchange("hello", "[[STANCE:contra]] no", time.Now())

	msgs := s.ModelHistory()
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, llm.RoleBot, msgs[1].Role)

	c := s.Clone()
	c.History[0].Message = "changed"
	assert.Equal(t, "hello", s.History[0].Message)
}

func TestNewConversationID(t *testing.T) {
	id := NewConversationID()
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), id)
	assert.NotEqual(t, id, NewConversationID())
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_, found, err := st.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	s := NewSession("abc", "topic", StancePro, "dummy", time.Now())
	s.AppendExchange("u", "b", time.Now())
	require.NoError(t, st.Set(ctx, s.ID, s))

	s.History[0].Message = "mutated after save"

	got, found, err := st.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "u", got.History[0].Message)
	assert.Equal(t, 1, st.Len())
}
