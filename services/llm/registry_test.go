// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register("OpenAI", NewDummyClient())
	r.Register("dummy", NewDummyClient())

	_, ok := r.Get(" openai ")
	assert.True(t, ok)
	_, ok = r.Get("gemini")
	assert.False(t, ok)
	assert.Equal(t, []string{"dummy", "openai"}, r.Names())
}

func TestDummyClient_NeverFails(t *testing.T) {
	reply, err := NewDummyClient().Complete(context.Background(), "", nil, "The Earth is flat")
	require.NoError(t, err)
	assert.Contains(t, reply, "The Earth is flat")
	assert.Contains(t, reply, "What part would you challenge specifically?")
}

func TestRateLimitedCompleter(t *testing.T) {
	var calls atomic.Int32
	next := CompleterFunc(func(ctx context.Context, _ string, _ []Message, _ string) (string, error) {
		calls.Add(1)
		return "ok", nil
	})

	t.Run("disabled returns next", func(t *testing.T) {
		c := NewRateLimitedCompleter("p", next, 0, 0, 0)
		_, isLimited := c.(*RateLimitedCompleter)
		assert.False(t, isLimited)
	})

	t.Run("exhausted bucket is rate limited", func(t *testing.T) {
		calls.Store(0)
		c := NewRateLimitedCompleter("p", next, 0.001, 1, 10*time.Millisecond)

		out, err := c.Complete(context.Background(), "", nil, "a")
		require.NoError(t, err)
		assert.Equal(t, "ok", out)

		_, err = c.Complete(context.Background(), "", nil, "b")
		kind, ok := KindOf(err)
		require.True(t, ok)
		assert.Equal(t, KindRateLimited, kind)
		assert.Equal(t, int32(1), calls.Load(), "second call must not reach the provider")
	})
}
