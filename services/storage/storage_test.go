// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianDebate/services/debate"
	"github.com/AleutianAI/AleutianDebate/services/llm"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func sampleSession(id string) *debate.Session {
	s := debate.NewSession(id, "Remote work beats office work", debate.StanceContra, "openai", testTime)
	s.AppendExchange("Remote work beats office work",
		"[[STANCE:contra]] Fixed stance: contra | Fixed topic: Remote work beats office work\nOffices help.",
		testTime.Add(time.Minute))
	return s
}

// runStoreContract exercises the behavior every backend must share.
func runStoreContract(t *testing.T, store Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing id", func(t *testing.T) {
		_, found, err := store.Get(ctx, "does-not-exist")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("round trip", func(t *testing.T) {
		want := sampleSession("0123456789abcdef0123456789abcdef")
		require.NoError(t, store.Set(ctx, want.ID, want))

		got, found, err := store.Get(ctx, want.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Topic, got.Topic)
		assert.Equal(t, want.Stance, got.Stance)
		assert.Equal(t, want.Provider, got.Provider)
		assert.Equal(t, want.History, got.History)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("overwrite keeps latest", func(t *testing.T) {
		s := sampleSession("overwrite")
		require.NoError(t, store.Set(ctx, s.ID, s))

		s.AppendExchange("second", "[[STANCE:contra]] still no", testTime.Add(2*time.Minute))
		require.NoError(t, store.Set(ctx, s.ID, s))

		got, found, err := store.Get(ctx, s.ID)
		require.NoError(t, err)
		require.True(t, found)
		require.Len(t, got.History, 4)
		assert.Equal(t, debate.Turn{Role: llm.RoleBot, Message: "[[STANCE:contra]] still no"}, got.History[3])
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}

func TestMemoryBackend(t *testing.T) {
	store, err := Open(context.Background(), Config{}, nil)
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}

func TestBadgerStore_InMemory(t *testing.T) {
	store, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultBadgerConfig()
	cfg.Path = dir
	cfg.GCInterval = time.Hour

	store, err := OpenBadgerStore(cfg)
	require.NoError(t, err)
	s := sampleSession("persisted")
	require.NoError(t, store.Set(context.Background(), s.ID, s))
	require.NoError(t, store.Close())

	store, err = OpenBadgerStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	got, found, err := store.Get(context.Background(), "persisted")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, s.History, got.History)
}

func TestBadgerStore_TTLIsApplied(t *testing.T) {
	store, err := OpenBadgerStore(BadgerConfig{InMemory: true, TTL: time.Hour})
	require.NoError(t, err)
	defer store.Close()

	s := sampleSession("ttl")
	require.NoError(t, store.Set(context.Background(), s.ID, s))

	err = store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + "ttl"))
		if err != nil {
			return err
		}
		assert.NotZero(t, item.ExpiresAt())
		return nil
	})
	require.NoError(t, err)
}

func TestBadgerStore_CorruptRecord(t *testing.T) {
	store, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	err = store.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+"bad"), []byte("{not json"))
	})
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestBadgerStore_RequiresPath(t *testing.T) {
	_, err := OpenBadgerStore(BadgerConfig{})
	assert.Error(t, err)
}

func TestSQLStore(t *testing.T) {
	store, err := OpenSQLStore(context.Background(), filepath.Join(t.TempDir(), "debate.db"))
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}

func TestSQLStore_PurgeOlderThan(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLStore(ctx, filepath.Join(t.TempDir(), "debate.db"))
	require.NoError(t, err)
	defer store.Close()

	old := sampleSession("old")
	fresh := sampleSession("fresh")
	fresh.UpdatedAt = testTime.Add(48 * time.Hour)
	require.NoError(t, store.Set(ctx, old.ID, old))
	require.NoError(t, store.Set(ctx, fresh.ID, fresh))

	n, err := store.PurgeOlderThan(ctx, testTime.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, found, err := store.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = store.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMigratePath_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "debate.db")

	applied, err := MigratePath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, applied)

	applied, err = MigratePath(ctx, path)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("DEBATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DEBATE_TEST_REDIS_ADDR not set")
	}
	store, err := OpenRedisStore(context.Background(), RedisConfig{
		Addr:      addr,
		KeyPrefix: "debate-test:" + t.Name() + ":",
		TTL:       time.Minute,
	})
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "cassandra"}, nil)
	assert.Error(t, err)
}

func TestOpen_MemoryBackendPurges(t *testing.T) {
	ctx := context.Background()
	backend, err := Open(ctx, Config{Backend: "memory"}, nil)
	require.NoError(t, err)
	defer backend.Close()

	purger, ok := backend.(Purger)
	require.True(t, ok)

	require.NoError(t, backend.Set(ctx, "old", sampleSession("old")))
	n, err := purger.PurgeOlderThan(ctx, testTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, found, err := backend.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found)
}
