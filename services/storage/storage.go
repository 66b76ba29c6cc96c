// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage provides the persistent conversation stores.
//
// Four backends implement debate.Store:
//
//	memory  process-local map (debate.MemoryStore)
//	badger  embedded key-value store, TTL per record
//	sqlite  relational table managed by goose migrations
//	redis   shared key-value store, TTL per record
//
// Every backend round-trips id, topic, stance, provider and the ordered
// history exactly. Writes replace the whole record (last write wins).
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDebate/services/debate"
)

// ErrCorruptRecord is returned when a stored record cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt conversation record")

// Backend is a debate.Store with a lifecycle.
type Backend interface {
	debate.Store
	Ping(ctx context.Context) error
	Close() error
}

// Purger deletes conversations not written since cutoff. Backends without
// native expiry implement it.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config selects and configures a backend.
type Config struct {
	// Backend is one of "memory", "badger", "sqlite", "redis".
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Path is the BadgerDB directory or the SQLite file.
	Path string `yaml:"path" mapstructure:"path"`

	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`

	// Retention is how long an idle conversation is kept. Zero keeps
	// conversations forever.
	Retention time.Duration `yaml:"retention" mapstructure:"retention"`
}

// Open creates the configured backend.
//
// # Inputs
//
//   - ctx: Bounds connection checks and migrations.
//   - cfg: Backend selection. An empty Backend selects memory.
//   - logger: Receives backend log lines.
//
// # Outputs
//
//   - Backend: Ready to use. Caller must Close it.
//   - error: Non-nil for an unknown backend or a failed open.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return &memoryBackend{MemoryStore: debate.NewMemoryStore()}, nil
	case "badger":
		bc := DefaultBadgerConfig()
		bc.Path = cfg.Path
		bc.Logger = logger.With("component", "badger")
		bc.TTL = cfg.Retention
		var store *BadgerStore
		if store, err = OpenBadgerStore(bc); err == nil {
			backend = store
		}
	case "sqlite":
		var store *SQLStore
		if store, err = OpenSQLStore(ctx, cfg.Path); err == nil {
			backend = store
		}
	case "redis":
		var store *RedisStore
		store, err = OpenRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.Retention,
		})
		if err == nil {
			backend = store
		}
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("Conversation store opened", "backend", cfg.Backend, "retention", cfg.Retention.String())
	return backend, nil
}

// memoryBackend gives debate.MemoryStore the Backend lifecycle.
type memoryBackend struct {
	*debate.MemoryStore
}

func (memoryBackend) Ping(context.Context) error { return nil }
func (memoryBackend) Close() error               { return nil }
