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
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDebate/services/debate"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLStore persists sessions in a SQLite "conversations" table.
//
// # Description
//
// One row per conversation. The history column holds the ordered turns as
// a JSON array. The schema is owned by the goose migrations embedded in this
// package and is brought up to date on open.
//
// # Thread Safety
//
// Safe for concurrent use. Writes go through a single connection.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens (creating if needed) the SQLite file at path and
// applies pending migrations.
func OpenSQLStore(ctx context.Context, path string) (*SQLStore, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("path is required for the sqlite backend")
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Migrate applies every pending migration and returns the versions applied.
func Migrate(ctx context.Context, db *sql.DB) ([]int64, error) {
	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	applied := make([]int64, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Version)
	}
	return applied, nil
}

// MigratePath opens the SQLite file at path, migrates it and closes it.
func MigratePath(ctx context.Context, path string) ([]int64, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return Migrate(ctx, db)
}

// Get implements debate.Store.
func (s *SQLStore) Get(ctx context.Context, id string) (*debate.Session, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, stance, provider, history, created_at, updated_at
		   FROM conversations WHERE id = ?`, id)

	var (
		sess    debate.Session
		stance  string
		history string
	)
	err := row.Scan(&sess.ID, &sess.Topic, &stance, &sess.Provider, &history, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite get %s: %w", id, err)
	}

	sess.Stance = debate.Stance(stance)
	if !sess.Stance.Valid() {
		return nil, false, fmt.Errorf("%w: stance %q", ErrCorruptRecord, stance)
	}
	if sess.History, err = decodeHistory(history); err != nil {
		return nil, false, err
	}
	return &sess, true, nil
}

// Set implements debate.Store as an upsert.
func (s *SQLStore) Set(ctx context.Context, id string, sess *debate.Session) error {
	history, err := encodeHistory(sess.History)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, topic, stance, provider, history, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   topic = excluded.topic,
		   stance = excluded.stance,
		   provider = excluded.provider,
		   history = excluded.history,
		   updated_at = excluded.updated_at`,
		id, sess.Topic, string(sess.Stance), sess.Provider, history,
		sess.CreatedAt.UTC(), sess.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite set %s: %w", id, err)
	}
	return nil
}

// PurgeOlderThan implements Purger.
func (s *SQLStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite purge: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var (
	_ Backend = (*SQLStore)(nil)
	_ Purger  = (*SQLStore)(nil)
)
