// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/holomush/authstate/internal/auth"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLite is a file-backed store.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// OpenSQLite opens (creating if needed) the store at path. Parent directories
// are created. Use ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, oops.Code("KVSTORE_OPEN_FAILED").With("path", path).Wrap(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.Code("KVSTORE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, oops.Code("KVSTORE_OPEN_FAILED").With("path", path).With("statement", stmt).Wrap(err)
		}
	}

	logger := slog.Default().With("component", "kvstore")
	logger.Debug("sqlite store opened", "path", path)
	return &SQLite{db: db, logger: logger, now: time.Now}, nil
}

// Get returns the value for key or auth.ErrNotFound.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("KVSTORE_GET_FAILED").With("key", key).Wrap(err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return oops.Code("KVSTORE_SET_FAILED").With("key", key).Wrap(err)
	}
	return nil
}

// Remove deletes key. Missing keys are ignored.
func (s *SQLite) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return oops.Code("KVSTORE_REMOVE_FAILED").With("key", key).Wrap(err)
	}
	return nil
}

// RemovePrefix deletes every key starting with prefix and returns how many were removed.
func (s *SQLite) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	if err != nil {
		return 0, oops.Code("KVSTORE_REMOVE_FAILED").With("prefix", prefix).Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, oops.Code("KVSTORE_REMOVE_FAILED").With("prefix", prefix).Wrap(err)
	}
	s.logger.Debug("removed keys by prefix", "prefix", prefix, "count", n)
	return int(n), nil
}

// Keys returns the stored keys in sorted order. Nothing in the auth flow lists
// keys; it exists so tests and diagnostics can inspect what a flow left behind.
func (s *SQLite) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, oops.Code("KVSTORE_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, oops.Code("KVSTORE_LIST_FAILED").Wrap(err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("KVSTORE_LIST_FAILED").Wrap(err)
	}
	return keys, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing sqlite store failed", "error", err)
		return oops.Code("KVSTORE_CLOSE_FAILED").Wrap(err)
	}
	s.logger.Debug("sqlite store closed")
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
