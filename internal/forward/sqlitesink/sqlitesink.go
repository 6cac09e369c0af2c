// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package sqlitesink persists records in a SQLite database. It is meant for Audit
// records, which must outlive the process that logged them.
package sqlitesink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/kvjson"
	"github.com/mia-platform/actorlog/internal/level"
	"github.com/mia-platform/actorlog/internal/runtime"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var (
	// ErrMissingPath is returned when no database path is given.
	ErrMissingPath = errors.New("sqlite path is required")
	// ErrInvalidLimit is returned by List for non positive limits.
	ErrInvalidLimit = errors.New("limit must be greater than zero")
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	logged_at INTEGER NOT NULL,
	level TEXT NOT NULL,
	log_id INTEGER NOT NULL,
	target TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	kv TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS records_level_idx ON records (level, logged_at);
`

var (
	_ forward.Sink   = &Sink{}
	_ forward.Closer = &Sink{}
)

// Sink writes each record as a row of the records table.
type Sink struct {
	db  *sql.DB
	now func() time.Time
}

// StoredRecord is a row of the records table.
type StoredRecord struct {
	ID       int64
	LoggedAt time.Time
	Level    level.Level
	LogID    runtime.LogID
	Target   string
	Message  string
	// KV holds the key/value pairs as a JSON object.
	KV string
}

// Open opens the database at path, creating the schema when missing.
func Open(ctx context.Context, path string) (*Sink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrMissingPath
	}

	dsn := path
	if path != MemoryPath {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// every connection to :memory: is a distinct database
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Sink{db: db, now: time.Now}, nil
}

func (s *Sink) Forward(ctx context.Context, record *runtime.Record) error {
	loggedAt := record.Time
	if loggedAt.IsZero() {
		loggedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO records (
	logged_at,
	level,
	log_id,
	target,
	message,
	kv
) VALUES (?, ?, ?, ?, ?, ?)
`,
		loggedAt.UTC().UnixMilli(),
		record.Level.String(),
		int64(record.ID),
		record.Target,
		record.Message,
		kvjson.Object(record.KV),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first.
func (s *Sink) List(ctx context.Context, limit int) ([]StoredRecord, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT
	id,
	logged_at,
	level,
	log_id,
	target,
	message,
	kv
FROM records
ORDER BY logged_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := make([]StoredRecord, 0, limit)
	for rows.Next() {
		var (
			stored    StoredRecord
			loggedAt  int64
			levelName string
			logID     int64
		)
		if err := rows.Scan(&stored.ID, &loggedAt, &levelName, &logID, &stored.Target, &stored.Message, &stored.KV); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		stored.LoggedAt = time.UnixMilli(loggedAt).UTC()
		stored.LogID = runtime.LogID(logID)
		if stored.Level, err = level.ParseLevel(levelName); err != nil {
			return nil, fmt.Errorf("scan record %d: %w", stored.ID, err)
		}
		records = append(records, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Close releases the database.
func (s *Sink) Close(context.Context) error {
	return s.db.Close()
}
