package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SourceEvent is one row of the source event history.
type SourceEvent struct {
	Seq      int64
	At       time.Time
	Universe uint16
	Kind     string
	CID      string
	Priority uint8
	Winning  uint8
	Sources  int
}

// Store provides durable storage for the source event history.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at the given path and
// applies pragmas and schema. Idempotent - safe to call on an existing
// database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to history database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends one event to the history. The caller fills everything
// but Seq, which the database assigns.
func (s *Store) Record(ctx context.Context, ev SourceEvent) error {
	const q = `
		INSERT INTO source_events (at, universe, kind, cid, priority, winning, sources)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		ev.At.UTC().Format(time.RFC3339Nano),
		ev.Universe, ev.Kind, ev.CID, ev.Priority, ev.Winning, ev.Sources)
	if err != nil {
		return fmt.Errorf("record source event: %w", err)
	}
	return nil
}

// List returns the most recent events, newest first. limit <= 0 means
// no limit.
func (s *Store) List(ctx context.Context, limit int) ([]SourceEvent, error) {
	q := `
		SELECT seq, at, universe, kind, cid, priority, winning, sources
		FROM source_events
		ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query source events: %w", err)
	}
	defer rows.Close()

	var events []SourceEvent
	for rows.Next() {
		var ev SourceEvent
		var at string
		if err := rows.Scan(&ev.Seq, &at, &ev.Universe, &ev.Kind, &ev.CID,
			&ev.Priority, &ev.Winning, &ev.Sources); err != nil {
			return nil, fmt.Errorf("scan source event: %w", err)
		}
		ev.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp %q: %w", at, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source events: %w", err)
	}
	return events, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}
