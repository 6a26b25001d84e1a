// Package sqlite is the single transactional store for ecoboard.
// All cross-entity invariants (vote rows vs. approval counter, balance vs.
// audit events) are maintained by committing the composite writes for one
// operation in one transaction before release.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle and exposes the store operations.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	raw, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes writers; sqlite allows one writer anyway.
	raw.SetMaxOpenConns(1)

	db := &DB{db: raw}
	if err := db.migrate(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error { return db.db.Close() }

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS task (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			reward      INTEGER NOT NULL DEFAULT 0,
			assignee    TEXT NOT NULL DEFAULT '',
			created_by  TEXT NOT NULL,
			due_date    TEXT,
			updated_at  TEXT NOT NULL,
			created_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_status ON task(status)`,

		// One open voting phase per task, at most.
		`CREATE TABLE IF NOT EXISTS approval (
			task_id    INTEGER PRIMARY KEY,
			phase      TEXT NOT NULL,
			counter    INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_approval_phase ON approval(phase, created_at)`,

		// One vote per (voter, task) per phase; votes are cleared on settlement,
		// so the primary key enforces the per-phase uniqueness.
		`CREATE TABLE IF NOT EXISTS vote (
			voter_id TEXT NOT NULL,
			task_id  INTEGER NOT NULL,
			type     TEXT NOT NULL,
			PRIMARY KEY (voter_id, task_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vote_task ON vote(task_id, type)`,

		`CREATE TABLE IF NOT EXISTS account (
			user_id    TEXT PRIMARY KEY,
			amount     INTEGER NOT NULL DEFAULT 0,
			status     TEXT NOT NULL DEFAULT 'ACTIVE',
			updated_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,

		// Append-only audit trail: one row per successful ledger mutation.
		`CREATE TABLE IF NOT EXISTS event (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			value      INTEGER NOT NULL,
			kind       TEXT NOT NULL,
			initiator  TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_user ON event(user_id)`,

		`CREATE TABLE IF NOT EXISTS item (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price       INTEGER NOT NULL,
			stock       INTEGER NOT NULL DEFAULT 0,
			created_by  TEXT NOT NULL,
			created_at  TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS purchase (
			id         TEXT PRIMARY KEY,
			item_id    INTEGER NOT NULL,
			user_id    TEXT NOT NULL,
			price      INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_purchase_user ON purchase(user_id)`,

		`CREATE TABLE IF NOT EXISTS attachment (
			id           TEXT PRIMARY KEY,
			task_id      INTEGER NOT NULL,
			content_type TEXT NOT NULL,
			length       INTEGER NOT NULL,
			content      BLOB NOT NULL,
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attachment_task ON attachment(task_id)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// ─── Time encoding ──────────────────────────────────────────────────────────
// Timestamps are stored as RFC3339 UTC text so lexicographic comparison in
// SQL matches chronological order.

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func decodeNullTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	return decodeTime(s.String)
}
