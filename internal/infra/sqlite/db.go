// Package sqlite provides SQLite-based persistent storage for JudgePay.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/escrow.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "escrow.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Tx is an open transaction. It exposes the same accessors as DB, so
// multi-row operations commit or roll back as one unit.
type Tx struct {
	tx *sql.Tx
}

// Transact runs fn inside a transaction, committing on nil and rolling
// back on error.
func (d *DB) Transact(fn func(*Tx) error) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Escrow task records. IDs are assigned by the ledger in creation
		// order and never reused; terminal rows are retained for audit.
		`CREATE TABLE IF NOT EXISTS tasks (
			id                 INTEGER PRIMARY KEY,
			requester          TEXT NOT NULL,
			worker             TEXT,
			evaluator          TEXT,
			amount             INTEGER NOT NULL,
			created_at         INTEGER NOT NULL,
			deadline           INTEGER NOT NULL,
			description_hash   TEXT NOT NULL,
			output_hash        TEXT,
			output_length      INTEGER,
			min_length         INTEGER NOT NULL DEFAULT 0,
			max_length         INTEGER NOT NULL DEFAULT 0,
			required_approvals INTEGER NOT NULL DEFAULT 0,
			current_approvals  INTEGER NOT NULL DEFAULT 0,
			status             TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_requester ON tasks(requester, description_hash)`,

		// One vote per evaluator per task — the primary key enforces
		// the duplicate-vote rule at the storage layer too.
		`CREATE TABLE IF NOT EXISTS votes (
			task_id    INTEGER NOT NULL,
			voter      TEXT NOT NULL,
			approve    BOOLEAN NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (task_id, voter)
		)`,

		// Observable events, one row per state transition.
		`CREATE TABLE IF NOT EXISTS events (
			id         TEXT PRIMARY KEY,
			type       TEXT NOT NULL,
			task_id    INTEGER NOT NULL,
			actor      TEXT,
			amount     INTEGER,
			recipient  TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id)`,

		// Token ledger (double-entry bookkeeping). Every movement writes
		// matched DEBIT and CREDIT rows.
		`CREATE TABLE IF NOT EXISTS token_ledger (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			entry_type TEXT NOT NULL,
			account    TEXT NOT NULL,
			amount     INTEGER NOT NULL,
			task_id    INTEGER,
			memo       TEXT,
			balance    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_token_account ON token_ledger(account)`,

		// Two-phase allowance authorizations (approve before transferFrom).
		`CREATE TABLE IF NOT EXISTS allowances (
			owner   TEXT NOT NULL,
			spender TEXT NOT NULL,
			amount  INTEGER NOT NULL,
			PRIMARY KEY (owner, spender)
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// executor is satisfied by both *sql.DB and *sql.Tx, letting accessors run
// standalone or inside a transaction.
type executor interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n int64) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: n, Valid: true}
}
