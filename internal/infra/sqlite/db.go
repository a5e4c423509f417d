// Package sqlite is the local store backend: boletos, merchant profiles and the
// append-only pix generation ledger in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dsn == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS merchant_profiles (
			tenant_id TEXT PRIMARY KEY,
			pix_key TEXT NOT NULL,
			beneficiary TEXT NOT NULL,
			city TEXT NOT NULL,
			category_code TEXT NOT NULL DEFAULT '0000'
		)`,

		`CREATE TABLE IF NOT EXISTS boletos (
			id INTEGER PRIMARY KEY,
			reference_number TEXT NOT NULL,
			amount TEXT NOT NULL,
			due_date TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending','paid','cancelled')),
			holder_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			holder_name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			discount_enabled INTEGER,
			discount_amount TEXT,
			minimum_floor TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_boletos_holder ON boletos(tenant_id, holder_id)`,

		`CREATE TABLE IF NOT EXISTS pix_generation_ledger (
			id TEXT PRIMARY KEY,
			reference_id TEXT NOT NULL,
			boleto_id INTEGER NOT NULL,
			tenant_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error_kind TEXT NOT NULL DEFAULT '',
			computed_final_amount TEXT NOT NULL,
			discount_applied TEXT NOT NULL,
			eligibility_reason TEXT NOT NULL DEFAULT '',
			diagnostics TEXT NOT NULL DEFAULT '[]',
			payload_checksum TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			expiry TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_boleto ON pix_generation_ledger(boleto_id, created_at)`,
		`CREATE TRIGGER IF NOT EXISTS pix_generation_ledger_no_update
			BEFORE UPDATE ON pix_generation_ledger
			BEGIN SELECT RAISE(ABORT, 'pix_generation_ledger is append-only'); END`,
		`CREATE TRIGGER IF NOT EXISTS pix_generation_ledger_no_delete
			BEFORE DELETE ON pix_generation_ledger
			BEGIN SELECT RAISE(ABORT, 'pix_generation_ledger is append-only'); END`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}

	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i > 0 {
		return s[:i]
	}
	return s
}

// Store implements the boleto, merchant and ledger ports over one database.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

// NewStore wraps db. loc is used to read date-only due dates.
func NewStore(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// wrap turns deadline and lock contention errors into transient failures.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
		return &domain.ErrTransientIO{Operation: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
