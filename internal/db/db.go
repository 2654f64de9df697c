// Package db opens the SQL record store and keeps its schema current.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the store. driver is "sqlite" (dsn is a file path or a
// file: URI) or "postgres" (dsn is a libpq URL or keyword string).
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == DriverSQLite {
		// One writer at a time keeps SQLite from returning SQLITE_BUSY under
		// concurrent runs.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		id                 TEXT PRIMARY KEY,
		created_at         BIGINT NOT NULL,
		filename           TEXT NOT NULL,
		duration_ms        BIGINT NOT NULL,
		segment_count      INTEGER NOT NULL,
		missing_segments   TEXT NOT NULL DEFAULT '',
		transcript         TEXT NOT NULL,
		cleaned_transcript TEXT,
		analysis           TEXT,
		summary            TEXT,
		action_items       TEXT,
		quotes             TEXT,
		stt_provider       TEXT NOT NULL,
		llm_provider       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS records_created_at ON records (created_at DESC)`,
}

// Migrate creates the records table and its index if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
