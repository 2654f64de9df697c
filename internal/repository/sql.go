package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribely/internal/apperr"
	"scribely/internal/db"
	"scribely/internal/model"
)

type sqlRepository struct {
	db     *sql.DB
	driver string
}

// NewSQLRepository creates a repository over an open SQLite or PostgreSQL
// connection. driver selects the placeholder style.
func NewSQLRepository(conn *sql.DB, driver string) RecordRepository {
	return &sqlRepository{
		db:     conn,
		driver: driver,
	}
}

func (r *sqlRepository) Driver() string {
	return r.driver
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (r *sqlRepository) rebind(query string) string {
	if r.driver != db.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

const recordColumns = `
	id, created_at, filename, duration_ms, segment_count, missing_segments,
	transcript, cleaned_transcript, analysis, summary, action_items, quotes,
	stt_provider, llm_provider`

// Insert creates a new record row. Absent artifacts are written as NULL.
func (r *sqlRepository) Insert(ctx context.Context, rec *model.Record) error {
	query := r.rebind(`
		INSERT INTO records (` + recordColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	missing, err := encodeMissing(rec.MissingSegments)
	if err != nil {
		return &apperr.PersistenceError{Driver: r.driver, Err: err}
	}

	_, err = r.db.ExecContext(ctx, query,
		rec.ID.String(),
		rec.CreatedAt.UnixMilli(),
		rec.Filename,
		rec.DurationMs,
		rec.SegmentCount,
		missing,
		rec.Transcript,
		rec.CleanedTranscript,
		rec.Analysis,
		rec.Summary,
		rec.ActionItems,
		rec.Quotes,
		rec.STTProvider,
		rec.LLMProvider,
	)
	if err != nil {
		return &apperr.PersistenceError{Driver: r.driver, Err: fmt.Errorf("failed to insert record: %w", err)}
	}
	return nil
}

// GetByID retrieves a record by ID
func (r *sqlRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Record, error) {
	query := r.rebind(`SELECT ` + recordColumns + ` FROM records WHERE id = ?`)

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &apperr.PersistenceError{Driver: r.driver, Err: fmt.Errorf("failed to get record: %w", err)}
	}
	return rec, nil
}

// List returns every record, newest first
func (r *sqlRepository) List(ctx context.Context) ([]model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &apperr.PersistenceError{Driver: r.driver, Err: fmt.Errorf("failed to query records: %w", err)}
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &apperr.PersistenceError{Driver: r.driver, Err: fmt.Errorf("failed to scan record: %w", err)}
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Driver: r.driver, Err: fmt.Errorf("error iterating rows: %w", err)}
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.Record, error) {
	var (
		rec       model.Record
		id        string
		createdAt int64
		missing   string
	)
	err := s.Scan(
		&id,
		&createdAt,
		&rec.Filename,
		&rec.DurationMs,
		&rec.SegmentCount,
		&missing,
		&rec.Transcript,
		&rec.CleanedTranscript,
		&rec.Analysis,
		&rec.Summary,
		&rec.ActionItems,
		&rec.Quotes,
		&rec.STTProvider,
		&rec.LLMProvider,
	)
	if err != nil {
		return nil, err
	}

	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid record id %q: %w", id, err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	if rec.MissingSegments, err = decodeMissing(missing); err != nil {
		return nil, err
	}
	return &rec, nil
}

func encodeMissing(gaps []int) (string, error) {
	if len(gaps) == 0 {
		return "", nil
	}
	b, err := json.Marshal(gaps)
	if err != nil {
		return "", fmt.Errorf("failed to marshal missing segments: %w", err)
	}
	return string(b), nil
}

func decodeMissing(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var gaps []int
	if err := json.Unmarshal([]byte(s), &gaps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal missing segments: %w", err)
	}
	return gaps, nil
}
