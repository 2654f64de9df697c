package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"scribely/internal/model"
)

// ErrNotFound is returned by GetByID when no record has the id.
var ErrNotFound = errors.New("record not found")

// RecordRepository is the append-only record store
type RecordRepository interface {
	// Insert appends a new record
	Insert(ctx context.Context, rec *model.Record) error

	// List returns every record, newest first
	List(ctx context.Context) ([]model.Record, error)

	// GetByID retrieves a record by ID
	GetByID(ctx context.Context, id uuid.UUID) (*model.Record, error)

	// Driver names the backing store, e.g. "sqlite"
	Driver() string
}
