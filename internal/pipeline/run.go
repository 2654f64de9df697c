package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scribely/internal/apperr"
	"scribely/internal/model"
	"scribely/internal/storage"
)

// StageFailure is a human-readable report of one failed step.
type StageFailure struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// Run carries everything that belongs to one pipeline execution. It is
// created by Process and never shared between executions.
type Run struct {
	ID        uuid.UUID
	Filename  string
	Tasks     []model.ArtifactKind
	StartedAt time.Time
	Logger    *zap.Logger

	workspace *storage.Workspace

	mu       sync.Mutex
	failures []StageFailure
}

func newRun(filename string, tasks []model.ArtifactKind, logger *zap.Logger) *Run {
	id := uuid.New()
	return &Run{
		ID:        id,
		Filename:  filename,
		Tasks:     tasks,
		StartedAt: time.Now(),
		Logger:    logger.With(zap.String("run_id", id.String())),
	}
}

// fail records a non-fatal failure.
func (r *Run) fail(kind string, err error) {
	stage := apperr.Stage(err)
	r.mu.Lock()
	r.failures = append(r.failures, StageFailure{Stage: stage, Kind: kind, Message: err.Error()})
	r.mu.Unlock()
	r.Logger.Warn("Stage failed", zap.String("stage", stage), zap.String("kind", kind), zap.Error(err))
}

// Failures returns a copy of the recorded failures.
func (r *Run) Failures() []StageFailure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StageFailure(nil), r.failures...)
}
