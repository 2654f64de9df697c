package ai

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scribely/internal/apperr"
	"scribely/internal/model"
	"scribely/internal/retry"
)

// Runner issues generation calls with a per-call timeout, bounded retries and
// bounded concurrency.
type Runner struct {
	Generator Generator
	Limit     int
	Retries   int
	Timeout   time.Duration
	Logger    *zap.Logger
}

// TaskResult is the outcome of one post-processing task. Exactly one of Text
// or Err is set.
type TaskResult struct {
	Kind model.ArtifactKind
	Text string
	Err  error
}

// generate runs one call and wraps any failure as GenerationServiceError.
func (r *Runner) generate(ctx context.Context, kind model.ArtifactKind, instruction, content string) (string, error) {
	var text string
	err := retry.Do(ctx, r.Retries, func() error {
		callCtx := ctx
		if r.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
			defer cancel()
		}
		var err error
		text, err = r.Generator.Generate(callCtx, instruction, content)
		return err
	})
	if err != nil {
		return "", &apperr.GenerationServiceError{Provider: r.Generator.Name(), Kind: string(kind), Err: err}
	}
	return text, nil
}

// Run applies each selected task to transcript. Tasks run concurrently up to
// Limit. A failed task never stops the others. Results are returned in the
// order of kinds.
func (r *Runner) Run(ctx context.Context, kinds []model.ArtifactKind, transcript string) []TaskResult {
	results := make([]TaskResult, len(kinds))
	if len(kinds) == 0 {
		return results
	}

	var g errgroup.Group
	if r.Limit > 0 {
		g.SetLimit(r.Limit)
	}
	for i, kind := range kinds {
		g.Go(func() error {
			results[i].Kind = kind
			task, ok := LookupTask(kind)
			if !ok {
				results[i].Err = &apperr.GenerationServiceError{Provider: r.Generator.Name(), Kind: string(kind), Err: errUnknownTask}
				return nil
			}

			start := time.Now()
			text, err := r.generate(ctx, kind, task.Instruction, transcript)
			if err != nil {
				r.Logger.Warn("Post-processing task failed", zap.String("kind", string(kind)), zap.Error(err))
				results[i].Err = err
				return nil
			}
			r.Logger.Info("Post-processing task finished",
				zap.String("kind", string(kind)),
				zap.Int("length", len(text)),
				zap.Duration("duration", time.Since(start)))
			results[i].Text = text
			return nil
		})
	}
	_ = g.Wait()
	return results
}
