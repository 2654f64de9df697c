// Package pipeline turns one uploaded recording into a persisted Record:
// normalize, chunk, transcribe, reassemble, post-process and persist.
package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scribely/internal/ai"
	"scribely/internal/apperr"
	"scribely/internal/audio"
	"scribely/internal/metrics"
	"scribely/internal/model"
	"scribely/internal/repository"
	"scribely/internal/retry"
	"scribely/internal/storage"
	"scribely/internal/stt"
)

var errNoGenerator = errors.New("no text-generation provider configured")

type Options struct {
	ChunkDuration          time.Duration
	SegmentFormat          string
	Policy                 Policy
	TranscribeConcurrency  int
	PostProcessConcurrency int
	Retries                int
	Timeout                time.Duration
	WorkDir                string
}

// DefaultOptions matches the configuration defaults.
func DefaultOptions() Options {
	return Options{
		ChunkDuration:          audio.DefaultChunkDuration,
		SegmentFormat:          "mp3",
		Policy:                 PolicyAbort,
		TranscribeConcurrency:  1,
		PostProcessConcurrency: 3,
		Retries:                2,
		Timeout:                5 * time.Minute,
	}
}

// Normalizer converts uploads to the canonical format and cuts segments.
// *audio.Normalizer implements it.
type Normalizer interface {
	Normalize(ctx context.Context, src *audio.Asset, dir string) (*audio.Asset, error)
	Extract(ctx context.Context, asset *audio.Asset, seg audio.Segment, format string, dir string) (string, error)
}

// Deps are the collaborators of a Pipeline. Generator and Store may be nil:
// without a Generator every requested task fails, without a Store nothing
// is persisted. StoreErr is why the Store is missing when persistence was
// wanted; every run then reports it as a persist failure.
type Deps struct {
	Normalizer  Normalizer
	Transcriber stt.Provider
	Generator   ai.Generator
	Store       repository.RecordRepository
	StoreErr    error
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

type Pipeline struct {
	opts Options
	deps Deps
}

func New(opts Options, deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.TranscribeConcurrency < 1 {
		opts.TranscribeConcurrency = 1
	}
	if opts.PostProcessConcurrency < 1 {
		opts.PostProcessConcurrency = 1
	}
	if opts.SegmentFormat == "" {
		opts.SegmentFormat = "mp3"
	}
	if opts.Policy == "" {
		opts.Policy = PolicyAbort
	}
	return &Pipeline{opts: opts, deps: deps}
}

// Input is one upload to process.
type Input struct {
	Filename string
	Body     io.Reader
	Tasks    []model.ArtifactKind
}

// Outcome is what a completed run produced. Failures lists the non-fatal
// problems: failed post-processing tasks and a failed persist.
type Outcome struct {
	RunID        string           `json:"run_id"`
	Record       *model.Record    `json:"record"`
	Artifacts    []model.Artifact `json:"artifacts"`
	SegmentCount int              `json:"segment_count"`
	Gaps         []int            `json:"gaps,omitempty"`
	Failures     []StageFailure   `json:"failures,omitempty"`
	Persisted    bool             `json:"persisted"`
}

// Process runs the whole pipeline for in. A returned error is fatal and its
// stage is given by apperr.Stage. Transient files are removed on every path.
func (p *Pipeline) Process(ctx context.Context, in Input) (out *Outcome, err error) {
	run := newRun(in.Filename, in.Tasks, p.deps.Logger)
	log := run.Logger
	log.Info("Run started", zap.String("filename", in.Filename), zap.Int("tasks", len(in.Tasks)))

	defer func() {
		switch {
		case err != nil:
			p.deps.Metrics.Run("failed")
			log.Error("Run failed", zap.String("stage", apperr.Stage(err)), zap.Error(err))
		case len(out.Failures) > 0 || len(out.Gaps) > 0:
			p.deps.Metrics.Run("partial")
			log.Info("Run finished with warnings", zap.Int("failures", len(out.Failures)), zap.Ints("gaps", out.Gaps))
		default:
			p.deps.Metrics.Run("ok")
			log.Info("Run finished", zap.Duration("elapsed", time.Since(run.StartedAt)))
		}
	}()

	ws, err := storage.NewWorkspace(p.opts.WorkDir, run.ID)
	if err != nil {
		return nil, err
	}
	run.workspace = ws
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			log.Warn("Failed to remove run workspace", zap.String("dir", ws.Dir), zap.Error(cerr))
		}
	}()

	upload, err := ws.SaveUpload(in.Filename, in.Body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	asset, err := p.deps.Normalizer.Normalize(ctx, upload, ws.Dir)
	p.deps.Metrics.Stage("normalize", start)
	if err != nil {
		return nil, err
	}
	// The upload is no longer needed once the canonical rendition exists.
	os.Remove(upload.Path)

	segments, err := audio.Plan(asset.Duration, p.opts.ChunkDuration)
	if err != nil {
		var empty *apperr.EmptyAudioError
		if errors.As(err, &empty) {
			empty.Name = in.Filename
		}
		return nil, err
	}
	log.Info("Audio chunked",
		zap.Duration("duration", asset.Duration),
		zap.Duration("max_segment", p.opts.ChunkDuration),
		zap.Int("segments", len(segments)))

	start = time.Now()
	transcript, gaps, err := p.transcribe(ctx, run, asset, segments)
	p.deps.Metrics.Stage("transcribe", start)
	if err != nil {
		return nil, err
	}

	rec := model.NewRecord(in.Filename, transcript)
	rec.DurationMs = asset.Duration.Milliseconds()
	rec.SegmentCount = len(segments)
	rec.MissingSegments = gaps
	rec.STTProvider = p.deps.Transcriber.Name()

	if len(in.Tasks) > 0 {
		start = time.Now()
		p.postProcess(ctx, run, rec)
		p.deps.Metrics.Stage("post-process", start)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	persisted := false
	switch {
	case p.deps.Store != nil:
		start = time.Now()
		if perr := p.deps.Store.Insert(ctx, rec); perr != nil {
			run.fail("", asPersistenceError(p.deps.Store.Driver(), perr))
		} else {
			persisted = true
			log.Info("Record persisted", zap.String("record_id", rec.ID.String()))
		}
		p.deps.Metrics.Stage("persist", start)
	case p.deps.StoreErr != nil:
		run.fail("", asPersistenceError("", p.deps.StoreErr))
	}

	return &Outcome{
		RunID:        run.ID.String(),
		Record:       rec,
		Artifacts:    rec.Artifacts(),
		SegmentCount: len(segments),
		Gaps:         gaps,
		Failures:     run.Failures(),
		Persisted:    persisted,
	}, nil
}

func asPersistenceError(driver string, err error) error {
	if errors.As(err, new(*apperr.PersistenceError)) {
		return err
	}
	return &apperr.PersistenceError{Driver: driver, Err: err}
}

// transcribe materializes and transcribes every segment on a bounded pool.
// Results are stored by ordinal so completion order does not matter.
func (p *Pipeline) transcribe(ctx context.Context, run *Run, asset *audio.Asset, segments []audio.Segment) (string, []int, error) {
	results := make([]SegmentResult, len(segments))
	abort := p.opts.Policy != PolicyGap

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.TranscribeConcurrency)
	for i, seg := range segments {
		g.Go(func() error {
			text, err := p.transcribeSegment(gctx, run, asset, seg)
			results[i] = SegmentResult{Index: seg.Index, Text: text, Err: err}
			p.deps.Metrics.Segment(err == nil)
			if err != nil {
				run.Logger.Warn("Segment failed", zap.Int("segment", seg.Index), zap.Error(err))
				if abort {
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()
	if cerr := ctx.Err(); cerr != nil {
		return "", nil, cerr
	}
	if err != nil {
		return "", nil, err
	}
	return Reassemble(results, p.opts.Policy)
}

func (p *Pipeline) transcribeSegment(ctx context.Context, run *Run, asset *audio.Asset, seg audio.Segment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	provider := p.deps.Transcriber

	path, err := p.deps.Normalizer.Extract(ctx, asset, seg, p.opts.SegmentFormat, run.workspace.Dir)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &apperr.ChunkError{Segment: seg.Index, Err: err}
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &apperr.ChunkError{Segment: seg.Index, Err: err}
	}
	payload := stt.Audio{Name: filepath.Base(path), Format: p.opts.SegmentFormat, Data: data}

	var res *stt.Result
	err = retry.Do(ctx, p.opts.Retries, func() error {
		callCtx, cancel := p.callContext(ctx)
		defer cancel()
		var err error
		res, err = provider.Transcribe(callCtx, payload)
		return err
	})
	if err != nil {
		return "", &apperr.TranscriptionServiceError{Provider: provider.Name(), Segment: seg.Index, Err: err}
	}

	run.Logger.Debug("Segment transcribed",
		zap.Int("segment", seg.Index),
		zap.Stringer("window", seg),
		zap.Int("length", len(res.Transcript)))
	return res.Transcript, nil
}

func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.Timeout > 0 {
		return context.WithTimeout(ctx, p.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// postProcess applies the run's tasks to rec.Transcript. Failures are
// recorded on the run and leave the artifact absent.
func (p *Pipeline) postProcess(ctx context.Context, run *Run, rec *model.Record) {
	if p.deps.Generator == nil {
		for _, kind := range run.Tasks {
			run.fail(string(kind), &apperr.GenerationServiceError{Kind: string(kind), Err: errNoGenerator})
			p.deps.Metrics.Artifact(string(kind), false)
		}
		return
	}
	rec.LLMProvider = p.deps.Generator.Name()

	runner := &ai.Runner{
		Generator: p.deps.Generator,
		Limit:     p.opts.PostProcessConcurrency,
		Retries:   p.opts.Retries,
		Timeout:   p.opts.Timeout,
		Logger:    run.Logger,
	}
	for _, r := range runner.Run(ctx, run.Tasks, rec.Transcript) {
		p.deps.Metrics.Artifact(string(r.Kind), r.Err == nil)
		if r.Err != nil {
			run.fail(string(r.Kind), r.Err)
			continue
		}
		rec.SetArtifact(r.Kind, r.Text)
	}
}
