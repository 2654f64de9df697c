// Package app wires configuration into the collaborators shared by the
// server and the CLI.
package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"scribely/internal/ai"
	"scribely/internal/api"
	"scribely/internal/apperr"
	"scribely/internal/audio"
	"scribely/internal/auth"
	"scribely/internal/config"
	"scribely/internal/db"
	"scribely/internal/metrics"
	"scribely/internal/pipeline"
	"scribely/internal/repository"
	"scribely/internal/stt"
)

// App holds the long-lived collaborators. Generator and Records are nil when
// text generation or the record store is unavailable.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Records     repository.RecordRepository
	Transcriber stt.Provider
	Generator   ai.Generator
	Pipeline    *pipeline.Pipeline

	policy   pipeline.Policy
	storeErr error
	closers  []func(ctx context.Context) error
}

// Build constructs every collaborator from cfg. A missing transcription
// provider is fatal. A missing generator or store is logged and tolerated.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	transcriber, err := stt.CreateProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Transcriber = transcriber

	if gen, err := ai.CreateGenerator(ctx, cfg, logger); err != nil {
		logger.Warn("Text generation unavailable, post-processing tasks will fail", zap.Error(err))
	} else {
		a.Generator = gen
	}

	if err := a.openStore(ctx); err != nil {
		logger.Warn("Record store unavailable, runs will not be persisted",
			zap.String("driver", cfg.StoreDriver), zap.Error(err))
		a.storeErr = &apperr.PersistenceError{Driver: cfg.StoreDriver, Err: err}
	}

	policy, err := pipeline.ParsePolicy(cfg.SegmentFailurePolicy)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.policy = policy
	a.Pipeline = a.NewPipeline(true)

	logger.Info("Application ready",
		zap.String("stt_provider", a.Transcriber.Name()),
		zap.Bool("text_generation", a.Generator != nil),
		zap.Bool("store", a.Records != nil),
		zap.Duration("chunk_duration", cfg.ChunkDuration),
		zap.String("segment_failure_policy", string(policy)))
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.StoreDriver {
	case "mongo":
		client, database, err := repository.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, a.Logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Disconnect)
		repo, err := repository.NewMongoRepository(ctx, database, a.Logger)
		if err != nil {
			return err
		}
		a.Records = repo
	default:
		conn, err := db.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return conn.Close() })
		if err := db.Migrate(ctx, conn); err != nil {
			return err
		}
		a.Records = repository.NewSQLRepository(conn, cfg.StoreDriver)
	}
	a.Logger.Info("Record store ready", zap.String("driver", cfg.StoreDriver))
	return nil
}

// NewPipeline returns a pipeline over the app's collaborators. With persist
// false, runs are never written to the store and nothing is reported about
// it. With persist true and no store, every run reports the startup error.
func (a *App) NewPipeline(persist bool) *pipeline.Pipeline {
	cfg := a.Config
	deps := pipeline.Deps{
		Normalizer:  audio.NewNormalizer(cfg.FFmpegPath, a.Logger),
		Transcriber: a.Transcriber,
		Metrics:     a.Metrics,
		Logger:      a.Logger,
	}
	if a.Generator != nil {
		deps.Generator = a.Generator
	}
	if persist {
		if a.Records != nil {
			deps.Store = a.Records
		} else {
			deps.StoreErr = a.storeErr
		}
	}

	return pipeline.New(pipeline.Options{
		ChunkDuration:          cfg.ChunkDuration,
		SegmentFormat:          cfg.SegmentFormat,
		Policy:                 a.policy,
		TranscribeConcurrency:  cfg.TranscribeConcurrency,
		PostProcessConcurrency: cfg.PostProcessConcurrency,
		Retries:                cfg.UpstreamRetries,
		Timeout:                cfg.UpstreamTimeout,
		WorkDir:                cfg.WorkDir,
	}, deps)
}

// Querier returns the ad-hoc query runner, or nil without a generator.
func (a *App) Querier() *ai.Runner {
	if a.Generator == nil {
		return nil
	}
	return &ai.Runner{
		Generator: a.Generator,
		Limit:     1,
		Retries:   a.Config.UpstreamRetries,
		Timeout:   a.Config.UpstreamTimeout,
		Logger:    a.Logger,
	}
}

// Handler returns the HTTP handler set for this application.
func (a *App) Handler() *api.Handler {
	gate := auth.New(a.Config.AppPassword, a.Config.JWTSecret, a.Config.TokenTTL)
	if !gate.Enabled() {
		a.Logger.Warn("APP_PASSWORD is empty, the API is open to anyone who can reach it")
	}

	h := &api.Handler{
		Pipeline:       a.Pipeline,
		Records:        a.Records,
		Auth:           gate,
		Metrics:        a.Metrics,
		MaxUploadBytes: a.Config.MaxUploadBytes,
		Logger:         a.Logger,
	}
	if q := a.Querier(); q != nil {
		h.Querier = q
	}
	return h
}

// Close releases the store connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
