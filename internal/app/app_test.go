package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"scribely/internal/apperr"
	"scribely/internal/config"
	"scribely/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		WorkDir:                t.TempDir(),
		FFmpegPath:             "ffmpeg",
		ChunkDuration:          20 * time.Minute,
		SegmentFormat:          "mp3",
		SegmentFailurePolicy:   "gap",
		TranscribeConcurrency:  1,
		PostProcessConcurrency: 3,
		UpstreamRetries:        2,
		UpstreamTimeout:        time.Minute,
		MaxUploadBytes:         200 << 20,
		STTProvider:            "openai",
		STTModel:               "whisper-1",
		OpenAIKey:              "sk-test",
		LLMProvider:            "openai",
		StoreDriver:            "sqlite",
		DatabaseURL:            filepath.Join(t.TempDir(), "scribely.db"),
		TokenTTL:               time.Hour,
	}
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.Equal(t, "openai", a.Transcriber.Name())
	require.NotNil(t, a.Generator)
	require.NotNil(t, a.Records)
	assert.Equal(t, "sqlite", a.Records.Driver())
	assert.NoError(t, a.storeErr)
	assert.NotNil(t, a.Pipeline)

	rec := model.NewRecord("memo.wav", "hello")
	require.NoError(t, a.Records.Insert(ctx, rec))
	got, err := a.Records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Transcript)

	h := a.Handler()
	assert.NotNil(t, h.Querier)
	assert.False(t, h.Auth.Enabled())
	assert.Equal(t, int64(200<<20), h.MaxUploadBytes)

	assert.NoError(t, a.Close(ctx))
}

func TestBuildRequiresTranscriber(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenAIKey = ""

	_, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	var invalid *apperr.InvalidConfigurationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "OPENAI_API_KEY", invalid.Key)
}

func TestBuildToleratesMissingGenerator(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLMProvider = "gemini"
	cfg.AppPassword = "pw"

	a, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Nil(t, a.Generator)
	assert.Nil(t, a.Querier())
	h := a.Handler()
	assert.Nil(t, h.Querier)
	assert.True(t, h.Auth.Enabled())
}

func TestBuildToleratesMissingStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "missing", "dir", "scribely.db")

	a, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Nil(t, a.Records)
	require.Error(t, a.storeErr)
	assert.Equal(t, "persist", apperr.Stage(a.storeErr))
	assert.Contains(t, a.storeErr.Error(), "sqlite")
	assert.NotNil(t, a.NewPipeline(true))
}

func TestBuildRejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.SegmentFailurePolicy = "retry-forever"

	_, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	var invalid *apperr.InvalidConfigurationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "SEGMENT_FAILURE_POLICY", invalid.Key)
}
