package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"scribely/internal/apperr"
	"scribely/internal/audio"
)

type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string

	WorkDir                string
	FFmpegPath             string
	ChunkDuration          time.Duration
	SegmentFormat          string
	SegmentFailurePolicy   string
	TranscribeConcurrency  int
	PostProcessConcurrency int
	UpstreamRetries        int
	UpstreamTimeout        time.Duration
	MaxUploadBytes         int64

	STTProvider        string
	STTModel           string
	STTLanguage        string
	OpenAIKey          string
	OpenAIBaseURL      string
	GoogleSTTProjectID string
	GoogleSTTKeyFile   string
	GoogleSTTAPIKey    string
	FPTApiKey          string
	FPTSTTURL          string

	LLMProvider  string
	LLMModel     string
	GeminiAPIKey string

	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	AppPassword string
	JWTSecret   string
	TokenTTL    time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "release"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		WorkDir:              getEnv("WORK_DIR", os.TempDir()),
		FFmpegPath:           getEnv("FFMPEG_PATH", "ffmpeg"),
		SegmentFormat:        strings.ToLower(getEnv("SEGMENT_FORMAT", "mp3")),
		SegmentFailurePolicy: strings.ToLower(getEnv("SEGMENT_FAILURE_POLICY", "abort")),

		STTProvider:        strings.ToLower(getEnv("STT_PROVIDER", "openai")),
		STTModel:           getEnv("STT_MODEL", "whisper-1"),
		STTLanguage:        os.Getenv("STT_LANGUAGE"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		GoogleSTTProjectID: os.Getenv("GOOGLE_STT_PROJECT_ID"),
		GoogleSTTKeyFile:   os.Getenv("GOOGLE_STT_KEY_FILE"),
		GoogleSTTAPIKey:    os.Getenv("GOOGLE_STT_API_KEY"),
		FPTApiKey:          os.Getenv("FPT_AI_API_KEY"),
		FPTSTTURL:          getEnv("FPT_AI_STT_URL", "https://api.fpt.ai/hmi/asr/general"),

		LLMProvider:  strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:     os.Getenv("LLM_MODEL"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		DatabaseURL:   getEnv("DATABASE_URL", "scribely.db"),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "scribely"),

		AppPassword: os.Getenv("APP_PASSWORD"),
	}
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.AppPassword)

	chunkMinutes, err := getFloat("CHUNK_MINUTES", 20)
	if err != nil {
		return nil, err
	}
	cfg.ChunkDuration = time.Duration(chunkMinutes * float64(time.Minute))

	if cfg.TranscribeConcurrency, err = getInt("TRANSCRIBE_CONCURRENCY", 1); err != nil {
		return nil, err
	}
	if cfg.PostProcessConcurrency, err = getInt("POSTPROCESS_CONCURRENCY", 3); err != nil {
		return nil, err
	}
	if cfg.UpstreamRetries, err = getInt("UPSTREAM_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = getDuration("UPSTREAM_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	maxMB, err := getInt("MAX_UPLOAD_MB", 200)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxMB) << 20

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations. Provider credentials are checked
// when the provider is constructed.
func (c *Config) Validate() error {
	switch {
	case c.ChunkDuration <= 0:
		return invalid("CHUNK_MINUTES", "must be greater than 0")
	case !audio.IsSegmentFormat(c.SegmentFormat):
		return invalid("SEGMENT_FORMAT", "must be one of "+strings.Join(audio.SegmentFormats, ", "))
	case !oneOf(c.SegmentFailurePolicy, "abort", "gap"):
		return invalid("SEGMENT_FAILURE_POLICY", "must be abort or gap")
	case c.TranscribeConcurrency < 1:
		return invalid("TRANSCRIBE_CONCURRENCY", "must be at least 1")
	case c.PostProcessConcurrency < 1:
		return invalid("POSTPROCESS_CONCURRENCY", "must be at least 1")
	case c.UpstreamRetries < 0:
		return invalid("UPSTREAM_RETRIES", "must not be negative")
	case c.UpstreamTimeout <= 0:
		return invalid("UPSTREAM_TIMEOUT", "must be greater than 0")
	case c.MaxUploadBytes <= 0:
		return invalid("MAX_UPLOAD_MB", "must be greater than 0")
	case !oneOf(c.STTProvider, "openai", "google", "fpt"):
		return invalid("STT_PROVIDER", "must be openai, google or fpt")
	case !oneOf(c.LLMProvider, "openai", "gemini"):
		return invalid("LLM_PROVIDER", "must be openai or gemini")
	case !oneOf(c.StoreDriver, "sqlite", "postgres", "mongo"):
		return invalid("STORE_DRIVER", "must be sqlite, postgres or mongo")
	case c.StoreDriver == "mongo" && c.MongoURI == "":
		return invalid("MONGODB_URI", "required when STORE_DRIVER=mongo")
	case c.TokenTTL <= 0:
		return invalid("TOKEN_TTL", "must be greater than 0")
	}
	return nil
}

func invalid(key, reason string) error {
	return &apperr.InvalidConfigurationError{Key: key, Reason: reason}
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalid(key, "not an integer: "+v)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, invalid(key, "not a number: "+v)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, invalid(key, "not a duration: "+v)
	}
	return d, nil
}
