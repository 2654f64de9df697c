package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"scribely/internal/apperr"
	"scribely/internal/config"
)

// CreateProvider creates the STT provider selected by cfg.STTProvider
func CreateProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Provider, error) {
	logger = logger.With(zap.String("stt_provider", cfg.STTProvider))

	switch cfg.STTProvider {
	case "", "openai":
		if cfg.OpenAIKey == "" {
			return nil, &apperr.InvalidConfigurationError{Key: "OPENAI_API_KEY", Reason: "required when STT_PROVIDER=openai"}
		}
		logger.Info("Creating OpenAI STT provider", zap.String("model", cfg.STTModel))
		return NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.STTModel, cfg.STTLanguage, logger), nil
	case "fpt":
		if cfg.FPTApiKey == "" {
			return nil, &apperr.InvalidConfigurationError{Key: "FPT_AI_API_KEY", Reason: "required when STT_PROVIDER=fpt"}
		}
		logger.Info("Creating FPT STT provider", zap.String("url", cfg.FPTSTTURL))
		return NewFPTProvider(cfg.FPTApiKey, cfg.FPTSTTURL, logger), nil
	case "google":
		keyData := cfg.GoogleSTTKeyFile
		if keyData == "" {
			keyData = cfg.GoogleSTTAPIKey
		}
		p, err := NewGoogleProvider(ctx, cfg.GoogleSTTProjectID, keyData, cfg.STTLanguage, logger)
		if err != nil {
			return nil, &apperr.InvalidConfigurationError{Key: "GOOGLE_STT_KEY_FILE", Reason: err.Error()}
		}
		return p, nil
	default:
		return nil, &apperr.InvalidConfigurationError{
			Key:    "STT_PROVIDER",
			Reason: fmt.Sprintf("unsupported STT provider %q (supported: openai, google, fpt)", cfg.STTProvider),
		}
	}
}
