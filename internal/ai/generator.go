// Package ai wraps the text-generation capability: post-processing tasks
// over a transcript and ad-hoc queries over stored records.
package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"scribely/internal/apperr"
	"scribely/internal/config"
)

// Generator sends a fixed instruction plus content to a text-generation
// service and returns the response text verbatim.
type Generator interface {
	Generate(ctx context.Context, instruction, content string) (string, error)
	Name() string
}

// CreateGenerator creates the generator selected by cfg.LLMProvider
func CreateGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Generator, error) {
	logger = logger.With(zap.String("llm_provider", cfg.LLMProvider))

	switch cfg.LLMProvider {
	case "", "openai":
		if cfg.OpenAIKey == "" {
			return nil, &apperr.InvalidConfigurationError{Key: "OPENAI_API_KEY", Reason: "required when LLM_PROVIDER=openai"}
		}
		return NewOpenAIGenerator(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.LLMModel, logger), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, &apperr.InvalidConfigurationError{Key: "GEMINI_API_KEY", Reason: "required when LLM_PROVIDER=gemini"}
		}
		return NewGeminiGenerator(ctx, cfg.GeminiAPIKey, "", cfg.LLMModel, logger)
	default:
		return nil, &apperr.InvalidConfigurationError{
			Key:    "LLM_PROVIDER",
			Reason: fmt.Sprintf("unsupported LLM provider %q (supported: openai, gemini)", cfg.LLMProvider),
		}
	}
}
