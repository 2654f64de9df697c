package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"scribely/internal/apperr"
)

// OpenAIProvider implements STT using the OpenAI audio transcription endpoint
type OpenAIProvider struct {
	client   *openai.Client
	model    string
	language string
	logger   *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI STT provider. An empty baseURL keeps
// the public API endpoint.
func NewOpenAIProvider(apiKey, baseURL, model, language string, logger *zap.Logger) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		language: language,
		logger:   logger,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Transcribe uploads the payload to the transcription endpoint
func (p *OpenAIProvider) Transcribe(ctx context.Context, audio Audio) (*Result, error) {
	startTime := time.Now()

	p.logger.Debug("Sending audio to OpenAI",
		zap.String("name", audio.Name),
		zap.Int("size_bytes", len(audio.Data)),
		zap.String("model", p.model))

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.model,
		FilePath: audio.Name,
		Reader:   bytes.NewReader(audio.Data),
		Language: p.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return nil, openAIError(err)
	}

	p.logger.Debug("OpenAI transcription finished",
		zap.String("name", audio.Name),
		zap.Int("length", len(resp.Text)),
		zap.Duration("duration", time.Since(startTime)))

	return &Result{
		Transcript: resp.Text,
		Provider:   p.Name(),
	}, nil
}

// openAIError keeps the upstream detail and exposes the status code so the
// caller can tell transient failures from permanent ones.
func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai: %w", &apperr.StatusError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openai: %w", &apperr.StatusError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()})
	}
	return fmt.Errorf("openai: %w", err)
}
