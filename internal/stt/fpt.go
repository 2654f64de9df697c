package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"scribely/internal/apperr"
)

// FPTProvider implements STT using FPT.AI Speech-to-Text API
type FPTProvider struct {
	apiKey     string
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewFPTProvider creates a new FPT STT provider
func NewFPTProvider(apiKey, url string, logger *zap.Logger) *FPTProvider {
	return &FPTProvider{
		apiKey:     apiKey,
		url:        url,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Name returns the provider name
func (p *FPTProvider) Name() string {
	return "fpt"
}

// FPTSTTResponse represents FPT.AI STT API response
type FPTSTTResponse struct {
	Hypotheses []struct {
		Utterance  string  `json:"utterance"`
		Confidence float64 `json:"confidence"`
	} `json:"hypotheses"`
	ErrorCode int    `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Transcribe posts the raw audio bytes to FPT.AI and returns the best hypothesis
func (p *FPTProvider) Transcribe(ctx context.Context, audio Audio) (*Result, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(audio.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to FPT.AI: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	p.logger.Debug("FPT STT response", zap.String("name", audio.Name), zap.String("preview", preview(body)))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fpt: %w", &apperr.StatusError{StatusCode: resp.StatusCode, Message: preview(body)})
	}

	var sttResp FPTSTTResponse
	if err := json.Unmarshal(body, &sttResp); err != nil {
		return nil, fmt.Errorf("failed to parse FPT.AI response: %w", err)
	}
	if sttResp.ErrorCode != 0 {
		return nil, fmt.Errorf("fpt: %w", &apperr.StatusError{
			StatusCode: http.StatusBadGateway,
			Message:    fmt.Sprintf("error %d: %s", sttResp.ErrorCode, sttResp.Message),
		})
	}

	// No hypotheses means no speech in this payload, which is a valid empty text.
	var transcript string
	var confidence float64
	if len(sttResp.Hypotheses) > 0 {
		transcript = sttResp.Hypotheses[0].Utterance
		confidence = sttResp.Hypotheses[0].Confidence
	}

	p.logger.Debug("FPT STT transcription finished",
		zap.Float64("confidence", confidence),
		zap.Int("length", len(transcript)),
		zap.Duration("duration", time.Since(startTime)))

	return &Result{
		Transcript:  transcript,
		Confidence:  confidence,
		Provider:    p.Name(),
		RawResponse: string(body),
	}, nil
}
