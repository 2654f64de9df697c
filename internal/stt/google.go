package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"scribely/internal/apperr"
)

const (
	googleEndpoint = "https://speech.googleapis.com"
	googleScope    = "https://www.googleapis.com/auth/cloud-platform"
)

// GoogleProvider implements STT using the Google Cloud Speech-to-Text REST API.
// Segments may be far longer than the one-minute limit of speech:recognize,
// so every request goes through speech:longrunningrecognize and the returned
// operation is polled until done.
type GoogleProvider struct {
	projectID    string
	apiKey       string
	language     string
	endpoint     string
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewGoogleProvider creates a new Google STT provider
// keyData can be either:
//   - An API key (39 characters, typically starts with "AIzaSy")
//   - A file path to a JSON key file (e.g., "./keys/google-service-account.json")
//   - A JSON string containing the service account credentials
//   - Empty, to use application default credentials
func NewGoogleProvider(ctx context.Context, projectID, keyData, language string, logger *zap.Logger) (*GoogleProvider, error) {
	p := &GoogleProvider{
		projectID:    projectID,
		language:     language,
		endpoint:     googleEndpoint,
		pollInterval: 5 * time.Second,
		logger:       logger,
	}
	if p.language == "" {
		p.language = "en-US"
	}

	keyData = strings.TrimSpace(keyData)
	if isGoogleAPIKey(keyData) {
		logger.Info("Google STT using API key authentication")
		p.apiKey = keyData
		p.httpClient = &http.Client{}
		return p, nil
	}

	var creds *google.Credentials
	var err error
	switch {
	case keyData == "":
		creds, err = google.FindDefaultCredentials(ctx, googleScope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w", err)
		}
	default:
		jsonData := []byte(keyData)
		if !strings.HasPrefix(keyData, "{") {
			jsonData, err = os.ReadFile(keyData)
			if err != nil {
				return nil, fmt.Errorf("failed to read key file '%s': %w", keyData, err)
			}
		}
		creds, err = google.CredentialsFromJSON(ctx, jsonData, googleScope)
		if err != nil {
			return nil, fmt.Errorf("failed to create credentials from JSON: %w", err)
		}
	}
	if p.projectID == "" {
		p.projectID = creds.ProjectID
	}

	logger.Info("Google STT using service account authentication", zap.String("project", p.projectID))
	p.httpClient = oauth2.NewClient(ctx, creds.TokenSource)
	return p, nil
}

func isGoogleAPIKey(s string) bool {
	return len(s) == 39 && strings.HasPrefix(s, "AIzaSy")
}

// Name returns the provider name
func (p *GoogleProvider) Name() string {
	return "google"
}

// GoogleSTTRequest represents Google Speech-to-Text API request
type GoogleSTTRequest struct {
	Config GoogleSTTConfig `json:"config"`
	Audio  GoogleSTTAudio  `json:"audio"`
}

// GoogleSTTConfig represents recognition config
type GoogleSTTConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz"`
	LanguageCode               string `json:"languageCode"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
	Model                      string `json:"model,omitempty"`
}

// GoogleSTTAudio represents audio data
type GoogleSTTAudio struct {
	Content string `json:"content"` // Base64 encoded
}

// GoogleOperation is a long-running recognize operation.
type GoogleOperation struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Response *GoogleSTTResponse `json:"response,omitempty"`
	Error    *GoogleSTTError    `json:"error,omitempty"`
}

// GoogleSTTResponse represents Google Speech-to-Text API response
type GoogleSTTResponse struct {
	Results []GoogleSTTResult `json:"results"`
}

// GoogleSTTResult represents a recognition result
type GoogleSTTResult struct {
	Alternatives []GoogleSTTAlternative `json:"alternatives"`
}

// GoogleSTTAlternative represents a transcript alternative
type GoogleSTTAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// GoogleSTTError represents an API error
type GoogleSTTError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Transcribe starts a long-running recognition and waits for it
func (p *GoogleProvider) Transcribe(ctx context.Context, audio Audio) (*Result, error) {
	startTime := time.Now()

	reqBody := GoogleSTTRequest{
		Config: GoogleSTTConfig{
			Encoding:                   googleEncoding(audio.Format),
			SampleRateHertz:            16000,
			LanguageCode:               p.language,
			EnableAutomaticPunctuation: true,
			Model:                      "latest_long",
		},
		Audio: GoogleSTTAudio{
			Content: base64.StdEncoding.EncodeToString(audio.Data),
		},
	}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var op GoogleOperation
	if err := p.call(ctx, http.MethodPost, "/v1/speech:longrunningrecognize", reqJSON, &op); err != nil {
		return nil, err
	}
	p.logger.Debug("Google STT operation started", zap.String("operation", op.Name), zap.String("name", audio.Name))

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.pollInterval):
		}
		if err := p.call(ctx, http.MethodGet, "/v1/operations/"+op.Name, nil, &op); err != nil {
			return nil, err
		}
	}

	if op.Error != nil {
		return nil, fmt.Errorf("google: %w", &apperr.StatusError{StatusCode: httpStatusFromRPC(op.Error.Code), Message: op.Error.Message})
	}

	// A long recording comes back as consecutive results, one per utterance.
	var parts []string
	var confidence float64
	if op.Response != nil {
		for _, r := range op.Response.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			parts = append(parts, r.Alternatives[0].Transcript)
			confidence += r.Alternatives[0].Confidence
		}
	}
	if len(parts) > 0 {
		confidence /= float64(len(parts))
	}

	p.logger.Debug("Google STT transcription finished",
		zap.String("name", audio.Name),
		zap.Int("results", len(parts)),
		zap.Float64("confidence", confidence),
		zap.Duration("duration", time.Since(startTime)))

	return &Result{
		Transcript: joinResults(parts),
		Confidence: confidence,
		Provider:   p.Name(),
	}, nil
}

// joinResults concatenates utterances, adding a space only where neither
// side already carries whitespace. The outer ends are kept as returned.
func joinResults(parts []string) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 && b.Len() > 0 && part != "" {
			prev := b.String()
			if !isSpace(prev[len(prev)-1]) && !isSpace(part[0]) {
				b.WriteByte(' ')
			}
		}
		b.WriteString(part)
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (p *GoogleProvider) call(ctx context.Context, method, path string, body []byte, out *GoogleOperation) error {
	url := p.endpoint + path
	if p.apiKey != "" {
		url += "?key=" + p.apiKey
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey == "" && p.projectID != "" {
		req.Header.Set("x-goog-user-project", p.projectID)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to Google Speech-to-Text: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var wrapped struct {
			Error GoogleSTTError `json:"error"`
		}
		msg := preview(respBody)
		if json.Unmarshal(respBody, &wrapped) == nil && wrapped.Error.Message != "" {
			msg = wrapped.Error.Message
		}
		return fmt.Errorf("google: %w", &apperr.StatusError{StatusCode: resp.StatusCode, Message: msg})
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse Google Speech-to-Text response: %w", err)
	}
	return nil
}

// googleEncoding maps a segment format to the API's encoding name.
// Segments are cut from the 16 kHz canonical asset.
func googleEncoding(format string) string {
	switch strings.ToLower(format) {
	case "mp3":
		return "MP3"
	case "ogg":
		return "OGG_OPUS"
	case "flac":
		return "FLAC"
	default:
		return "LINEAR16"
	}
}

// httpStatusFromRPC maps the google.rpc.Code of a failed operation to the
// HTTP status the API would have used.
func httpStatusFromRPC(code int) int {
	switch code {
	case 3, 9, 11:
		return http.StatusBadRequest
	case 5:
		return http.StatusNotFound
	case 7:
		return http.StatusForbidden
	case 8:
		return http.StatusTooManyRequests
	case 16:
		return http.StatusUnauthorized
	case 4:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
