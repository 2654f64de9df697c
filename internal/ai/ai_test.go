package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"scribely/internal/apperr"
	"scribely/internal/config"
	"scribely/internal/model"
)

// stubGenerator answers by instruction prefix and fails for kinds in fail.
type stubGenerator struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]bool
	inFlight int32
	maxSeen  int32
	delay    time.Duration
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(ctx context.Context, instruction, content string) (string, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		m := atomic.LoadInt32(&s.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&s.maxSeen, m, n) {
			break
		}
	}
	time.Sleep(s.delay)

	kind := kindFor(instruction)
	s.mu.Lock()
	s.calls = append(s.calls, kind)
	s.mu.Unlock()

	if s.fail[kind] {
		return "", &apperr.StatusError{StatusCode: 400, Message: "boom " + kind}
	}
	return kind + ":" + content, nil
}

func kindFor(instruction string) string {
	for _, t := range Tasks {
		if t.Instruction == instruction {
			return string(t.Kind)
		}
	}
	return "query"
}

func newRunner(t *testing.T, gen Generator) *Runner {
	return &Runner{Generator: gen, Limit: 2, Retries: 0, Timeout: time.Second, Logger: zaptest.NewLogger(t)}
}

func TestRunAttributesResultsByKind(t *testing.T) {
	gen := &stubGenerator{delay: 5 * time.Millisecond}
	kinds := []model.ArtifactKind{model.KindQuotes, model.KindSummary, model.KindCleaned, model.KindAnalysis}

	results := newRunner(t, gen).Run(context.Background(), kinds, "T")

	require.Len(t, results, 4)
	for i, kind := range kinds {
		assert.Equal(t, kind, results[i].Kind)
		assert.NoError(t, results[i].Err)
		assert.Equal(t, string(kind)+":T", results[i].Text)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&gen.maxSeen), int32(2))
}

func TestRunFailureIsIsolated(t *testing.T) {
	gen := &stubGenerator{fail: map[string]bool{"summary": true}}
	kinds := []model.ArtifactKind{model.KindSummary, model.KindActionItems, model.KindQuotes}

	results := newRunner(t, gen).Run(context.Background(), kinds, "T")

	var genErr *apperr.GenerationServiceError
	require.True(t, errors.As(results[0].Err, &genErr))
	assert.Equal(t, "summary", genErr.Kind)
	assert.Equal(t, "stub", genErr.Provider)
	assert.Contains(t, genErr.Error(), "boom summary")
	assert.Empty(t, results[0].Text)

	assert.Equal(t, "action_items:T", results[1].Text)
	assert.Equal(t, "quotes:T", results[2].Text)
	assert.Len(t, gen.calls, 3)
}

func TestRunNoKinds(t *testing.T) {
	gen := &stubGenerator{}
	assert.Empty(t, newRunner(t, gen).Run(context.Background(), nil, "T"))
	assert.Empty(t, gen.calls)
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds([]string{"summary, quotes", "SUMMARY", "", "action_items"})
	require.NoError(t, err)
	assert.Equal(t, []model.ArtifactKind{model.KindSummary, model.KindQuotes, model.KindActionItems}, kinds)

	_, err = ParseKinds([]string{"summary,translate"})
	assert.ErrorContains(t, err, "translate")

	_, err = ParseKinds([]string{"ad_hoc_query_result"})
	assert.Error(t, err)
}

func TestEveryPostProcessKindHasATask(t *testing.T) {
	for _, kind := range model.PostProcessKinds {
		task, ok := LookupTask(kind)
		assert.True(t, ok, kind)
		assert.NotEmpty(t, task.Instruction)
	}
}

func TestAsk(t *testing.T) {
	gen := &stubGenerator{}
	summary := "a short summary"
	records := []model.Record{
		{Filename: "one.mp3", Transcript: "first transcript", Summary: &summary},
		{Filename: "two.mp3", Transcript: "second transcript"},
	}

	art, err := newRunner(t, gen).Ask(context.Background(), Query{Instruction: " what was decided? ", Fields: []string{"summary,transcript"}}, records)
	require.NoError(t, err)
	assert.Equal(t, model.KindQuery, art.Kind)

	assert.True(t, strings.HasPrefix(art.Text, "query:"))
	assert.Contains(t, art.Text, "--- summary ---\na short summary")
	assert.Contains(t, art.Text, "--- transcript ---\nsecond transcript")
	assert.Equal(t, 1, strings.Count(art.Text, "--- summary ---"), "absent fields are skipped")
	assert.True(t, strings.HasSuffix(art.Text, "Instruction: what was decided?"))
	assert.Less(t, strings.Index(art.Text, "one.mp3"), strings.Index(art.Text, "two.mp3"))
}

func TestAskValidation(t *testing.T) {
	r := newRunner(t, &stubGenerator{})
	records := []model.Record{{Transcript: "x"}}

	_, err := r.Ask(context.Background(), Query{Instruction: "   "}, records)
	assert.ErrorIs(t, err, ErrEmptyInstruction)

	_, err = r.Ask(context.Background(), Query{Instruction: "q", Fields: []string{"password"}}, records)
	assert.ErrorContains(t, err, "password")

	_, err = r.Ask(context.Background(), Query{Instruction: "q"}, nil)
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestQueryNormalizeDefaultsToAllFields(t *testing.T) {
	q := Query{Instruction: "q"}
	require.NoError(t, q.Normalize())
	assert.Equal(t, model.QueryFields, q.Fields)
}

func TestRunnerRetriesTransientFailures(t *testing.T) {
	var calls int32
	gen := generatorFunc(func(ctx context.Context, instruction, content string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", &apperr.StatusError{StatusCode: 503, Message: "overloaded"}
		}
		return "ok", nil
	})
	r := newRunner(t, gen)
	r.Retries = 2

	results := r.Run(context.Background(), []model.ArtifactKind{model.KindSummary}, "T")
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "ok", results[0].Text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

type generatorFunc func(ctx context.Context, instruction, content string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, instruction, content string) (string, error) {
	return f(ctx, instruction, content)
}
func (f generatorFunc) Name() string { return "func" }

func TestOpenAIGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "summarize", req.Messages[0].Content)
			assert.Equal(t, "the transcript", req.Messages[1].Content)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"- point one\n"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("sk", srv.URL+"/v1", "", zaptest.NewLogger(t))
	out, err := g.Generate(context.Background(), "summarize", "the transcript")
	require.NoError(t, err)
	assert.Equal(t, "- point one\n", out, "response is returned verbatim")
}

func TestOpenAIGeneratorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("sk", srv.URL+"/v1", "gpt-4o", zaptest.NewLogger(t))
	_, err := g.Generate(context.Background(), "i", "c")

	var status *apperr.StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusTooManyRequests, status.StatusCode)
	assert.True(t, status.Temporary())
}

func TestGeminiGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent"), r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "systemInstruction")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"there"}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGeminiGenerator(context.Background(), "key", srv.URL, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	out, err := g.Generate(context.Background(), "instruction", "content")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)
}

func TestCreateGenerator(t *testing.T) {
	logger := zaptest.NewLogger(t)

	g, err := CreateGenerator(context.Background(), &config.Config{LLMProvider: "openai", OpenAIKey: "sk"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "openai", g.Name())

	_, err = CreateGenerator(context.Background(), &config.Config{LLMProvider: "gemini"}, logger)
	var invalid *apperr.InvalidConfigurationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "GEMINI_API_KEY", invalid.Key)

	_, err = CreateGenerator(context.Background(), &config.Config{LLMProvider: "llama"}, logger)
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "LLM_PROVIDER", invalid.Key)
}
