package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStage(t *testing.T) {
	upstream := errors.New("503 from upstream")

	cases := []struct {
		err   error
		stage string
		input bool
	}{
		{&UnsupportedFormatError{Name: "a.xyz"}, "normalize", true},
		{&EmptyAudioError{Name: "a.wav"}, "chunk", true},
		{&ChunkError{Segment: 1, Err: upstream}, "chunk", false},
		{&InvalidConfigurationError{Key: "CHUNK_MINUTES", Reason: "must be > 0"}, "config", true},
		{&TranscriptionServiceError{Provider: "openai", Segment: 2, Err: upstream}, "transcribe", false},
		{fmt.Errorf("run: %w", &GenerationServiceError{Provider: "openai", Kind: "summary", Err: upstream}), "post-process", false},
		{&PersistenceError{Driver: "sqlite", Err: upstream}, "persist", false},
		{upstream, "pipeline", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.stage, Stage(tc.err), tc.err.Error())
		assert.Equal(t, tc.input, IsInputError(tc.err), tc.err.Error())
	}
	assert.Empty(t, Stage(nil))
}

func TestUnwrapKeepsUpstreamDetail(t *testing.T) {
	upstream := errors.New("rate limited")
	err := &TranscriptionServiceError{Provider: "openai", Segment: 0, Err: upstream}

	assert.ErrorIs(t, err, upstream)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "segment 0")
}

func TestStatusErrorTemporary(t *testing.T) {
	for code, want := range map[int]bool{0: true, 400: false, 401: false, 408: true, 429: true, 500: true, 503: true} {
		assert.Equal(t, want, (&StatusError{StatusCode: code}).Temporary(), code)
	}
}
