package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribely/internal/apperr"
)

func TestReassembleConcatenatesWithoutSeparator(t *testing.T) {
	text, gaps, err := Reassemble([]SegmentResult{
		{Index: 0, Text: "a"},
		{Index: 1, Text: "b"},
		{Index: 2, Text: "c"},
	}, PolicyAbort)
	require.NoError(t, err)
	assert.Equal(t, "abc", text)
	assert.Empty(t, gaps)
}

func TestReassembleIgnoresCompletionOrder(t *testing.T) {
	text, _, err := Reassemble([]SegmentResult{
		{Index: 2, Text: "end."},
		{Index: 0, Text: "Hello "},
		{Index: 1, Text: "world "},
	}, PolicyAbort)
	require.NoError(t, err)
	assert.Equal(t, "Hello world end.", text)
}

func TestReassembleKeepsBoundaryWhitespace(t *testing.T) {
	text, _, err := Reassemble([]SegmentResult{
		{Index: 0, Text: "split mid-wo"},
		{Index: 1, Text: "rd  here "},
		{Index: 2, Text: ""},
	}, PolicyAbort)
	require.NoError(t, err)
	assert.Equal(t, "split mid-word  here ", text)
}

func TestReassembleAbort(t *testing.T) {
	first := &apperr.TranscriptionServiceError{Provider: "stub", Segment: 1, Err: errors.New("502")}
	later := &apperr.TranscriptionServiceError{Provider: "stub", Segment: 3, Err: errors.New("503")}

	_, _, err := Reassemble([]SegmentResult{
		{Index: 3, Err: later},
		{Index: 0, Text: "a"},
		{Index: 1, Err: first},
		{Index: 2, Text: "c"},
	}, PolicyAbort)
	assert.Same(t, first, err)
}

func TestReassembleGap(t *testing.T) {
	text, gaps, err := Reassemble([]SegmentResult{
		{Index: 0, Text: "a"},
		{Index: 1, Err: errors.New("timeout")},
		{Index: 2, Text: "c"},
	}, PolicyGap)
	require.NoError(t, err)
	assert.Equal(t, "a[segment 1 untranscribed]c", text)
	assert.Equal(t, []int{1}, gaps)
}

func TestReassembleGapAllFailed(t *testing.T) {
	boom := errors.New("down")
	_, gaps, err := Reassemble([]SegmentResult{{Index: 0, Err: boom}, {Index: 1, Err: boom}}, PolicyGap)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{0, 1}, gaps)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbort, p)

	p, err = ParsePolicy(" GAP ")
	require.NoError(t, err)
	assert.Equal(t, PolicyGap, p)

	_, err = ParsePolicy("skip")
	var invalid *apperr.InvalidConfigurationError
	assert.True(t, errors.As(err, &invalid))
}
