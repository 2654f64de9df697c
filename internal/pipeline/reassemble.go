package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"scribely/internal/apperr"
)

// Policy decides what a failed segment does to the transcript.
type Policy string

const (
	// PolicyAbort fails the run on the first failed segment.
	PolicyAbort Policy = "abort"
	// PolicyGap replaces a failed segment's text with GapMarker and records
	// its ordinal.
	PolicyGap Policy = "gap"
)

// ParsePolicy maps a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicyGap:
		return PolicyGap, nil
	}
	return "", &apperr.InvalidConfigurationError{Key: "SEGMENT_FAILURE_POLICY", Reason: fmt.Sprintf("unknown policy %q", s)}
}

// SegmentResult is the outcome of transcribing one segment. Err is nil on
// success, and Text may legitimately be empty for silence.
type SegmentResult struct {
	Index int
	Text  string
	Err   error
}

// GapMarker is the text that stands in for segment i under PolicyGap.
func GapMarker(i int) string {
	return fmt.Sprintf("[segment %d untranscribed]", i)
}

// Reassemble concatenates segment texts in ordinal order with no separator.
// Results may arrive in any order. Under PolicyAbort the failure with the
// lowest ordinal is returned. Under PolicyGap failed ordinals are replaced by
// GapMarker and returned as gaps, unless every segment failed.
func Reassemble(results []SegmentResult, policy Policy) (string, []int, error) {
	ordered := slices.Clone(results)
	slices.SortFunc(ordered, func(a, b SegmentResult) int { return a.Index - b.Index })

	var (
		b    strings.Builder
		gaps []int
	)
	for _, r := range ordered {
		if r.Err == nil {
			b.WriteString(r.Text)
			continue
		}
		if policy != PolicyGap {
			return "", nil, r.Err
		}
		gaps = append(gaps, r.Index)
		b.WriteString(GapMarker(r.Index))
	}

	if len(ordered) > 0 && len(gaps) == len(ordered) {
		return "", gaps, ordered[0].Err
	}
	return b.String(), gaps, nil
}
