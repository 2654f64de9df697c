package audio

import (
	"fmt"
	"time"

	"scribely/internal/apperr"
)

// DefaultChunkDuration is the maximum segment length used when none is configured.
const DefaultChunkDuration = 20 * time.Minute

// Segment is one contiguous window [Start, End) of an asset.
type Segment struct {
	Index int
	Start time.Duration
	End   time.Duration
}

// Duration returns End - Start.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

func (s Segment) String() string {
	return fmt.Sprintf("segment %d [%s, %s)", s.Index, s.Start, s.End)
}

// Plan splits total into consecutive windows of at most max. The windows are
// contiguous, non-overlapping and cover [0, total) exactly; only the last one
// may be shorter than max. The result has ceil(total/max) elements.
func Plan(total, max time.Duration) ([]Segment, error) {
	if max <= 0 {
		return nil, &apperr.InvalidConfigurationError{Key: "CHUNK_MINUTES", Reason: fmt.Sprintf("segment duration must be positive, got %s", max)}
	}
	if total <= 0 {
		return nil, &apperr.EmptyAudioError{}
	}

	count := int((total + max - 1) / max)
	segments := make([]Segment, 0, count)
	for i, start := 0, time.Duration(0); start < total; i, start = i+1, start+max {
		end := start + max
		if end > total {
			end = total
		}
		segments = append(segments, Segment{Index: i, Start: start, End: end})
	}
	return segments, nil
}
