package audio

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribely/internal/apperr"
)

func TestPlanFortyFiveMinutes(t *testing.T) {
	segments, err := Plan(45*time.Minute, 20*time.Minute)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, 20*time.Minute, segments[0].Duration())
	assert.Equal(t, 20*time.Minute, segments[1].Duration())
	assert.Equal(t, 5*time.Minute, segments[2].Duration())
	assert.Equal(t, 45*time.Minute, segments[2].End)
}

func TestPlanShortAudioIsOneSegment(t *testing.T) {
	for _, total := range []time.Duration{time.Millisecond, 3 * time.Minute, 20 * time.Minute} {
		segments, err := Plan(total, 20*time.Minute)
		require.NoError(t, err)
		require.Len(t, segments, 1)
		assert.Equal(t, Segment{Index: 0, Start: 0, End: total}, segments[0])
	}
}

func TestPlanCoversDurationExactly(t *testing.T) {
	maxes := []time.Duration{time.Second, 7 * time.Second, time.Minute, 20 * time.Minute}
	for _, max := range maxes {
		for _, total := range []time.Duration{
			1, max - 1, max, max + 1, 2 * max, 2*max + 1, 10*max - 3, 37*time.Minute + 13*time.Millisecond,
		} {
			if total <= 0 {
				continue
			}
			segments, err := Plan(total, max)
			require.NoError(t, err)

			want := int((total + max - 1) / max)
			require.Len(t, segments, want, "total=%s max=%s", total, max)

			assert.Equal(t, time.Duration(0), segments[0].Start)
			assert.Equal(t, total, segments[len(segments)-1].End)
			for i, s := range segments {
				assert.Equal(t, i, s.Index)
				assert.Greater(t, s.Duration(), time.Duration(0))
				assert.LessOrEqual(t, s.Duration(), max)
				if i < len(segments)-1 {
					assert.Equal(t, s.End, segments[i+1].Start)
					assert.Equal(t, max, s.Duration())
				}
			}
		}
	}
}

func TestPlanErrors(t *testing.T) {
	_, err := Plan(0, 20*time.Minute)
	var empty *apperr.EmptyAudioError
	assert.True(t, errors.As(err, &empty))

	for _, max := range []time.Duration{0, -time.Second} {
		_, err = Plan(time.Minute, max)
		var invalid *apperr.InvalidConfigurationError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, "CHUNK_MINUTES", invalid.Key)
	}
}
