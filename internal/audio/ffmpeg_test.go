package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"scribely/internal/apperr"
)

// writeWav writes a mono 16-bit WAV of the given length and sample rate.
func writeWav(t *testing.T, path string, rate int, length time.Duration) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	samples := int(length.Seconds() * float64(rate))
	data := make([]int, samples)
	for i := range data {
		data[i] = (i % 200) * 100
	}

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestProbeEmptyWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silence.wav")
	writeWav(t, path, 16000, 0)

	d, err := Probe(path)
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = Plan(d, DefaultChunkDuration)
	var empty *apperr.EmptyAudioError
	assert.True(t, errors.As(err, &empty))
}

func TestProbeCountsSamplesOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.wav")
	writeWav(t, path, 16000, 250*time.Millisecond)

	d, err := Probe(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
}

func TestPCMDuration(t *testing.T) {
	assert.Equal(t, time.Duration(0), pcmDuration(0, 32000))
	assert.Equal(t, time.Second, pcmDuration(32000, 32000))
	assert.Equal(t, 90*time.Minute+500*time.Millisecond, pcmDuration(32000*(90*60)+16000, 32000))
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
}

func TestProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWav(t, path, 16000, 2*time.Second)

	d, err := Probe(path)
	require.NoError(t, err)
	assert.InDelta(t, (2 * time.Second).Seconds(), d.Seconds(), 0.01)
	assert.True(t, isCanonicalWav(path))
}

func TestProbeRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not riff data"), 0o644))

	_, err := Probe(path)
	assert.Error(t, err)
	assert.False(t, isCanonicalWav(path))
}

func TestNormalizeCanonicalPassThrough(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload.wav")
	writeWav(t, src, 16000, time.Second)

	// The binary is never looked up for canonical input.
	n := NewNormalizer("ffmpeg-binary-that-does-not-exist", zaptest.NewLogger(t))
	out, err := n.Normalize(context.Background(), &Asset{Name: "memo.wav", Path: src, Format: "wav"}, dir)
	require.NoError(t, err)

	assert.Equal(t, "wav", out.Format)
	assert.Equal(t, "memo.wav", out.Name)
	assert.InDelta(t, 1.0, out.Duration.Seconds(), 0.01)
	_, err = os.Stat(src)
	assert.NoError(t, err, "upload must stay in place")
}

func TestNormalizeMissingBinary(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload.mp3")
	require.NoError(t, os.WriteFile(src, []byte("ID3"), 0o644))

	n := NewNormalizer("ffmpeg-binary-that-does-not-exist", zaptest.NewLogger(t))
	_, err := n.Normalize(context.Background(), &Asset{Name: "a.mp3", Path: src, Format: "mp3"}, dir)

	var invalid *apperr.InvalidConfigurationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "FFMPEG_PATH", invalid.Key)
}

func TestNormalizeUndecodableInput(t *testing.T) {
	requireFFmpeg(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "upload.mp3")
	require.NoError(t, os.WriteFile(src, []byte("this is text pretending to be audio"), 0o644))

	n := NewNormalizer("ffmpeg", zaptest.NewLogger(t))
	_, err := n.Normalize(context.Background(), &Asset{Name: "fake.mp3", Path: src, Format: "mp3"}, dir)

	var unsupported *apperr.UnsupportedFormatError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "fake.mp3", unsupported.Name)

	_, statErr := os.Stat(filepath.Join(dir, "normalized.wav"))
	assert.True(t, os.IsNotExist(statErr), "intermediate output must be removed")
}

func TestNormalizeAndExtract(t *testing.T) {
	requireFFmpeg(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "upload.wav")
	writeWav(t, src, 44100, 3*time.Second)

	n := NewNormalizer("ffmpeg", zaptest.NewLogger(t))
	asset, err := n.Normalize(context.Background(), &Asset{Name: "stereo.wav", Path: src, Format: "wav"}, dir)
	require.NoError(t, err)
	assert.True(t, isCanonicalWav(asset.Path))
	assert.InDelta(t, 3.0, asset.Duration.Seconds(), 0.05)

	segments, err := Plan(asset.Duration, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, segments, 2)

	path, err := n.Extract(context.Background(), asset, segments[1], "wav", dir)
	require.NoError(t, err)
	d, err := Probe(path)
	require.NoError(t, err)
	assert.InDelta(t, segments[1].Duration().Seconds(), d.Seconds(), 0.05)
}

func TestExtractRejectsUnknownFormat(t *testing.T) {
	n := NewNormalizer("ffmpeg", zaptest.NewLogger(t))
	_, err := n.Extract(context.Background(), &Asset{Path: "x.wav"}, Segment{End: time.Second}, "aiff", t.TempDir())

	var invalid *apperr.InvalidConfigurationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "SEGMENT_FORMAT", invalid.Key)
}

func TestFormatFromName(t *testing.T) {
	assert.Equal(t, "m4a", FormatFromName("Voice Memo.M4A"))
	assert.Equal(t, "", FormatFromName("noext"))
}
