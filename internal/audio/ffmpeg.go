package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"scribely/internal/apperr"
)

const (
	canonicalRate     = 16000
	canonicalChannels = 1
	canonicalDepth    = 16
)

// Normalizer converts any decodable upload to 16 kHz mono 16-bit PCM WAV and
// cuts segments out of it, both through an ffmpeg binary.
type Normalizer struct {
	ffmpeg string
	logger *zap.Logger
}

// NewNormalizer returns a Normalizer using the given ffmpeg binary name or path.
func NewNormalizer(ffmpeg string, logger *zap.Logger) *Normalizer {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &Normalizer{ffmpeg: ffmpeg, logger: logger}
}

func (n *Normalizer) binary() (string, error) {
	bin, err := exec.LookPath(n.ffmpeg)
	if err != nil {
		return "", &apperr.InvalidConfigurationError{Key: "FFMPEG_PATH", Reason: err.Error()}
	}
	return bin, nil
}

func (n *Normalizer) run(ctx context.Context, args ...string) (string, error) {
	bin, err := n.binary()
	if err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Normalize writes the canonical rendition of src into dir. A WAV that is
// already canonical is copied through without invoking ffmpeg. On failure
// nothing is left behind in dir.
func (n *Normalizer) Normalize(ctx context.Context, src *Asset, dir string) (*Asset, error) {
	dst := filepath.Join(dir, "normalized.wav")

	if src.Format == "wav" && isCanonicalWav(src.Path) {
		n.logger.Debug("Upload already canonical, copying", zap.String("name", src.Name))
		if err := copyFile(src.Path, dst); err != nil {
			os.Remove(dst)
			return nil, fmt.Errorf("copy canonical wav: %w", err)
		}
	} else {
		out, err := n.run(ctx,
			"-nostdin", "-y", "-hide_banner", "-loglevel", "error",
			"-i", src.Path,
			"-vn",
			"-ac", strconv.Itoa(canonicalChannels),
			"-ar", strconv.Itoa(canonicalRate),
			"-acodec", "pcm_s16le",
			"-f", "wav",
			dst,
		)
		if err != nil {
			os.Remove(dst)
			var cfgErr *apperr.InvalidConfigurationError
			if errors.As(err, &cfgErr) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &apperr.UnsupportedFormatError{Name: src.Name, Err: fmt.Errorf("ffmpeg: %w out: %s", err, lastLine(out))}
		}
	}

	duration, err := Probe(dst)
	if err != nil {
		os.Remove(dst)
		return nil, &apperr.UnsupportedFormatError{Name: src.Name, Err: err}
	}
	info, err := os.Stat(dst)
	if err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("stat normalized audio: %w", err)
	}

	n.logger.Info("Audio normalized",
		zap.String("name", src.Name),
		zap.String("source_format", src.Format),
		zap.Duration("duration", duration),
		zap.Int64("size_bytes", info.Size()))

	return &Asset{
		Name:     src.Name,
		Path:     dst,
		Format:   "wav",
		Size:     info.Size(),
		Duration: duration,
	}, nil
}

// Extract materializes seg of the canonical asset as its own file encoded as
// format and returns its path.
func (n *Normalizer) Extract(ctx context.Context, asset *Asset, seg Segment, format string, dir string) (string, error) {
	if !IsSegmentFormat(format) {
		return "", &apperr.InvalidConfigurationError{Key: "SEGMENT_FORMAT", Reason: fmt.Sprintf("unsupported segment format %q", format)}
	}
	dst := filepath.Join(dir, fmt.Sprintf("segment-%04d.%s", seg.Index, format))

	args := []string{
		"-nostdin", "-y", "-hide_banner", "-loglevel", "error",
		"-ss", seconds(seg.Start),
		"-t", seconds(seg.Duration()),
		"-i", asset.Path,
		"-vn",
	}
	args = append(args, codecArgs(format)...)
	args = append(args, dst)

	out, err := n.run(ctx, args...)
	if err != nil {
		os.Remove(dst)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("extract %s: ffmpeg: %w out: %s", seg, err, lastLine(out))
	}
	return dst, nil
}

func codecArgs(format string) []string {
	switch format {
	case "mp3":
		return []string{"-c:a", "libmp3lame", "-b:a", "64k"}
	case "flac":
		return []string{"-c:a", "flac"}
	case "ogg":
		return []string{"-c:a", "libopus", "-b:a", "32k"}
	default:
		return []string{"-c:a", "pcm_s16le"}
	}
}

// Probe returns the playback duration of a PCM WAV file. A file without
// samples has duration 0.
func Probe(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("not a valid wav file: %s", filepath.Base(path))
	}
	// The RIFF size also counts header and metadata chunks, so the duration
	// comes from the data chunk alone.
	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("find wav data chunk: %w", err)
	}
	byteRate := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if byteRate <= 0 {
		return 0, fmt.Errorf("wav header has no byte rate: %s", filepath.Base(path))
	}
	return pcmDuration(dec.PCMLen(), byteRate), nil
}

func pcmDuration(size, byteRate int64) time.Duration {
	secs := size / byteRate
	rem := size % byteRate
	return time.Duration(secs)*time.Second + time.Duration(rem*int64(time.Second)/byteRate)
}

// isCanonicalWav returns true when path is a valid WAV already in the
// canonical format (16 kHz, mono, 16-bit PCM).
func isCanonicalWav(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return false
	}
	return dec.BitDepth == canonicalDepth && dec.NumChans == canonicalChannels && dec.SampleRate == canonicalRate
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func lastLine(out string) string {
	out = strings.TrimSpace(out)
	if i := strings.LastIndexByte(out, '\n'); i >= 0 {
		return out[i+1:]
	}
	return out
}
