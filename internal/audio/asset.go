// Package audio normalizes uploads to a canonical WAV, measures them and cuts
// them into fixed-duration segments.
package audio

import (
	"path/filepath"
	"strings"
	"time"
)

// Asset is one audio payload on transient storage.
type Asset struct {
	Name     string        // declared name from the caller
	Path     string        // location inside the run workspace
	Format   string        // container inferred from the extension, e.g. "m4a"
	Size     int64         // bytes
	Duration time.Duration // known after normalization
}

// FormatFromName infers the container from a file name's extension.
func FormatFromName(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// SegmentFormats are the encodings a segment can be materialized as.
var SegmentFormats = []string{"mp3", "wav", "flac", "ogg"}

// IsSegmentFormat reports whether format is one of SegmentFormats.
func IsSegmentFormat(format string) bool {
	for _, f := range SegmentFormats {
		if f == format {
			return true
		}
	}
	return false
}
