// Package storage owns the run-scoped transient files of one pipeline run.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"scribely/internal/audio"
)

// AllowedExtensions is the upload allow-list.
var AllowedExtensions = []string{".mp3", ".wav", ".ogg", ".m4a", ".aac", ".flac", ".webm", ".caf", ".aiff", ".aif"}

// AllowedExtension reports whether name carries an accepted audio extension.
func AllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range AllowedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Workspace is a directory private to one run. Nothing outside the run
// writes into it, so concurrent runs never collide.
type Workspace struct {
	Dir   string
	RunID uuid.UUID

	once sync.Once
	err  error
}

// NewWorkspace creates <root>/run-<uuid>-* for runID. An empty root means the
// OS temp directory.
func NewWorkspace(root string, runID uuid.UUID) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	dir, err := os.MkdirTemp(root, "run-"+runID.String()+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return &Workspace{Dir: dir, RunID: runID}, nil
}

// Path returns name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, filepath.Base(name))
}

// SaveUpload stores the uploaded bytes as upload<ext>. The caller's filename
// is kept only as the asset's declared name.
func (w *Workspace) SaveUpload(name string, r io.Reader) (*audio.Asset, error) {
	ext := strings.ToLower(filepath.Ext(name))
	dst := w.Path("upload" + ext)

	out, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	size, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	return &audio.Asset{
		Name:   name,
		Path:   dst,
		Format: audio.FormatFromName(name),
		Size:   size,
	}, nil
}

// Close removes the workspace and everything in it. Safe to call twice.
func (w *Workspace) Close() error {
	w.once.Do(func() {
		w.err = os.RemoveAll(w.Dir)
	})
	return w.err
}
