package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedExtension(t *testing.T) {
	for _, name := range []string{"a.mp3", "B.WAV", "memo.m4a", "x.aif", "rec.webm"} {
		assert.True(t, AllowedExtension(name), name)
	}
	for _, name := range []string{"a.txt", "noext", "movie.mp4", "archive.wav.zip"} {
		assert.False(t, AllowedExtension(name), name)
	}
}

func TestWorkspaceLifecycle(t *testing.T) {
	root := t.TempDir()
	id := uuid.New()

	ws, err := NewWorkspace(root, id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(ws.Dir), "run-"+id.String()))

	asset, err := ws.SaveUpload("../../etc/My Memo.M4A", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Dir, "upload.m4a"), asset.Path)
	assert.Equal(t, "m4a", asset.Format)
	assert.Equal(t, int64(7), asset.Size)
	assert.Equal(t, "../../etc/My Memo.M4A", asset.Name)

	require.NoError(t, ws.Close())
	_, err = os.Stat(ws.Dir)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, ws.Close())
}

func TestWorkspacesAreDisjoint(t *testing.T) {
	root := t.TempDir()
	a, err := NewWorkspace(root, uuid.New())
	require.NoError(t, err)
	b, err := NewWorkspace(root, uuid.New())
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	_, err = a.SaveUpload("one.wav", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = b.SaveUpload("one.wav", strings.NewReader("bb"))
	require.NoError(t, err)

	da, _ := os.ReadFile(a.Path("upload.wav"))
	db, _ := os.ReadFile(b.Path("upload.wav"))
	assert.Equal(t, "a", string(da))
	assert.Equal(t, "bb", string(db))
}
