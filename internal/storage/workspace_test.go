package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkspace(t *testing.T) {
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, "work")

	ws, err := NewWorkspace(wsDir)
	require.NoError(t, err)
	require.NotNil(t, ws)

	// Verify directory was created
	info, err := os.Stat(wsDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Verify BaseDir returns absolute path
	assert.True(t, filepath.IsAbs(ws.BaseDir()))
}

func TestWorkspace_ResolvePath(t *testing.T) {
	ws := setupTestWorkspace(t)

	tests := []struct {
		name        string
		path        string
		shouldError bool
	}{
		{"simple file", "test.mp4", false},
		{"nested path", "downloads/test.mp4", false},
		{"deep nesting", "a/b/c/d/test.mp4", false},
		{"current dir", ".", false},
		{"parent escape attempt", "../escape.mp4", true},
		{"nested parent escape", "downloads/../../escape.mp4", true},
		{"absolute path escape", "/etc/passwd", true},
		{"hidden file", ".hidden", false},
		{"dot dot name", "..test", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := ws.ResolvePath(tt.path)
			if tt.shouldError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "escapes workspace")
			} else {
				assert.NoError(t, err)
				assert.True(t, strings.HasPrefix(resolved, ws.BaseDir()))
			}
		})
	}
}

func TestWorkspace_ValidatePath(t *testing.T) {
	ws := setupTestWorkspace(t)

	assert.True(t, ws.ValidatePath(ws.BaseDir()))
	assert.True(t, ws.ValidatePath(filepath.Join(ws.BaseDir(), "downloads", "video.mp4")))
	assert.False(t, ws.ValidatePath("/etc/passwd"))
	assert.False(t, ws.ValidatePath(filepath.Join(ws.BaseDir(), "..", "outside.mp4")))
	// Sibling directory sharing the base as a name prefix
	assert.False(t, ws.ValidatePath(ws.BaseDir()+"-evil/video.mp4"))
}

func TestWorkspace_EnsureLayout(t *testing.T) {
	ws := setupTestWorkspace(t)

	err := ws.EnsureLayout("downloads", "encode", "temp", "thumb")
	require.NoError(t, err)

	for _, dir := range []string{"downloads", "encode", "temp", "thumb"} {
		exists, err := ws.Exists(dir)
		require.NoError(t, err)
		assert.True(t, exists, dir)
	}
}

func TestWorkspace_WriteAndReadFile(t *testing.T) {
	ws := setupTestWorkspace(t)
	content := []byte("test content")

	err := ws.WriteFile("test.txt", content)
	require.NoError(t, err)

	data, err := ws.ReadFile("test.txt")
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestWorkspace_WriteFile_CreatesParentDirs(t *testing.T) {
	ws := setupTestWorkspace(t)

	err := ws.WriteFile("a/b/c/test.txt", []byte("nested content"))
	require.NoError(t, err)

	exists, err := ws.Exists("a/b/c/test.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWorkspace_Exists(t *testing.T) {
	ws := setupTestWorkspace(t)

	exists, err := ws.Exists("nonexistent.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	err = ws.WriteFile("exists.txt", []byte("test"))
	require.NoError(t, err)

	exists, err = ws.Exists("exists.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWorkspace_Remove(t *testing.T) {
	ws := setupTestWorkspace(t)

	err := ws.WriteFile("to_remove.txt", []byte("test"))
	require.NoError(t, err)

	err = ws.Remove("to_remove.txt")
	require.NoError(t, err)

	exists, err := ws.Exists("to_remove.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWorkspace_Remove_RejectsEscape(t *testing.T) {
	ws := setupTestWorkspace(t)

	err := ws.Remove("../outside.txt")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "escapes workspace")
}

func TestWorkspace_AtomicWrite(t *testing.T) {
	ws := setupTestWorkspace(t)
	content := []byte("atomic content")

	err := ws.AtomicWrite("settings.json", content)
	require.NoError(t, err)

	data, err := ws.ReadFile("settings.json")
	require.NoError(t, err)
	assert.Equal(t, content, data)

	// Overwrite leaves no temp droppings behind
	err = ws.AtomicWrite("settings.json", []byte("second"))
	require.NoError(t, err)

	entries, err := os.ReadDir(ws.BaseDir())
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"), entry.Name())
	}
}

func TestWorkspace_AtomicWriteReader(t *testing.T) {
	ws := setupTestWorkspace(t)
	content := []byte("atomic reader content")

	err := ws.AtomicWriteReader("thumb/thumb.jpg", bytes.NewReader(content))
	require.NoError(t, err)

	data, err := ws.ReadFile("thumb/thumb.jpg")
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestWorkspace_Size(t *testing.T) {
	ws := setupTestWorkspace(t)

	content := []byte("size test content")
	err := ws.WriteFile("size.txt", content)
	require.NoError(t, err)

	size, err := ws.Size("size.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)
}

func TestWorkspace_DirSize(t *testing.T) {
	ws := setupTestWorkspace(t)

	require.NoError(t, ws.WriteFile("downloads/a.mp4", make([]byte, 100)))
	require.NoError(t, ws.WriteFile("downloads/b.mp4", make([]byte, 50)))
	require.NoError(t, ws.WriteFile("downloads/sub/c.mp4", make([]byte, 25)))

	size, err := ws.DirSize("downloads")
	require.NoError(t, err)
	assert.Equal(t, int64(175), size)

	// Missing directory counts as empty
	size, err = ws.DirSize("missing")
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestWorkspace_RemoveOlderThan(t *testing.T) {
	ws := setupTestWorkspace(t)

	require.NoError(t, ws.WriteFile("temp/old.mp4", make([]byte, 100)))
	require.NoError(t, ws.WriteFile("temp/fresh.mp4", make([]byte, 50)))
	require.NoError(t, ws.MkdirAll("temp/subdir"))

	// Backdate one file past the cutoff
	oldPath, err := ws.ResolvePath("temp/old.mp4")
	require.NoError(t, err)
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, stale, stale))

	removed, reclaimed, err := ws.RemoveOlderThan("temp", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, int64(100), reclaimed)

	exists, err := ws.Exists("temp/old.mp4")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = ws.Exists("temp/fresh.mp4")
	require.NoError(t, err)
	assert.True(t, exists)

	// Directories are never touched
	exists, err = ws.Exists("temp/subdir")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWorkspace_RemoveOlderThan_MissingDir(t *testing.T) {
	ws := setupTestWorkspace(t)

	removed, reclaimed, err := ws.RemoveOlderThan("never-created", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, int64(0), reclaimed)
}

func TestWorkspace_PathTraversalAttempts(t *testing.T) {
	ws := setupTestWorkspace(t)

	attacks := []string{
		"../../../etc/passwd",
		"downloads/../../../etc/passwd",
		"/absolute/path",
		"downloads/../../..",
		"downloads/./../../etc/passwd",
	}

	for _, attack := range attacks {
		t.Run(attack, func(t *testing.T) {
			_, err := ws.ResolvePath(attack)
			assert.Error(t, err, "path traversal should be blocked: %s", attack)
		})
	}
}

func setupTestWorkspace(t *testing.T) *Workspace {
	t.Helper()

	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	return ws
}
