// Package storage confines compressr's file operations to the configured
// working directory. Paths are validated so nothing the pipeline touches can
// escape the workspace, state files are written atomically, and downloaded
// payloads are transparently decompressed.
package storage

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Workspace provides guarded file operations within a base directory.
// All relative paths are resolved against the base and rejected when they
// would escape it.
type Workspace struct {
	baseDir string
}

// NewWorkspace creates a Workspace rooted at the given base directory.
// The base directory is created if it doesn't exist.
func NewWorkspace(baseDir string) (*Workspace, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0750); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}

	return &Workspace{baseDir: absPath}, nil
}

// BaseDir returns the absolute path to the workspace base directory.
func (w *Workspace) BaseDir() string {
	return w.baseDir
}

// ResolvePath resolves a relative path within the workspace.
// Returns an error if the path is absolute or would escape the workspace.
func (w *Workspace) ResolvePath(relativePath string) (string, error) {
	if filepath.IsAbs(relativePath) {
		return "", fmt.Errorf("path escapes workspace: %s (absolute paths not allowed)", relativePath)
	}

	cleanPath := filepath.Clean(relativePath)
	fullPath := filepath.Join(w.baseDir, cleanPath)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}

	if !w.ValidatePath(absPath) {
		return "", fmt.Errorf("path escapes workspace: %s", relativePath)
	}

	return absPath, nil
}

// ValidatePath reports whether a path lies inside the workspace. Every
// deletion performed on behalf of a job must pass this check first.
func (w *Workspace) ValidatePath(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return absPath == w.baseDir || strings.HasPrefix(absPath, w.baseDir+string(filepath.Separator))
}

// EnsureLayout creates the named subdirectories under the workspace root.
func (w *Workspace) EnsureLayout(dirs ...string) error {
	for _, dir := range dirs {
		if err := w.MkdirAll(dir); err != nil {
			return err
		}
	}
	return nil
}

// Exists checks if a path exists within the workspace.
func (w *Workspace) Exists(relativePath string) (bool, error) {
	path, err := w.ResolvePath(relativePath)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking path: %w", err)
	}
	return true, nil
}

// MkdirAll creates a directory and all parent directories within the workspace.
func (w *Workspace) MkdirAll(relativePath string) error {
	path, err := w.ResolvePath(relativePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return nil
}

// WriteFile writes data to a file within the workspace, creating parent
// directories as needed.
func (w *Workspace) WriteFile(relativePath string, data []byte) error {
	path, err := w.ResolvePath(relativePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// ReadFile reads a file from within the workspace.
func (w *Workspace) ReadFile(relativePath string) ([]byte, error) {
	path, err := w.ResolvePath(relativePath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// OpenFile opens a file within the workspace with the given flags and permissions.
func (w *Workspace) OpenFile(relativePath string, flag int, perm os.FileMode) (*os.File, error) {
	path, err := w.ResolvePath(relativePath)
	if err != nil {
		return nil, err
	}

	if flag&(os.O_CREATE|os.O_WRONLY|os.O_RDWR) != 0 {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("creating parent directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return file, nil
}

// Remove removes a file or empty directory within the workspace.
func (w *Workspace) Remove(relativePath string) error {
	path, err := w.ResolvePath(relativePath)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing path: %w", err)
	}
	return nil
}

// AtomicWrite writes data to a file atomically within the workspace.
func (w *Workspace) AtomicWrite(relativePath string, data []byte) error {
	return w.AtomicWriteReader(relativePath, bytes.NewReader(data))
}

// AtomicWriteReader writes data from a reader to a file atomically: the data
// goes to a temporary file in the target directory, is synced to disk, then
// renamed over the target. The file is either completely written or absent.
func (w *Workspace) AtomicWriteReader(relativePath string, r io.Reader) error {
	targetPath, err := w.ResolvePath(relativePath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	tempName := fmt.Sprintf(".%s.%s.tmp", filepath.Base(targetPath), randomHex(8))
	tempPath := filepath.Join(dir, tempName)

	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}

	_, err = io.Copy(tempFile, r)
	if err == nil {
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()

	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing temporary file: %w", closeErr)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming to target: %w", err)
	}

	return nil
}

// Size returns the size of a file within the workspace.
func (w *Workspace) Size(relativePath string) (int64, error) {
	path, err := w.ResolvePath(relativePath)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("getting file info: %w", err)
	}
	return info.Size(), nil
}

// DirSize returns the total size of regular files under a directory within
// the workspace. A missing directory counts as empty.
func (w *Workspace) DirSize(relativePath string) (int64, error) {
	path, err := w.ResolvePath(relativePath)
	if err != nil {
		return 0, err
	}

	var total int64
	err = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking directory: %w", err)
	}
	return total, nil
}

// RemoveOlderThan deletes regular files in a directory whose modification
// time is older than maxAge. It does not recurse. A missing directory is not
// an error. Returns the number of files removed and the bytes reclaimed.
func (w *Workspace) RemoveOlderThan(relativePath string, maxAge time.Duration) (int, int64, error) {
	path, err := w.ResolvePath(relativePath)
	if err != nil {
		return 0, 0, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("reading directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int
	var reclaimed int64
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		target := filepath.Join(path, entry.Name())
		if !w.ValidatePath(target) {
			continue
		}
		if err := os.Remove(target); err != nil {
			continue
		}
		removed++
		reclaimed += info.Size()
	}
	return removed, reclaimed, nil
}

// randomHex generates a random hex string of the specified length.
func randomHex(n int) string {
	bytes := make([]byte, n/2+1)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to less random but still unique
		return fmt.Sprintf("%d", os.Getpid())
	}
	return hex.EncodeToString(bytes)[:n]
}
