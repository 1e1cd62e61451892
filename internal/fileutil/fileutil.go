package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DeleteResult reports the outcome of a best-effort temp file removal.
type DeleteResult struct {
	Success bool
	Err     error
}

// TempFiles hands out unique scratch paths under a base directory and removes
// them again. It never returns errors to callers: cleanup is best-effort.
type TempFiles struct {
	dir    string
	prefix string
}

// NewTempFiles builds a manager rooted at dir (os.TempDir when empty).
func NewTempFiles(dir, prefix string) *TempFiles {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = os.TempDir()
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "wordsync"
	}
	return &TempFiles{dir: dir, prefix: prefix}
}

// Dir returns the base directory.
func (t *TempFiles) Dir() string {
	return t.dir
}

// NewPath returns a fresh, not-yet-created path with the given extension.
// The base directory is created on demand.
func (t *TempFiles) NewPath(ext string) string {
	_ = os.MkdirAll(t.dir, 0o755)
	ext = strings.TrimSpace(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(t.dir, fmt.Sprintf("%s-%s%s", t.prefix, uuid.NewString(), ext))
}

// DeleteTempFile removes path. A missing file counts as success.
func (t *TempFiles) DeleteTempFile(path string) DeleteResult {
	return DeleteTempFile(path)
}

// DeleteTempFile removes path. A missing file counts as success.
func DeleteTempFile(path string) DeleteResult {
	if strings.TrimSpace(path) == "" {
		return DeleteResult{Success: true}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return DeleteResult{Err: err}
	}
	return DeleteResult{Success: true}
}

// WriteFileAtomic writes data to a sibling temp file and renames it over path
// so readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
