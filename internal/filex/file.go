// Package filex holds local filesystem helpers for request-scoped temporary
// files (spooled multipart uploads).
package filex

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// EnsureDir creates dir (and parents) if missing and returns its absolute path.
// A relative dir is resolved against the working directory.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// Spool copies r into a new uniquely named file inside dir, keeping the
// extension of originalName, and returns the file path. At most limit bytes
// are accepted; a larger body removes the partial file and fails.
func Spool(dir, originalName string, r io.Reader, limit int64) (string, error) {
	path := filepath.Join(dir, uuid.NewString()+filepath.Ext(filepath.Base(originalName)))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("close %s: %w", path, closeErr)
	case n > limit:
		_ = os.Remove(path)
		return "", ErrTooLarge
	}

	return path, nil
}

// ErrTooLarge is returned by Spool when the source exceeds the limit.
var ErrTooLarge = errors.New("file too large")

// Remove deletes path. An empty path or an already missing file is not an
// error.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
