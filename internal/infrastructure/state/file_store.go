package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ForecastPoster/internal/domain"
	"ForecastPoster/internal/ports"
)

// FileStore keeps the last processed run identifier in a single text file.
type FileStore struct {
	path string
}

var _ ports.StateStore = (*FileStore)(nil)

// NewFileStore binds the store to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

// Read returns the stored identifier; a missing or empty file yields the zero identifier.
func (s *FileStore) Read(_ context.Context) (domain.RunIdentifier, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", &domain.StateIOError{Op: "read", Path: s.path, Err: err}
	}
	return domain.RunIdentifier(strings.TrimSpace(string(raw))), nil
}

// Write replaces the stored identifier. The file is swapped in with a rename
// so readers never observe partial content.
func (s *FileStore) Write(_ context.Context, id domain.RunIdentifier) error {
	if err := s.replace([]byte(id.String())); err != nil {
		return &domain.StateIOError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

// Clear removes the stored identifier.
func (s *FileStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &domain.StateIOError{Op: "clear", Path: s.path, Err: err}
	}
	return nil
}

func (s *FileStore) replace(content []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if _, statErr := os.Stat(tmpPath); statErr == nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
