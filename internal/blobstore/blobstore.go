// Package blobstore keeps uploaded files on local disk under generated names.
package blobstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"document-assistant/internal/helper"
	"document-assistant/internal/models"
)

type Store struct {
	dir string
}

// New returns a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save writes data under a fresh uuid name with the extension of
// suggestedName and returns the file path.
func (s *Store) Save(data []byte, suggestedName string) (string, error) {
	name, err := helper.UniqueFileName(suggestedName)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", suggestedName, err)
	}
	log.Debug().Str("path", path).Int("bytes", len(data)).Msg("Saved upload")
	return path, nil
}

func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.NewNotFound(models.CodeFileNotFound, "file %s not found", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Delete removes path. A missing file is not an error.
func (s *Store) Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}
