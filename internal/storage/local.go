// Package storage holds attachment bytes on the local filesystem. Keys
// are paths relative to a base directory; the metadata rows in the
// database reference keys, never absolute paths.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// BlobStore is the key/blob interface the attachment service writes
// through. Bytes must be durable before metadata is committed.
type BlobStore interface {
	Save(key string, content []byte) error
	Open(key string) (*os.File, error)
	Delete(key string) error
	Exists(key string) bool
}

type LocalStore struct {
	baseDir string
	logger  *zap.Logger
}

func NewLocalStore(baseDir string, logger *zap.Logger) *LocalStore {
	return &LocalStore{baseDir: baseDir, logger: logger}
}

func (s *LocalStore) Save(key string, content []byte) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		s.logger.Error("failed to create attachment directory",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		s.logger.Error("failed to write attachment",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}
	s.logger.Debug("attachment saved",
		zap.String("key", key),
		zap.Int("size", len(content)))
	return nil
}

func (s *LocalStore) Open(key string) (*os.File, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

// Delete removes the blob. A missing blob is not an error; metadata
// deletion must succeed even when the bytes are already gone.
func (s *LocalStore) Delete(key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to delete attachment blob",
			zap.String("key", key),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *LocalStore) Exists(key string) bool {
	fullPath, err := s.resolve(key)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(fullPath)
	return statErr == nil
}

// resolve joins key under the base directory, rejecting traversal.
func (s *LocalStore) resolve(key string) (string, error) {
	normalized := filepath.Clean(key)
	if strings.HasPrefix(normalized, "..") || filepath.IsAbs(normalized) {
		return "", fmt.Errorf("invalid attachment key: %s", key)
	}
	return filepath.Join(s.baseDir, normalized), nil
}
