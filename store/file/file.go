package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/status-im/promptctl/store"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// Ensure FileStore implements store.Store
var _ store.Store = (*FileStore)(nil)

// FileStore keeps each document in its own file under a directory.
// Writes go to a temp file in the same directory and are renamed into place.
type FileStore struct {
	dir     string
	logger  store.Logger
	metrics store.MetricsRecorder
}

// Option is a functional option for configuring FileStore
type Option func(*FileStore)

// WithLogger sets the logger for FileStore
func WithLogger(logger store.Logger) Option {
	return func(fs *FileStore) {
		fs.logger = logger
	}
}

// WithMetrics sets the metrics recorder for FileStore
func WithMetrics(metrics store.MetricsRecorder) Option {
	return func(fs *FileStore) {
		fs.metrics = metrics
	}
}

// NewFileStore creates a new FileStore rooted at cfg.Dir
func NewFileStore(cfg *store.FileConfig, opts ...Option) *FileStore {
	cfg.ApplyDefaults()

	s := &FileStore{
		dir:     cfg.Dir,
		logger:  store.NoopLogger{},
		metrics: store.NoopMetrics{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Dir returns the directory holding the documents
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid store key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Read returns the document stored under key
func (s *FileStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	defer s.metrics.TimeStoreOperation("read", "file")()

	path, err := s.path(key)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		s.metrics.RecordStoreError("file", "read")
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return data, true, nil
}

// Write replaces the document stored under key
func (s *FileStore) Write(ctx context.Context, key string, value []byte) error {
	defer s.metrics.TimeStoreOperation("write", "file")()

	path, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		s.metrics.RecordStoreError("file", "mkdir")
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		s.metrics.RecordStoreError("file", "write")
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		s.metrics.RecordStoreError("file", "write")
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		s.metrics.RecordStoreError("file", "write")
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.metrics.RecordStoreError("file", "write")
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		s.metrics.RecordStoreError("file", "write")
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		s.metrics.RecordStoreError("file", "rename")
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	committed = true

	s.logger.Debug("Stored document", "key", key, "path", path, "size", len(value))
	return nil
}

// Delete removes the document stored under key. Deleting an absent key is not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	defer s.metrics.TimeStoreOperation("delete", "file")()

	path, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.metrics.RecordStoreError("file", "delete")
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	s.logger.Debug("Deleted document", "key", key, "path", path)
	return nil
}
