package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/status-im/promptctl/models"
	"github.com/status-im/promptctl/store"
)

const defaultFileMode = 0o644

// MetricsRecorder records output write outcomes
type MetricsRecorder interface {
	RecordOutputWrite(status string, bytes int)
}

type noopMetrics struct{}

func (noopMetrics) RecordOutputWrite(status string, bytes int) {}

// Writer writes generated artifacts to caller supplied paths. A destination
// is always resolved through ResolveSafePath and the file lands atomically:
// either the full buffer is renamed into place or nothing changes.
type Writer struct {
	roots    []ProtectedRoot
	fileMode os.FileMode
	logger   store.Logger
	metrics  MetricsRecorder
}

// Option is a functional option for configuring Writer
type Option func(*Writer)

// WithProtectedRoots replaces the default deny-list
func WithProtectedRoots(roots []ProtectedRoot) Option {
	return func(w *Writer) {
		w.roots = roots
	}
}

// WithFileMode sets the permissions of written files
func WithFileMode(mode os.FileMode) Option {
	return func(w *Writer) {
		w.fileMode = mode
	}
}

// WithLogger sets the logger for Writer
func WithLogger(logger store.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithMetrics sets the metrics recorder for Writer
func WithMetrics(metrics MetricsRecorder) Option {
	return func(w *Writer) {
		w.metrics = metrics
	}
}

// NewWriter creates a Writer with the default protected roots
func NewWriter(opts ...Option) *Writer {
	w := &Writer{
		roots:    DefaultProtectedRoots(),
		fileMode: defaultFileMode,
		logger:   store.NoopLogger{},
		metrics:  noopMetrics{},
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Resolve validates dest without writing anything
func (w *Writer) Resolve(dest string) (string, error) {
	return ResolveSafePath(dest, w.roots)
}

// WriteDataURI decodes payload and writes it to dest, returning the final path
func (w *Writer) WriteDataURI(dest, payload string) (string, error) {
	final, err := w.Resolve(dest)
	if err != nil {
		w.metrics.RecordOutputWrite("rejected", 0)
		return "", err
	}

	prefix, data, err := DecodeDataURI(payload)
	if err != nil {
		w.metrics.RecordOutputWrite("invalid_payload", 0)
		return "", err
	}

	if err := w.commit(final, data); err != nil {
		return "", err
	}

	w.logger.Info("Wrote artifact", "path", final, "mime_type", MIMEType(prefix), "bytes", len(data))
	return final, nil
}

// WriteBytes writes data to dest, returning the final path
func (w *Writer) WriteBytes(dest string, data []byte) (string, error) {
	final, err := w.Resolve(dest)
	if err != nil {
		w.metrics.RecordOutputWrite("rejected", 0)
		return "", err
	}

	if err := w.commit(final, data); err != nil {
		return "", err
	}

	w.logger.Info("Wrote artifact", "path", final, "bytes", len(data))
	return final, nil
}

func (w *Writer) commit(final string, data []byte) error {
	if err := writeAtomic(final, data, w.fileMode); err != nil {
		w.metrics.RecordOutputWrite("failed", 0)
		return models.Wrapf(models.ErrWriteFailed, err, "Failed to write %q", final)
	}
	w.metrics.RecordOutputWrite("success", len(data))
	return nil
}

func writeAtomic(path string, data []byte, mode os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, mode); err != nil {
		return err
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
