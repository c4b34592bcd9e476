package keydb

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/status-im/promptctl/store"
)

// Ensure KeyDBStore implements store.Store
var _ store.Store = (*KeyDBStore)(nil)

// KeyDBStore persists documents in Redis/KeyDB without expiry
type KeyDBStore struct {
	client  store.KeyDbClient
	cfg     *store.KeyDBConfig
	prefix  string
	logger  store.Logger
	metrics store.MetricsRecorder
}

// Option is a functional option for configuring KeyDBStore
type Option func(*KeyDBStore)

// WithLogger sets the logger for KeyDBStore
func WithLogger(logger store.Logger) Option {
	return func(ks *KeyDBStore) {
		ks.logger = logger
	}
}

// WithMetrics sets the metrics recorder for KeyDBStore
func WithMetrics(metrics store.MetricsRecorder) Option {
	return func(ks *KeyDBStore) {
		ks.metrics = metrics
	}
}

// WithPrefix namespaces every key, e.g. "promptctl:"
func WithPrefix(prefix string) Option {
	return func(ks *KeyDBStore) {
		ks.prefix = prefix
	}
}

// NewKeyDBStore creates a new KeyDBStore instance with provided client
func NewKeyDBStore(cfg *store.KeyDBConfig, client store.KeyDbClient, opts ...Option) *KeyDBStore {
	cfg.ApplyDefaults()

	ks := &KeyDBStore{
		client:  client,
		cfg:     cfg,
		prefix:  "promptctl:",
		logger:  store.NoopLogger{},
		metrics: store.NoopMetrics{},
	}

	for _, opt := range opts {
		opt(ks)
	}

	return ks
}

// Read returns the document stored under key
func (ks *KeyDBStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	defer ks.metrics.TimeStoreOperation("read", "keydb")()

	ctx, cancel := context.WithTimeout(ctx, ks.cfg.Connection.ReadTimeout)
	defer cancel()

	data, err := ks.client.Get(ctx, ks.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		ks.logger.Warn("KeyDB read failed", "key", key, "error", err)
		ks.metrics.RecordStoreError("keydb", "read")
		return nil, false, fmt.Errorf("failed to read %s from KeyDB: %w", key, err)
	}

	return data, true, nil
}

// Write replaces the document stored under key
func (ks *KeyDBStore) Write(ctx context.Context, key string, value []byte) error {
	defer ks.metrics.TimeStoreOperation("write", "keydb")()

	ctx, cancel := context.WithTimeout(ctx, ks.cfg.Connection.SendTimeout)
	defer cancel()

	if err := ks.client.Set(ctx, ks.prefix+key, value, 0).Err(); err != nil {
		ks.logger.Warn("KeyDB write failed", "key", key, "error", err)
		ks.metrics.RecordStoreError("keydb", "write")
		return fmt.Errorf("failed to write %s to KeyDB: %w", key, err)
	}

	return nil
}

// Delete removes the document stored under key
func (ks *KeyDBStore) Delete(ctx context.Context, key string) error {
	defer ks.metrics.TimeStoreOperation("delete", "keydb")()

	ctx, cancel := context.WithTimeout(ctx, ks.cfg.Connection.SendTimeout)
	defer cancel()

	if err := ks.client.Del(ctx, ks.prefix+key).Err(); err != nil {
		ks.logger.Warn("KeyDB delete failed", "key", key, "error", err)
		ks.metrics.RecordStoreError("keydb", "delete")
		return fmt.Errorf("failed to delete %s from KeyDB: %w", key, err)
	}

	return nil
}

// Close closes the KeyDB connection
func (ks *KeyDBStore) Close() error {
	return ks.client.Close()
}
