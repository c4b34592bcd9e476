package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/status-im/promptctl/store"
)

// Ensure BigCacheStore implements store.Store
var _ store.Store = (*BigCacheStore)(nil)

// BigCacheStore keeps documents in process memory using BigCache.
// Nothing survives the process; it backs tests and --store=memory runs.
type BigCacheStore struct {
	cache        *bigcache.BigCache
	logger       store.Logger
	metrics      store.MetricsRecorder
	maxEntrySize int
}

// Option is a functional option for configuring BigCacheStore
type Option func(*BigCacheStore)

// WithLogger sets the logger for BigCacheStore
func WithLogger(logger store.Logger) Option {
	return func(bs *BigCacheStore) {
		bs.logger = logger
	}
}

// WithMetrics sets the metrics recorder for BigCacheStore
func WithMetrics(metrics store.MetricsRecorder) Option {
	return func(bs *BigCacheStore) {
		bs.metrics = metrics
	}
}

// NewBigCacheStore creates a new BigCacheStore instance
func NewBigCacheStore(cfg *store.BigCacheConfig, opts ...Option) (*BigCacheStore, error) {
	cfg.ApplyDefaults()

	// entries never expire: no cleanup goroutine, effectively infinite life window
	config := bigcache.DefaultConfig(100 * 365 * 24 * time.Hour)
	config.CleanWindow = 0
	config.HardMaxCacheSize = cfg.Size
	config.Verbose = false
	config.MaxEntrySize = cfg.MaxEntrySize
	config.Shards = cfg.Shards

	c, err := bigcache.New(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory store: %w", err)
	}

	bs := &BigCacheStore{
		cache:        c,
		logger:       store.NoopLogger{},
		metrics:      store.NoopMetrics{},
		maxEntrySize: cfg.MaxEntrySize,
	}

	for _, opt := range opts {
		opt(bs)
	}

	return bs, nil
}

// Read returns the document stored under key
func (bs *BigCacheStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	defer bs.metrics.TimeStoreOperation("read", "memory")()

	data, err := bs.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, false, nil
		}
		bs.metrics.RecordStoreError("memory", "read")
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return data, true, nil
}

// Write replaces the document stored under key
func (bs *BigCacheStore) Write(ctx context.Context, key string, value []byte) error {
	defer bs.metrics.TimeStoreOperation("write", "memory")()

	if len(value) > bs.maxEntrySize {
		bs.logger.Warn("Document too large for memory store",
			"key", key,
			"size", len(value),
			"max_size", bs.maxEntrySize)
		bs.metrics.RecordStoreError("memory", "entry_too_large")
		return fmt.Errorf("document %s is %d bytes, limit is %d", key, len(value), bs.maxEntrySize)
	}

	if err := bs.cache.Set(key, value); err != nil {
		bs.metrics.RecordStoreError("memory", "write")
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return nil
}

// Delete removes the document stored under key
func (bs *BigCacheStore) Delete(ctx context.Context, key string) error {
	defer bs.metrics.TimeStoreOperation("delete", "memory")()

	if err := bs.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		bs.metrics.RecordStoreError("memory", "delete")
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	return nil
}

// Len returns the number of stored documents
func (bs *BigCacheStore) Len() int {
	return bs.cache.Len()
}

// Close releases the cache
func (bs *BigCacheStore) Close() error {
	return bs.cache.Close()
}
