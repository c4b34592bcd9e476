package apikeys

import (
	"context"
	"sync"
	"time"

	"github.com/status-im/promptctl/store"
)

// IAPIKeyManager defines the interface for API key management
type IAPIKeyManager interface {
	// GetAvailableKeys returns the usable keys for provider in source priority
	GetAvailableKeys(ctx context.Context, provider string) []APIKey

	// MarkKeyAsFailed marks a key as failed, which will put it in backoff
	MarkKeyAsFailed(key string)
}

// APIKeyManager implements IAPIKeyManager with backoff support
type APIKeyManager struct {
	provider    KeyProvider
	sources     []KeySource          // ordered by priority
	lastFailed  map[string]time.Time // Stores the time of the last failure for each key
	backoffTime time.Duration        // Backoff duration before retrying a failed key
	logger      store.Logger
	mu          sync.RWMutex
}

// Option is a functional option for configuring APIKeyManager
type Option func(*APIKeyManager)

// WithLogger sets the logger for APIKeyManager
func WithLogger(logger store.Logger) Option {
	return func(m *APIKeyManager) {
		m.logger = logger
	}
}

// NewAPIKeyManager creates a new API key manager
func NewAPIKeyManager(provider KeyProvider, sources []KeySource, backoff time.Duration, opts ...Option) *APIKeyManager {
	if backoff == 0 {
		backoff = 5 * time.Minute
	}
	if len(sources) == 0 {
		sources = DefaultSources
	}
	m := &APIKeyManager{
		provider:    provider,
		sources:     sources,
		lastFailed:  make(map[string]time.Time),
		backoffTime: backoff,
		logger:      store.NoopLogger{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// isKeyInBackoff checks if a key is currently in backoff period
func (m *APIKeyManager) isKeyInBackoff(key string) bool {
	if key == "" {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if lastFailTime, exists := m.lastFailed[key]; exists {
		return time.Since(lastFailTime) < m.backoffTime
	}

	return false
}

// GetAvailableKeys returns the keys for provider based on source priority and
// backoff status. A key present in several sources is returned once, under
// the first source holding it.
func (m *APIKeyManager) GetAvailableKeys(ctx context.Context, provider string) []APIKey {
	var availableKeys []APIKey
	seen := make(map[string]struct{})

	for _, source := range m.sources {
		keys := m.provider.GetKeys(ctx, provider, source)

		// If there's exactly one key in this source, include it even if it's in backoff
		if len(keys) == 1 {
			if _, dup := seen[keys[0]]; !dup {
				seen[keys[0]] = struct{}{}
				availableKeys = append(availableKeys, APIKey{Key: keys[0], Source: source, Provider: provider})
			}
			continue
		}

		// For multiple keys, include only those not in backoff
		for _, key := range keys {
			if _, dup := seen[key]; dup || m.isKeyInBackoff(key) {
				continue
			}
			seen[key] = struct{}{}
			availableKeys = append(availableKeys, APIKey{Key: key, Source: source, Provider: provider})
		}
	}

	return availableKeys
}

// MarkKeyAsFailed marks a key as non-working for some time
func (m *APIKeyManager) MarkKeyAsFailed(key string) {
	if key == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastFailed[key] = time.Now()
	m.logger.Debug("Marked API key as failed", "backoff", m.backoffTime)
}
