package ratelimit

import (
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// defaultPerMinute applies to providers without a configured limit
const defaultPerMinute = 30

// RateLimit is the request budget for every key of one provider
type RateLimit struct {
	RateLimitPerMinute int `yaml:"per_minute"`
	Burst              int `yaml:"burst"`
}

// IRateLimiterManager provides a way to get a rate limiter for a specific key
type IRateLimiterManager interface {
	GetLimiter(provider, key string) *rate.Limiter
	SetConfig(config map[string]RateLimit)
}

// RateLimiterManager manages per-key rate limiters
type RateLimiterManager struct {
	mu           sync.RWMutex
	keyToLimiter map[string]*rate.Limiter
	config       map[string]RateLimit
}

// NewRateLimiterManager creates a new rate limiter manager; config is keyed by provider
func NewRateLimiterManager(config map[string]RateLimit) *RateLimiterManager {
	return &RateLimiterManager{
		keyToLimiter: make(map[string]*rate.Limiter),
		config:       config,
	}
}

// SetConfig applies a new rate limit configuration and drops existing limiters
func (m *RateLimiterManager) SetConfig(newConfig map[string]RateLimit) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = newConfig

	for key := range m.keyToLimiter {
		delete(m.keyToLimiter, key)
	}
}

// GetLimiter returns a limiter for a given provider and api key, creating it if missing
func (m *RateLimiterManager) GetLimiter(provider, key string) *rate.Limiter {
	mapKey := limiterMapKey(provider, key)

	m.mu.RLock()
	if lim, ok := m.keyToLimiter[mapKey]; ok {
		m.mu.RUnlock()
		return lim
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if lim, ok := m.keyToLimiter[mapKey]; ok {
		return lim
	}

	limit := m.limitForProvider(provider)
	burst := m.burstForProvider(provider, limit)
	limiter := rate.NewLimiter(limit, burst)
	m.keyToLimiter[mapKey] = limiter
	return limiter
}

func limiterMapKey(provider, key string) string {
	return provider + "|" + key
}

func (m *RateLimiterManager) limitForProvider(provider string) rate.Limit {
	if cfg, ok := m.config[provider]; ok && cfg.RateLimitPerMinute > 0 {
		return rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0)
	}
	return rate.Limit(float64(defaultPerMinute) / 60.0)
}

func (m *RateLimiterManager) burstForProvider(provider string, limit rate.Limit) int {
	if cfg, ok := m.config[provider]; ok && cfg.Burst > 0 {
		return cfg.Burst
	}
	return defaultBurstForLimit(limit)
}

func defaultBurstForLimit(limit rate.Limit) int {
	if limit <= 1.0 {
		return 1
	}
	return int(math.Ceil(float64(limit)))
}
