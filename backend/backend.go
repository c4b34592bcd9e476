// Package backend selects the generation engine that serves a validated
// request. Engines are opaque: anything implementing Backend can be
// registered, the shipped one being the JSON-over-HTTP adapter in httpgen.
package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/status-im/promptctl/models"
	"github.com/status-im/promptctl/store"
)

//go:generate mockgen -package=mock -destination=mock/backend.go . Backend

// Backend is a generation engine for one provider
type Backend interface {
	Name() string
	Supports(kind models.GenerationKind) bool
	Generate(ctx context.Context, req *models.GenerationRequest) (models.Result, error)
}

// MetricsRecorder records backend request outcomes
type MetricsRecorder interface {
	RecordBackendRequest(backend, status string)
}

type noopMetrics struct{}

func (noopMetrics) RecordBackendRequest(backend, status string) {}

// Registry holds backends in registration order
type Registry struct {
	mu       sync.RWMutex
	backends []Backend
	logger   store.Logger
	metrics  MetricsRecorder
}

// Option is a functional option for configuring Registry
type Option func(*Registry)

// WithLogger sets the logger for Registry
func WithLogger(logger store.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics recorder for Registry
func WithMetrics(metrics MetricsRecorder) Option {
	return func(r *Registry) {
		r.metrics = metrics
	}
}

// NewRegistry creates an empty Registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger:  store.NoopLogger{},
		metrics: noopMetrics{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register appends b; names must be unique
func (r *Registry) Register(b Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.backends {
		if existing.Name() == b.Name() {
			return fmt.Errorf("backend %q already registered", b.Name())
		}
	}
	r.backends = append(r.backends, b)
	return nil
}

// Backends returns the registered backends in registration order
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Backend, len(r.backends))
	copy(out, r.backends)
	return out
}

func (r *Registry) lookup(name string) Backend {
	for _, b := range r.backends {
		if b.Name() == name {
			return b
		}
	}
	return nil
}

// Resolve picks the backend for req:
//  1. an explicit provider must be registered and support the kind;
//  2. otherwise the first model preference naming a registered backend that
//     supports the kind wins;
//  3. otherwise the first registered backend supporting the kind.
func (r *Registry) Resolve(req *models.GenerationRequest) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name := req.ProviderName(); name != "" {
		b := r.lookup(name)
		if b == nil {
			return nil, models.Errorf(models.ErrBackendUnavailable, "No backend configured for provider %q", name)
		}
		if !b.Supports(req.Kind) {
			return nil, models.Errorf(models.ErrBackendUnavailable,
				"Provider %q does not support %s generation", name, req.Kind)
		}
		return b, nil
	}

	for _, pref := range req.ModelPreferences {
		if b := r.lookup(pref.Provider); b != nil && b.Supports(req.Kind) {
			return b, nil
		}
	}

	for _, b := range r.backends {
		if b.Supports(req.Kind) {
			return b, nil
		}
	}

	return nil, models.Errorf(models.ErrBackendUnavailable, "No backend available for %s generation", req.Kind)
}

// Generate resolves a backend and runs req on it
func (r *Registry) Generate(ctx context.Context, req *models.GenerationRequest) (models.Result, error) {
	b, err := r.Resolve(req)
	if err != nil {
		r.metrics.RecordBackendRequest("none", "unavailable")
		return nil, err
	}

	r.logger.Debug("Dispatching request", "request_id", req.ID.String(), "backend", b.Name(), "kind", req.Kind.String())

	result, err := b.Generate(ctx, req)
	if err != nil {
		r.metrics.RecordBackendRequest(b.Name(), "error")
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if result == nil || result.Kind() != req.Kind {
		r.metrics.RecordBackendRequest(b.Name(), "error")
		return nil, fmt.Errorf("%s: backend returned a result of the wrong kind for a %s request", b.Name(), req.Kind)
	}

	r.metrics.RecordBackendRequest(b.Name(), "success")
	return result, nil
}
