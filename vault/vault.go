package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/status-im/promptctl/models"
	"github.com/status-im/promptctl/store"
)

// MetricsRecorder records the outcome of credential operations
type MetricsRecorder interface {
	RecordCredentialOperation(operation, status string)
}

type noopMetrics struct{}

func (noopMetrics) RecordCredentialOperation(operation, status string) {}

// Vault stores provider API keys as a single JSON document
// ({"<provider>": "<api_key>"}) under one store key. Every mutation rewrites
// the whole document; an empty document is deleted instead of stored.
type Vault struct {
	store   store.Store
	key     string
	logger  store.Logger
	metrics MetricsRecorder
}

// Option is a functional option for configuring Vault
type Option func(*Vault)

// WithLogger sets the logger for Vault
func WithLogger(logger store.Logger) Option {
	return func(v *Vault) {
		v.logger = logger
	}
}

// WithMetrics sets the metrics recorder for Vault
func WithMetrics(metrics MetricsRecorder) Option {
	return func(v *Vault) {
		v.metrics = metrics
	}
}

// WithKey overrides the store key holding the document
func WithKey(key string) Option {
	return func(v *Vault) {
		v.key = key
	}
}

// New creates a Vault over s
func New(s store.Store, opts ...Option) *Vault {
	v := &Vault{
		store:   s,
		key:     store.DefaultKey,
		logger:  store.NoopLogger{},
		metrics: noopMetrics{},
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

func (v *Vault) load(ctx context.Context) (map[string]string, error) {
	data, found, err := v.store.Read(ctx, v.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	creds := make(map[string]string)
	if !found || len(data) == 0 {
		return creds, nil
	}

	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	return creds, nil
}

func (v *Vault) save(ctx context.Context, creds map[string]string) error {
	if len(creds) == 0 {
		if err := v.store.Delete(ctx, v.key); err != nil {
			return fmt.Errorf("failed to delete credentials: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	if err := v.store.Write(ctx, v.key, data); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	return nil
}

// List returns every stored credential with its key masked, sorted by provider.
// It never fails: an unreadable document is logged and treated as empty.
func (v *Vault) List(ctx context.Context) []models.MaskedCredential {
	creds, err := v.load(ctx)
	if err != nil {
		v.logger.Warn("Listing credentials failed", "error", err)
		v.metrics.RecordCredentialOperation("list", "error")
		return []models.MaskedCredential{}
	}

	out := make([]models.MaskedCredential, 0, len(creds))
	for provider, key := range creds {
		out = append(out, models.MaskedCredential{Provider: provider, APIKey: Mask(key)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Provider < out[j].Provider
	})

	v.metrics.RecordCredentialOperation("list", "success")
	return out
}

// Get returns the stored credential for provider
func (v *Vault) Get(ctx context.Context, provider string) (models.CredentialRecord, error) {
	creds, err := v.load(ctx)
	if err != nil {
		v.metrics.RecordCredentialOperation("get", "error")
		return models.CredentialRecord{}, err
	}

	key, ok := creds[provider]
	if !ok {
		v.metrics.RecordCredentialOperation("get", "not_found")
		return models.CredentialRecord{}, models.Errorf(models.ErrNotFound, "No credentials found for provider %q", provider)
	}

	v.metrics.RecordCredentialOperation("get", "success")
	return models.CredentialRecord{Provider: provider, APIKey: key}, nil
}

// Set stores apiKey for provider, replacing any existing key
func (v *Vault) Set(ctx context.Context, provider, apiKey string) error {
	if strings.TrimSpace(provider) == "" {
		v.metrics.RecordCredentialOperation("set", "invalid")
		return models.Errorf(models.ErrInvalidArgument, "Provider must not be empty")
	}
	if apiKey == "" {
		v.metrics.RecordCredentialOperation("set", "invalid")
		return models.Errorf(models.ErrInvalidArgument, "API key must not be empty")
	}

	creds, err := v.load(ctx)
	if err != nil {
		v.metrics.RecordCredentialOperation("set", "error")
		return err
	}

	_, existed := creds[provider]
	creds[provider] = apiKey

	if err := v.save(ctx, creds); err != nil {
		v.metrics.RecordCredentialOperation("set", "error")
		return err
	}

	v.logger.Debug("Stored credentials", "provider", provider, "replaced", existed)
	v.metrics.RecordCredentialOperation("set", "success")
	return nil
}

// Delete removes the credential for provider
func (v *Vault) Delete(ctx context.Context, provider string) error {
	creds, err := v.load(ctx)
	if err != nil {
		v.metrics.RecordCredentialOperation("delete", "error")
		return err
	}

	if _, ok := creds[provider]; !ok {
		v.metrics.RecordCredentialOperation("delete", "not_found")
		return models.Errorf(models.ErrNotFound, "No credentials found for provider %q", provider)
	}
	delete(creds, provider)

	if err := v.save(ctx, creds); err != nil {
		v.metrics.RecordCredentialOperation("delete", "error")
		return err
	}

	v.logger.Debug("Deleted credentials", "provider", provider, "remaining", len(creds))
	v.metrics.RecordCredentialOperation("delete", "success")
	return nil
}

// Providers returns the providers that have a stored key
func (v *Vault) Providers(ctx context.Context) ([]string, error) {
	creds, err := v.load(ctx)
	if err != nil {
		return nil, err
	}

	providers := make([]string, 0, len(creds))
	for provider := range creds {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	return providers, nil
}
