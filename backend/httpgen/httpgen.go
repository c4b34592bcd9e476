// Package httpgen is a generation backend that POSTs the request as JSON to
// a configured endpoint. The endpoint is expected to answer with
// {"text": "..."} or {"image": {"mime_type": "...", "data": "<base64>"}}.
package httpgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/status-im/promptctl/apikeys"
	"github.com/status-im/promptctl/httpclient"
	"github.com/status-im/promptctl/models"
	"github.com/status-im/promptctl/ratelimit"
	"github.com/status-im/promptctl/store"
)

type wireRequest struct {
	ID                string   `json:"id"`
	Kind              string   `json:"kind"`
	Prompt            string   `json:"prompt"`
	Model             string   `json:"model,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	MaxTokens         *int     `json:"max_tokens,omitempty"`
	SystemInstruction *string  `json:"system_instruction,omitempty"`
}

type wireImage struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type wireResponse struct {
	Text  *string    `json:"text"`
	Image *wireImage `json:"image"`
	Model string     `json:"model"`
}

// Backend implements backend.Backend over HTTP
type Backend struct {
	cfg      Config
	keys     apikeys.IAPIKeyManager
	limiters ratelimit.IRateLimiterManager
	client   *httpclient.HTTPClientWithRetries
	logger   store.Logger
}

// Option is a functional option for configuring Backend
type Option func(*Backend)

// WithLogger sets the logger for Backend and its HTTP client
func WithLogger(logger store.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// WithStatusHandler receives per-attempt HTTP outcomes
func WithStatusHandler(handler httpclient.IHttpStatusHandler) Option {
	return func(b *Backend) {
		b.client.SetStatusHandler(handler)
	}
}

// WithRateLimiterManager shares limiters between backends
func WithRateLimiterManager(m ratelimit.IRateLimiterManager) Option {
	return func(b *Backend) {
		b.limiters = m
	}
}

// New creates an HTTP backend. keys supplies the API keys for cfg.Name.
func New(cfg Config, keys apikeys.IAPIKeyManager, opts ...Option) (*Backend, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{
		cfg:    cfg,
		keys:   keys,
		logger: store.NoopLogger{},
		limiters: ratelimit.NewRateLimiterManager(map[string]ratelimit.RateLimit{
			cfg.Name: cfg.RateLimit,
		}),
	}
	b.client = httpclient.NewHTTPClientWithRetries(cfg.Retry, nil, b.limiterFor)

	for _, opt := range opts {
		opt(b)
	}
	b.client.SetLogger(b.logger)

	return b, nil
}

func (b *Backend) limiterFor(req *http.Request) *rate.Limiter {
	key := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	if key == "" {
		return nil
	}
	return b.limiters.GetLimiter(b.cfg.Name, key)
}

// Name implements backend.Backend
func (b *Backend) Name() string {
	return b.cfg.Name
}

// Supports implements backend.Backend
func (b *Backend) Supports(kind models.GenerationKind) bool {
	for _, k := range b.cfg.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Kinds returns the generation kinds this backend serves
func (b *Backend) Kinds() []models.GenerationKind {
	return b.cfg.Kinds
}

// Generate implements backend.Backend. Keys are tried in priority order and a
// key whose request fails is put into backoff.
func (b *Backend) Generate(ctx context.Context, req *models.GenerationRequest) (models.Result, error) {
	keys := b.keys.GetAvailableKeys(ctx, b.cfg.Name)
	if len(keys) == 0 {
		return nil, models.Errorf(models.ErrBackendUnavailable,
			"No API key for provider %q: run 'promptctl credentials set %s' or set %s",
			b.cfg.Name, b.cfg.Name, apikeys.EnvVarName(b.cfg.Name))
	}

	model := req.ModelFor(b.cfg.Name)
	if model == "" {
		model = b.cfg.DefaultModel
	}

	body, err := json.Marshal(wireRequest{
		ID:                req.ID.String(),
		Kind:              req.Kind.String(),
		Prompt:            req.Prompt,
		Model:             model,
		Temperature:       req.Temperature,
		TopP:              req.TopP,
		TopK:              req.TopK,
		MaxTokens:         req.MaxTokens,
		SystemInstruction: req.SystemInstruction,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	return apikeys.TryWithKeys(keys, b.logger, func(key apikeys.APIKey) (models.Result, bool, error) {
		res, err := b.call(ctx, req.Kind, model, body, key.Key)
		if err != nil {
			return nil, false, err
		}
		return res, true, nil
	}, apikeys.CreateFailCallback(b.keys))
}

func (b *Backend) call(ctx context.Context, kind models.GenerationKind, model string, body []byte, key string) (models.Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	_, respBody, duration, err := b.client.ExecuteRequest(httpReq)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("Backend responded", "backend", b.cfg.Name, "duration", duration, "bytes", len(respBody))

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if wire.Model != "" {
		model = wire.Model
	}

	switch kind {
	case models.KindText:
		if wire.Text == nil {
			return nil, fmt.Errorf("response has no text")
		}
		return models.TextResult{Text: *wire.Text, Provider: b.cfg.Name, Model: model}, nil
	case models.KindImage:
		if wire.Image == nil || wire.Image.Data == "" {
			return nil, fmt.Errorf("response has no image data")
		}
		return models.ImageResult{
			MIMEType: wire.Image.MIMEType,
			Base64:   wire.Image.Data,
			Provider: b.cfg.Name,
			Model:    model,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}
}
