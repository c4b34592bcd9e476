package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/status-im/promptctl/apikeys"
	"github.com/status-im/promptctl/backend"
	"github.com/status-im/promptctl/backend/httpgen"
	"github.com/status-im/promptctl/config"
	"github.com/status-im/promptctl/metrics"
	"github.com/status-im/promptctl/models"
	"github.com/status-im/promptctl/output"
	"github.com/status-im/promptctl/ratelimit"
	"github.com/status-im/promptctl/store"
	"github.com/status-im/promptctl/store/factory"
	"github.com/status-im/promptctl/vault"
)

// *slog.Logger already has the Debug/Info/Warn/Error(msg, kv...) shape
var _ store.Logger = (*slog.Logger)(nil)

// app is everything a command needs, assembled once per invocation
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	store    *factory.Handle
	vault    *vault.Vault
	registry *backend.Registry
	writer   *output.Writer
}

// overrides lets tests swap pieces that would otherwise come from the
// environment
type overrides struct {
	getenv         func(string) string
	store          store.Store
	backends       []backend.Backend
	protectedRoots []output.ProtectedRoot
}

// globalFlags are the persistent flags of the root command
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	store      string
}

func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler

	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}

	return slog.New(handler)
}

func loadConfig(flags *globalFlags, changed func(string) bool, getenv func(string) string) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath, getenv)
	if err != nil {
		return nil, err
	}

	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = flags.logFormat
	}
	if changed("store") {
		kind, err := store.ParseKind(flags.store)
		if err != nil {
			return nil, models.Wrapf(models.ErrInvalidArgument, err, "Invalid --store")
		}
		cfg.Store.Kind = kind
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newApp(cfg *config.Config, stderr io.Writer, ov overrides) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  newLogger(cfg.LogLevel, cfg.LogFormat, stderr),
		metrics: metrics.New(metrics.Config{}),
	}

	var st store.Store
	if ov.store != nil {
		st = ov.store
	} else {
		h, err := factory.Open(&cfg.Store, factory.WithLogger(a.logger), factory.WithMetrics(a.metrics))
		if err != nil {
			return nil, fmt.Errorf("failed to open credential store: %w", err)
		}
		a.store = h
		st = h
	}

	a.vault = vault.New(st,
		vault.WithLogger(a.logger),
		vault.WithMetrics(a.metrics),
		vault.WithKey(cfg.Store.Key),
	)

	getenv := ov.getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	keys := apikeys.NewSourceProvider(a.vault, getenv)
	limiters := ratelimit.NewRateLimiterManager(rateLimits(cfg.Backends))

	a.registry = backend.NewRegistry(backend.WithLogger(a.logger), backend.WithMetrics(a.metrics))
	for _, bc := range cfg.Backends {
		manager := apikeys.NewAPIKeyManager(keys, cfg.Keys.Sources, backoffFor(bc, cfg), apikeys.WithLogger(a.logger))
		b, err := httpgen.New(bc, manager,
			httpgen.WithLogger(a.logger),
			httpgen.WithStatusHandler(a.metrics),
			httpgen.WithRateLimiterManager(limiters),
		)
		if err != nil {
			a.close()
			return nil, err
		}
		if err := a.registry.Register(b); err != nil {
			a.close()
			return nil, err
		}
	}
	for _, b := range ov.backends {
		if err := a.registry.Register(b); err != nil {
			a.close()
			return nil, err
		}
	}

	mode, err := cfg.Output.Mode()
	if err != nil {
		a.close()
		return nil, err
	}
	writerOpts := []output.Option{
		output.WithFileMode(mode),
		output.WithLogger(a.logger),
		output.WithMetrics(a.metrics),
	}
	if ov.protectedRoots != nil {
		writerOpts = append(writerOpts, output.WithProtectedRoots(ov.protectedRoots))
	}
	a.writer = output.NewWriter(writerOpts...)

	return a, nil
}

func rateLimits(backends []httpgen.Config) map[string]ratelimit.RateLimit {
	limits := make(map[string]ratelimit.RateLimit, len(backends))
	for _, b := range backends {
		limits[b.Name] = b.RateLimit
	}
	return limits
}

func backoffFor(bc httpgen.Config, cfg *config.Config) time.Duration {
	if bc.KeyBackoff > 0 {
		return bc.KeyBackoff
	}
	return cfg.Keys.Backoff
}

// close releases the store and exports metrics when configured
func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Closing credential store failed", "error", err)
		}
	}
	if a.cfg.MetricsFile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.logger.Warn("Writing metrics file failed", "path", a.cfg.MetricsFile, "error", err)
		}
	}
}

// userMessage renders err for the terminal. Typed errors carry a message
// written for people; the kind prefix is dropped.
func userMessage(err error) string {
	var e *models.Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}
	return err.Error()
}
