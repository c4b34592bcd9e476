// Package factory opens the credential store selected by configuration.
package factory

import (
	"fmt"
	"io"
	"net/url"

	"github.com/status-im/promptctl/store"
	"github.com/status-im/promptctl/store/file"
	"github.com/status-im/promptctl/store/keydb"
	"github.com/status-im/promptctl/store/memory"
	"github.com/status-im/promptctl/store/sealed"
)

// Handle is an opened store together with what must be closed after use
type Handle struct {
	store.Store
	Kind     store.Kind
	Location string
	Sealed   bool
	closer   io.Closer
}

// Close releases connections held by the store
func (h *Handle) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

type options struct {
	logger  store.Logger
	metrics store.MetricsRecorder
}

// Option is a functional option for Open
type Option func(*options)

// WithLogger sets the logger handed to every store layer
func WithLogger(logger store.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder handed to every store layer
func WithMetrics(metrics store.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// Open creates the store described by cfg, wrapped in the sealed store when
// at-rest encryption is enabled.
func Open(cfg *store.Config, opts ...Option) (*Handle, error) {
	o := options{logger: store.NoopLogger{}, metrics: store.NoopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}

	cfg.ApplyDefaults()
	h := &Handle{Kind: cfg.Kind}

	switch cfg.Kind {
	case store.KindFile:
		fs := file.NewFileStore(&cfg.File, file.WithLogger(o.logger), file.WithMetrics(o.metrics))
		h.Store = fs
		h.Location = fs.Dir()

	case store.KindMemory:
		bs, err := memory.NewBigCacheStore(&cfg.Memory, memory.WithLogger(o.logger), memory.WithMetrics(o.metrics))
		if err != nil {
			return nil, err
		}
		h.Store = bs
		h.Location = "in-process"
		h.closer = bs

	case store.KindKeyDB:
		client, err := keydb.NewRedisKeyDbClient(&cfg.KeyDB, keydb.WithClientLogger(o.logger))
		if err != nil {
			return nil, err
		}
		ks := keydb.NewKeyDBStore(&cfg.KeyDB, client, keydb.WithLogger(o.logger), keydb.WithMetrics(o.metrics))
		h.Store = ks
		h.Location = redactURL(cfg.KeyDB.URL)
		h.closer = ks

	default:
		return nil, fmt.Errorf("unsupported store kind %q", cfg.Kind)
	}

	if cfg.Sealed.Enabled {
		ss, err := sealed.New(h.Store, &cfg.Sealed, sealed.WithLogger(o.logger))
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		h.Store = ss
		h.Sealed = true
	}

	o.logger.Debug("Opened credential store", "kind", string(h.Kind), "location", h.Location, "sealed", h.Sealed)
	return h, nil
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "keydb"
	}
	return u.Redacted()
}
