// Package config loads the promptctl configuration file and applies
// environment overrides on top of it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/status-im/promptctl/apikeys"
	"github.com/status-im/promptctl/backend/httpgen"
	"github.com/status-im/promptctl/store"
)

// Environment variables consulted by ApplyEnv and Load
const (
	EnvConfig      = "PROMPTCTL_CONFIG"
	EnvStore       = "PROMPTCTL_STORE"
	EnvStorePath   = "PROMPTCTL_STORE_PATH"
	EnvKeyDBURL    = "PROMPTCTL_KEYDB_URL"
	EnvPassphrase  = "PROMPTCTL_PASSPHRASE"
	EnvMetricsFile = "PROMPTCTL_METRICS_FILE"
)

type Config struct {
	LogLevel    string           `yaml:"log_level"`
	LogFormat   string           `yaml:"log_format"`
	MetricsFile string           `yaml:"metrics_file"`
	Store       store.Config     `yaml:"store"`
	Keys        KeysConfig       `yaml:"keys"`
	Output      OutputConfig     `yaml:"output"`
	Backends    []httpgen.Config `yaml:"backends"`
}

// KeysConfig controls where backend API keys come from
type KeysConfig struct {
	Sources []apikeys.KeySource `yaml:"sources"`
	Backoff time.Duration       `yaml:"backoff"`
}

// OutputConfig controls artifact files
type OutputConfig struct {
	FileMode string `yaml:"file_mode"` // octal, e.g. "0644"
}

// Mode parses FileMode
func (o OutputConfig) Mode() (os.FileMode, error) {
	mode, err := strconv.ParseUint(o.FileMode, 8, 32)
	if err != nil || mode > 0o777 {
		return 0, fmt.Errorf("invalid output file_mode %q: expected an octal permission like \"0644\"", o.FileMode)
	}
	return os.FileMode(mode), nil
}

type Option func(*Config)

func New(opts ...Option) *Config {
	cfg := &Config{
		LogLevel:  "warn",
		LogFormat: "text",
		Keys: KeysConfig{
			Sources: []apikeys.KeySource{apikeys.SourceVault, apikeys.SourceEnv},
			Backoff: 5 * time.Minute,
		},
		Output: OutputConfig{FileMode: "0644"},
	}
	cfg.Store.ApplyDefaults()

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.LogLevel = level
	}
}

func WithLogFormat(format string) Option {
	return func(c *Config) {
		c.LogFormat = format
	}
}

func WithStoreKind(kind store.Kind) Option {
	return func(c *Config) {
		c.Store.Kind = kind
	}
}

func WithStoreDir(dir string) Option {
	return func(c *Config) {
		c.Store.File.Dir = dir
	}
}

func WithPassphrase(passphrase string) Option {
	return func(c *Config) {
		c.Store.Sealed.Enabled = true
		c.Store.Sealed.Passphrase = passphrase
	}
}

func WithMetricsFile(path string) Option {
	return func(c *Config) {
		c.MetricsFile = path
	}
}

func WithBackend(backend httpgen.Config) Option {
	return func(c *Config) {
		c.Backends = append(c.Backends, backend)
	}
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := New()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Store.ApplyDefaults()
	for i := range cfg.Backends {
		cfg.Backends[i].ApplyDefaults()
	}

	return cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(bytes.NewReader(data))
}

// DefaultPath returns $XDG_CONFIG_HOME/promptctl/config.yaml, falling back to
// the platform config directory.
func DefaultPath() string {
	return defaultPath(os.Getenv)
}

func defaultPath(getenv func(string) string) string {
	if dir := getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "promptctl", "config.yaml")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "promptctl", "config.yaml")
	}
	return "promptctl.yaml"
}

// Load reads the file named by path, PROMPTCTL_CONFIG or DefaultPath, in that
// order, and applies environment overrides. Only an explicitly named file has
// to exist; a missing default file yields the defaults. All environment
// lookups go through getenv; nil means os.Getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	explicit := true
	if path == "" {
		path = getenv(EnvConfig)
	}
	if path == "" {
		path = defaultPath(getenv)
		explicit = false
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = New()
	}

	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from the environment
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvStore); v != "" {
		kind, err := store.ParseKind(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStore, err)
		}
		c.Store.Kind = kind
	}

	if v := getenv(EnvStorePath); v != "" {
		c.Store.File.Dir = v
	}

	if v := getenv(EnvKeyDBURL); v != "" {
		c.Store.KeyDB.URL = v
	}

	if v := getenv(EnvPassphrase); v != "" {
		c.Store.Sealed.Enabled = true
		c.Store.Sealed.Passphrase = v
	}

	if v := getenv(EnvMetricsFile); v != "" {
		c.MetricsFile = v
	}

	return nil
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: must be text or json", c.LogFormat)
	}

	if _, err := store.ParseKind(string(c.Store.Kind)); err != nil {
		return err
	}

	if c.Store.Kind == store.KindFile && c.Store.File.Dir == "" {
		return fmt.Errorf("store.file.dir is required for the file store")
	}

	if c.Store.Sealed.Enabled && c.Store.Sealed.Passphrase == "" {
		return fmt.Errorf("sealed store requires a passphrase: set %s", EnvPassphrase)
	}
	if c.Store.Sealed.Enabled {
		if err := c.Store.Sealed.Argon2.Validate(); err != nil {
			return fmt.Errorf("store.sealed: %w", err)
		}
	}

	if len(c.Keys.Sources) == 0 {
		return fmt.Errorf("keys.sources must name at least one source")
	}

	if _, err := c.Output.Mode(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for i := range c.Backends {
		if err := c.Backends[i].Validate(); err != nil {
			return err
		}
		if seen[c.Backends[i].Name] {
			return fmt.Errorf("duplicate backend name %q", c.Backends[i].Name)
		}
		seen[c.Backends[i].Name] = true
	}

	return nil
}
