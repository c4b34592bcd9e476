package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultKey is the store key holding the credential document
const DefaultKey = "credentials"

// Kind selects the store backend
type Kind string

const (
	KindFile   Kind = "file"
	KindMemory Kind = "memory"
	KindKeyDB  Kind = "keydb"
)

// ParseKind validates a backend name
func ParseKind(s string) (Kind, error) {
	switch s {
	case "file", "memory", "keydb":
		return Kind(s), nil
	default:
		return "", fmt.Errorf("invalid store kind '%s': must be one of 'file', 'memory', 'keydb'", s)
	}
}

// UnmarshalYAML implements custom YAML unmarshaling for Kind
func (k *Kind) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	kind, err := ParseKind(str)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// Config represents the credential store configuration
type Config struct {
	Kind   Kind           `yaml:"kind" json:"kind"`
	Key    string         `yaml:"key" json:"key"`
	File   FileConfig     `yaml:"file" json:"file"`
	Memory BigCacheConfig `yaml:"memory" json:"memory"`
	KeyDB  KeyDBConfig    `yaml:"keydb" json:"keydb"`
	Sealed SealedConfig   `yaml:"sealed" json:"sealed"`
}

func (c *Config) ApplyDefaults() {
	if c.Kind == "" {
		c.Kind = KindFile
	}
	if c.Key == "" {
		c.Key = DefaultKey
	}
	c.File.ApplyDefaults()
	c.Memory.ApplyDefaults()
	c.KeyDB.ApplyDefaults()
	c.Sealed.ApplyDefaults()
}

// FileConfig represents the file-backed store configuration
type FileConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

func (c *FileConfig) ApplyDefaults() {
	if c.Dir == "" {
		c.Dir = DefaultDataDir()
	}
}

// DefaultDataDir returns $XDG_DATA_HOME/promptctl, falling back to ~/.local/share/promptctl
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "promptctl")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "promptctl")
	}
	return ".promptctl"
}

// BigCacheConfig represents the in-process (BigCache) store configuration
type BigCacheConfig struct {
	Size         int `yaml:"size" json:"size"` // MB
	MaxEntrySize int `yaml:"max_entry_size" json:"max_entry_size"`
	Shards       int `yaml:"shards" json:"shards"` // must be power of 2
}

func (c *BigCacheConfig) ApplyDefaults() {
	if c.Size == 0 {
		c.Size = 8
	}
	if c.MaxEntrySize == 0 {
		c.MaxEntrySize = 1048576
	}
	if c.Shards == 0 {
		c.Shards = 16 // power of 2
	}
}

// KeyDBConfig represents the KeyDB/Redis store configuration
type KeyDBConfig struct {
	URL        string           `yaml:"url" json:"url"`
	Connection ConnectionConfig `yaml:"connection" json:"connection"`
	Keepalive  KeepaliveConfig  `yaml:"keepalive" json:"keepalive"`
}

func (c *KeyDBConfig) ApplyDefaults() {
	if c.URL == "" {
		c.URL = "redis://localhost:6379/0"
	}
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = 1000 * time.Millisecond
	}
	if c.Connection.SendTimeout == 0 {
		c.Connection.SendTimeout = 1000 * time.Millisecond
	}
	if c.Connection.ReadTimeout == 0 {
		c.Connection.ReadTimeout = 1000 * time.Millisecond
	}

	if c.Keepalive.PoolSize == 0 {
		c.Keepalive.PoolSize = 2
	}
	if c.Keepalive.MaxIdleTimeout == 0 {
		c.Keepalive.MaxIdleTimeout = 10000 * time.Millisecond
	}
}

type ConnectionConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	SendTimeout    time.Duration `yaml:"send_timeout" json:"send_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
}

// KeepaliveConfig represents connection pool settings
type KeepaliveConfig struct {
	PoolSize       int           `yaml:"pool_size" json:"pool_size"` // max connections in pool
	MaxIdleTimeout time.Duration `yaml:"max_idle_timeout" json:"max_idle_timeout"`
}

// SealedConfig enables at-rest encryption of stored documents
type SealedConfig struct {
	Enabled    bool         `yaml:"enabled" json:"enabled"`
	Passphrase string       `yaml:"-" json:"-"` // environment only
	Argon2     Argon2Config `yaml:"argon2" json:"argon2"`
}

func (c *SealedConfig) ApplyDefaults() {
	if c.Argon2.MemoryKB == 0 {
		c.Argon2.MemoryKB = 16384
	}
	if c.Argon2.Time == 0 {
		c.Argon2.Time = 4
	}
	if c.Argon2.Threads == 0 {
		c.Argon2.Threads = 4
	}
}

// Argon2Config holds the argon2id key derivation parameters
type Argon2Config struct {
	MemoryKB int `yaml:"memory_kb" json:"memory_kb"`
	Time     int `yaml:"time" json:"time"`
	Threads  int `yaml:"threads" json:"threads"`
}

// MaxArgon2MemoryKB caps key derivation memory at 1 GiB
const MaxArgon2MemoryKB = 1 << 20

// Validate checks the parameters are within what argon2.IDKey accepts
func (c Argon2Config) Validate() error {
	if c.Time < 1 {
		return fmt.Errorf("argon2 time must be at least 1, got %d", c.Time)
	}
	if c.Threads < 1 || c.Threads > 255 {
		return fmt.Errorf("argon2 threads must be between 1 and 255, got %d", c.Threads)
	}
	if c.MemoryKB < 8*c.Threads || c.MemoryKB > MaxArgon2MemoryKB {
		return fmt.Errorf("argon2 memory_kb must be between %d and %d, got %d", 8*c.Threads, MaxArgon2MemoryKB, c.MemoryKB)
	}
	return nil
}
