package httpgen

import (
	"fmt"
	"net/url"
	"time"

	"github.com/status-im/promptctl/httpclient"
	"github.com/status-im/promptctl/models"
	"github.com/status-im/promptctl/ratelimit"
)

// Config describes one JSON-over-HTTP generation endpoint
type Config struct {
	Name         string                  `yaml:"name"`
	URL          string                  `yaml:"url"`
	Kinds        []models.GenerationKind `yaml:"kinds"`
	DefaultModel string                  `yaml:"default_model"`
	KeyBackoff   time.Duration           `yaml:"key_backoff"` // overrides keys.backoff
	Retry        httpclient.RetryOptions `yaml:"retry"`
	RateLimit    ratelimit.RateLimit     `yaml:"rate_limit"`
}

// ApplyDefaults sets default values for unset fields
func (c *Config) ApplyDefaults() {
	if len(c.Kinds) == 0 {
		c.Kinds = []models.GenerationKind{models.KindText}
	}
	c.Retry.ApplyDefaults()
	c.Retry.LogPrefix = c.Name
}

// Validate checks that the endpoint can be used
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("backend name is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend %q: url must be an absolute http(s) URL, got %q", c.Name, c.URL)
	}
	for _, k := range c.Kinds {
		if !k.IsValid() {
			return fmt.Errorf("backend %q: invalid kind %q", c.Name, k)
		}
	}
	return nil
}
