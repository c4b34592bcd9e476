package httpclient

import "time"

// RetryOptions configures retry behavior for HTTP requests
type RetryOptions struct {
	MaxRetries        int           `yaml:"max_retries"`
	BaseBackoff       time.Duration `yaml:"base_backoff"`
	LogPrefix         string        `yaml:"-"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"` // Timeout for establishing connection
	RequestTimeout    time.Duration `yaml:"request_timeout"`    // Total request timeout including reading response
}

// DefaultRetryOptions returns default retry options
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:        3,
		BaseBackoff:       1000 * time.Millisecond,
		LogPrefix:         "HTTP",
		ConnectionTimeout: 10 * time.Second,
		RequestTimeout:    60 * time.Second, // image generation is slow
	}
}

// ApplyDefaults fills zero fields from DefaultRetryOptions
func (o *RetryOptions) ApplyDefaults() {
	d := DefaultRetryOptions()
	if o.MaxRetries <= 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = d.BaseBackoff
	}
	if o.LogPrefix == "" {
		o.LogPrefix = d.LogPrefix
	}
	if o.ConnectionTimeout <= 0 {
		o.ConnectionTimeout = d.ConnectionTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
}
