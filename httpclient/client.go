package httpclient

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/status-im/promptctl/store"
)

// maxErrorBody caps how much of a failed response ends up in an error
const maxErrorBody = 512

// StatusError is returned for a non-200 response
type StatusError struct {
	StatusCode int
	RetryAfter string
	Body       string
}

func (e *StatusError) Error() string {
	if e.StatusCode == http.StatusTooManyRequests {
		return fmt.Sprintf("rate limit exceeded (status %d), retry after %s: %s", e.StatusCode, e.RetryAfter, e.Body)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsAuthError reports whether err is a 401/403 response, i.e. the key was refused
func IsAuthError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden
	}
	return false
}

// HTTPClientWithRetries wraps an HTTP Client with retry capabilities
type HTTPClientWithRetries struct {
	Client        *http.Client
	Opts          RetryOptions
	StatusHandler IHttpStatusHandler
	Logger        store.Logger
	// RateLimiter is an optional callback that returns a rate limiter for the request
	// The callback receives the request and should return a rate limiter or nil
	RateLimiter func(*http.Request) *rate.Limiter
}

// NewHTTPClientWithRetries creates a new HTTP Client with retry capabilities
func NewHTTPClientWithRetries(opts RetryOptions, handler IHttpStatusHandler, rateLimiter func(*http.Request) *rate.Limiter) *HTTPClientWithRetries {
	client := &http.Client{
		Timeout: opts.RequestTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: opts.ConnectionTimeout,
			}).DialContext,
		},
	}

	return &HTTPClientWithRetries{
		Client:        client,
		Opts:          opts,
		StatusHandler: handler,
		Logger:        store.NoopLogger{},
		RateLimiter:   rateLimiter,
	}
}

// SetStatusHandler sets the status handler for this Client
func (c *HTTPClientWithRetries) SetStatusHandler(handler IHttpStatusHandler) {
	c.StatusHandler = handler
}

// SetLogger sets the logger for this Client
func (c *HTTPClientWithRetries) SetLogger(logger store.Logger) {
	c.Logger = logger
}

func (c *HTTPClientWithRetries) onRequest(status string) {
	if c.StatusHandler != nil {
		c.StatusHandler.OnRequest(status)
	}
}

func (c *HTTPClientWithRetries) logger() store.Logger {
	if c.Logger == nil {
		return store.NoopLogger{}
	}
	return c.Logger
}

// ExecuteRequest executes an HTTP request with retry logic. A request with a
// body is replayed through req.GetBody, which http.NewRequest sets for the
// common in-memory readers.
func (c *HTTPClientWithRetries) ExecuteRequest(req *http.Request) (*http.Response, []byte, time.Duration, error) {
	var lastErr error
	ctx := req.Context()
	maxRetries := c.Opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			c.logger().Warn("Retrying request",
				"prefix", c.Opts.LogPrefix, "attempt", attempt, "max", maxRetries-1, "error", lastErr)
			if c.StatusHandler != nil {
				c.StatusHandler.OnRetry()
			}

			backoffDuration := CalculateBackoffWithJitter(c.Opts.BaseBackoff, attempt)
			c.logger().Debug("Waiting before retry", "prefix", c.Opts.LogPrefix, "backoff", backoffDuration)
			if err := sleepContext(ctx, backoffDuration); err != nil {
				lastErr = err
				break
			}

			if req.Body != nil && req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					lastErr = fmt.Errorf("cannot replay request body: %w", err)
					break
				}
				req.Body = body
			}
		}

		requestStart := time.Now()

		// Rate limit before executing the request
		if c.RateLimiter != nil {
			if limiter := c.RateLimiter(req); limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					lastErr = fmt.Errorf("rate limiter wait failed: %w", err)
					c.onRequest(StatusFailed)
					break
				}
			}
		}

		resp, err := c.Client.Do(req)
		requestDuration := time.Since(requestStart)

		if err != nil {
			lastErr = fmt.Errorf("request failed after %.2fs: %w", requestDuration.Seconds(), err)
			c.onRequest(StatusFailed)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		responseBody, err := processResponse(resp)
		_ = resp.Body.Close()
		if err != nil {
			c.onRequest(statusFor(resp.StatusCode))
			if isRetryableError(resp.StatusCode) {
				lastErr = err
				continue
			}
			return nil, nil, requestDuration, err
		}

		c.onRequest(StatusSuccess)
		return resp, responseBody, requestDuration, nil
	}

	return nil, nil, 0, fmt.Errorf("all %d attempts failed, last error: %w", maxRetries, lastErr)
}

// processResponse reads and processes the HTTP response
func processResponse(resp *http.Response) ([]byte, error) {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
			Body:       string(body),
		}
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	return responseBody, nil
}

// isRetryableError determines if a given HTTP status code should trigger a retry
func isRetryableError(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}
