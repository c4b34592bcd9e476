package httpclient

import "net/http"

// Attempt outcomes reported to IHttpStatusHandler.OnRequest
const (
	StatusSuccess     = "success"
	StatusFailed      = "error"        // transport failure or non-retryable response
	StatusAuthRefused = "auth_refused" // 401/403, the key was rejected
	StatusRateLimited = "rate_limited"
	StatusServerError = "server_error" // retryable 5xx
)

// IHttpStatusHandler observes every attempt a client makes
type IHttpStatusHandler interface {
	OnRequest(status string)
	OnRetry()
}

// statusFor maps a failed response code to the outcome label
func statusFor(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return StatusAuthRefused
	case code == http.StatusTooManyRequests:
		return StatusRateLimited
	case isRetryableError(code):
		return StatusServerError
	default:
		return StatusFailed
	}
}
