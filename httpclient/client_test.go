package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// MockHttpStatusHandler implements IHttpStatusHandler for testing
type MockHttpStatusHandler struct {
	requestStatuses []string
	retryCount      int
}

func (m *MockHttpStatusHandler) OnRequest(status string) {
	m.requestStatuses = append(m.requestStatuses, status)
}

func (m *MockHttpStatusHandler) OnRetry() {
	m.retryCount++
}

func fastOptions() RetryOptions {
	opts := DefaultRetryOptions()
	opts.MaxRetries = 3
	opts.BaseBackoff = 10 * time.Millisecond
	opts.RequestTimeout = 2 * time.Second
	return opts
}

func postJSON(t *testing.T, url, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHTTPClientWithRetries_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	opts := fastOptions()
	opts.RequestTimeout = 50 * time.Millisecond
	handler := &MockHttpStatusHandler{}
	client := NewHTTPClientWithRetries(opts, handler, nil)

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, _, _, err := client.ExecuteRequest(req)

	assert.Error(t, err)
	assert.Equal(t, []string{"error", "error", "error"}, handler.requestStatuses)
	assert.Equal(t, 2, handler.retryCount)
}

func TestHTTPClientWithRetries_RetriesReplayBody(t *testing.T) {
	var attempts int32
	var bodies []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if atomic.AddInt32(&attempts, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"overloaded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer server.Close()

	handler := &MockHttpStatusHandler{}
	client := NewHTTPClientWithRetries(fastOptions(), handler, nil)

	resp, body, duration, err := client.ExecuteRequest(postJSON(t, server.URL, `{"prompt":"hi"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"text":"ok"}`, string(body))
	assert.Positive(t, duration)
	assert.Equal(t, []string{`{"prompt":"hi"}`, `{"prompt":"hi"}`, `{"prompt":"hi"}`}, bodies)
	assert.Equal(t, []string{StatusServerError, StatusServerError, StatusSuccess}, handler.requestStatuses)
	assert.Equal(t, 2, handler.retryCount)
}

func TestHTTPClientWithRetries_NonRetryableError(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	handler := &MockHttpStatusHandler{}
	client := NewHTTPClientWithRetries(fastOptions(), handler, nil)

	_, _, _, err := client.ExecuteRequest(postJSON(t, server.URL, `{}`))
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Body, "bad key")
	assert.True(t, IsAuthError(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&attempts))
	assert.Equal(t, []string{StatusAuthRefused}, handler.requestStatuses)
	assert.Zero(t, handler.retryCount)
}

func TestHTTPClientWithRetries_RetryableExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClientWithRetries(fastOptions(), nil, nil)
	_, _, _, err := client.ExecuteRequest(postJSON(t, server.URL, `{}`))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "7", se.RetryAfter)
	assert.False(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "all 3 attempts failed")
}

// mockTransport is a mock http.RoundTripper for testing custom behavior
type mockTransport struct {
	roundTripFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.roundTripFunc(req)
}

func TestHTTPClientWithRetries_NetworkErrors(t *testing.T) {
	opts := fastOptions()
	opts.MaxRetries = 2
	handler := &MockHttpStatusHandler{}
	client := NewHTTPClientWithRetries(opts, handler, nil)

	errorReturned := false
	client.Client.Transport = &mockTransport{
		roundTripFunc: func(req *http.Request) (*http.Response, error) {
			if !errorReturned {
				errorReturned = true
				return nil, errors.New("connection reset by peer")
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(`{"status":"ok"}`)),
				Header:     make(http.Header),
				Request:    req,
			}, nil
		},
	}

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	resp, body, _, err := client.ExecuteRequest(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"status":"ok"}`, string(body))
	assert.Equal(t, []string{"error", "success"}, handler.requestStatuses)
	assert.Equal(t, 1, handler.retryCount)
}

func TestHTTPClientWithRetries_ContextCancelStopsRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	opts := fastOptions()
	opts.MaxRetries = 10
	opts.BaseBackoff = time.Second
	client := NewHTTPClientWithRetries(opts, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)

	start := time.Now()
	_, _, _, err := client.ExecuteRequest(req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}

func TestHTTPClientWithRetries_RateLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	var seen []string
	client := NewHTTPClientWithRetries(fastOptions(), nil, func(r *http.Request) *rate.Limiter {
		seen = append(seen, r.Header.Get("Authorization"))
		return limiter
	})

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("Authorization", "Bearer k1")
	_, _, _, err := client.ExecuteRequest(req)
	require.NoError(t, err)

	// The bucket is empty and refills hourly, so the wait exceeds the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ = http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	req.Header.Set("Authorization", "Bearer k1")
	_, _, _, err = client.ExecuteRequest(req)
	assert.ErrorContains(t, err, "rate limiter wait failed")
	assert.Equal(t, []string{"Bearer k1", "Bearer k1"}, seen)
}

func TestHTTPClientWithRetries_NoHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewHTTPClientWithRetries(DefaultRetryOptions(), nil, nil)
	client.SetLogger(nil)

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, body, _, err := client.ExecuteRequest(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"status":"ok"}`, string(body))
}

func TestCalculateBackoffWithJitter(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, CalculateBackoffWithJitter(100*time.Millisecond, 0))
	assert.Zero(t, CalculateBackoffWithJitter(0, 3))

	for attempt := 1; attempt <= 4; attempt++ {
		base := 100 * time.Millisecond * time.Duration(1<<uint(attempt-1))
		got := CalculateBackoffWithJitter(100*time.Millisecond, attempt)
		assert.GreaterOrEqual(t, got, base)
		assert.Less(t, got, base+base/2)
	}
}

func TestRetryOptions_ApplyDefaults(t *testing.T) {
	opts := RetryOptions{MaxRetries: 5}
	opts.ApplyDefaults()

	d := DefaultRetryOptions()
	assert.Equal(t, 5, opts.MaxRetries)
	assert.Equal(t, d.BaseBackoff, opts.BaseBackoff)
	assert.Equal(t, d.RequestTimeout, opts.RequestTimeout)
	assert.Equal(t, "HTTP", opts.LogPrefix)
}

func TestStatusFor(t *testing.T) {
	tests := map[int]string{
		http.StatusUnauthorized:        StatusAuthRefused,
		http.StatusForbidden:           StatusAuthRefused,
		http.StatusTooManyRequests:     StatusRateLimited,
		http.StatusBadGateway:          StatusServerError,
		http.StatusServiceUnavailable:  StatusServerError,
		http.StatusBadRequest:          StatusFailed,
		http.StatusNotImplemented:      StatusFailed,
		http.StatusInternalServerError: StatusServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, statusFor(code), "status %d", code)
	}
}
