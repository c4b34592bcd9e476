package apikeys

import (
	"errors"
	"fmt"

	"github.com/status-im/promptctl/store"
)

// ErrNoKeys is returned by TryWithKeys when there is nothing to try
var ErrNoKeys = errors.New("no API keys available")

// RequestExecutor attempts a request with the given API key.
// It returns the response data, success flag, and any error.
type RequestExecutor[T any] func(apiKey APIKey) (T, bool, error)

// OnFailedCallback represents a function that is called when an API key fails
type OnFailedCallback func(apiKey APIKey)

// CreateFailCallback creates a callback that marks keys as failed
func CreateFailCallback(keyManager IAPIKeyManager) OnFailedCallback {
	return func(apiKey APIKey) {
		if apiKey.Key != "" {
			keyManager.MarkKeyAsFailed(apiKey.Key)
		}
	}
}

// TryWithKeys runs executor with each key in order until one succeeds. Keys
// whose attempt returns an error are reported to onFailed; an unsuccessful
// attempt without an error just moves on to the next key.
func TryWithKeys[T any](availableKeys []APIKey, logger store.Logger, executor RequestExecutor[T], onFailed OnFailedCallback) (T, error) {
	var zero T
	if len(availableKeys) == 0 {
		return zero, ErrNoKeys
	}
	if logger == nil {
		logger = store.NoopLogger{}
	}

	var lastError error
	for _, apiKey := range availableKeys {
		result, success, err := executor(apiKey)

		if success {
			return result, nil
		}

		if err != nil {
			logger.Warn("Request failed with API key",
				"provider", apiKey.Provider, "source", apiKey.Source.String(), "error", err)

			if onFailed != nil {
				onFailed(apiKey)
			}

			lastError = err
		}
	}

	if lastError == nil {
		return zero, fmt.Errorf("all %d API keys were rejected", len(availableKeys))
	}
	return zero, fmt.Errorf("all API keys failed, last error: %w", lastError)
}
