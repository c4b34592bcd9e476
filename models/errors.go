package models

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to the command layer. Match them with errors.Is.
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNotFound             = errors.New("not found")
	ErrInvalidDestination   = errors.New("invalid destination")
	ErrForbiddenDestination = errors.New("forbidden destination")
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrWriteFailed          = errors.New("write failed")
	ErrBackendUnavailable   = errors.New("backend unavailable")
)

// Error carries one of the kinds above together with a human readable message
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is / errors.As
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Errorf builds an *Error of the given kind
func Errorf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrapf builds an *Error of the given kind around a cause
func Wrapf(kind error, cause error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind sentinel of err, or nil when err carries none
func KindOf(err error) error {
	for _, kind := range []error{
		ErrInvalidArgument,
		ErrNotFound,
		ErrInvalidDestination,
		ErrForbiddenDestination,
		ErrInvalidPayload,
		ErrPayloadTooLarge,
		ErrWriteFailed,
		ErrBackendUnavailable,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
