package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateName is returned when (tenant, name) is already registered.
	ErrDuplicateName = errors.New("duplicate monitor name")
	// ErrNotFound is returned when no monitor exists for (tenant, name).
	ErrNotFound = errors.New("monitor not found")
	// ErrInvalidDestination is returned when a destination cannot receive notifications.
	ErrInvalidDestination = errors.New("invalid destination")
	// ErrInvalidInput is returned when registration input fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExtractionEmpty means a page produced no usable candidates.
	ErrExtractionEmpty = errors.New("no usable candidates extracted")
	// ErrStaleGeneration means a monitor was removed and re-added while a tick was running.
	ErrStaleGeneration = errors.New("monitor generation changed")
)

// ConfigError is surfaced synchronously to callers of the registration,
// update and removal operations. It never reaches the scheduler.
type ConfigError struct {
	Op     string
	Key    MonitorKey
	Reason string
	Err    error
}

// Error returns the error message for ConfigError.
func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s: %v: %s", e.Op, e.Key, e.Err, e.Reason)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes the sentinel so callers can use errors.Is.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError for the given operation and key.
func NewConfigError(op string, key MonitorKey, err error, reason string) *ConfigError {
	return &ConfigError{Op: op, Key: key, Reason: reason, Err: err}
}

// FetchError reports that every fetch phase failed for a URL.
type FetchError struct {
	URL   string
	Phase string
	Err   error
}

// Error returns the error message for FetchError.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed (last phase %s): %v", e.URL, e.Phase, e.Err)
}

// Unwrap returns the last phase error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// DispatchError reports a notification channel failure.
type DispatchError struct {
	Destination string
	Err         error
}

// Error returns the error message for DispatchError.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %s failed: %v", e.Destination, e.Err)
}

// Unwrap returns the channel error.
func (e *DispatchError) Unwrap() error {
	return e.Err
}
