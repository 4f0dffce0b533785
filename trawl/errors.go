package trawl

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// ErrStorageLocked is returned when another process holds the scan database
var ErrStorageLocked = errors.New("storage is locked by another process")

// ErrNotFound is returned by stores for missing keys
var ErrNotFound = errors.New("not found")

// ConfigError is raised before any crawling starts, the whole run is aborted
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// NewConfigError creates a new configuration error
func NewConfigError(field, value, reason string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// IsConfigError returns true if err (or anything it wraps) is a *ConfigError
func IsConfigError(err error) bool {
	var cerr *ConfigError
	return errors.As(err, &cerr)
}

// TransportError wraps network level failures (refused, reset, timeout, tls)
// so crawling and attacking can recover locally.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

// Unwrap the underlying network error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout returns true if the request expired
func (e *TransportError) Timeout() bool {
	var nerr net.Error
	if errors.As(e.Err, &nerr) {
		return nerr.Timeout()
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// NewTransportError creates a transport error for the given url
func NewTransportError(url string, err error) *TransportError {
	return &TransportError{URL: url, Err: err}
}

// IsTransportError returns true if err (or anything it wraps) is a *TransportError
func IsTransportError(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr)
}
