package ailink

import (
	"errors"
	"fmt"
)

// UnavailableMessage is the only failure text surfaced when no tier can serve a request.
const UnavailableMessage = "AI processing failed: no AI is available or configured correctly"

var (
	// ErrServiceUnavailable matches *UnavailableError.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrConfiguration matches *ConfigError.
	ErrConfiguration = errors.New("invalid ai configuration")
	// ErrStoreFailure matches *StoreError.
	ErrStoreFailure = errors.New("configuration store failure")
	// ErrInvalidRequest marks a malformed resolution request or configuration write.
	ErrInvalidRequest = errors.New("invalid request")
)

// ConfigError reports a configuration that cannot be turned into a provider handle.
type ConfigError struct {
	ConfigID string
	Provider string
	Reason   string
	Err      error
}

func (e *ConfigError) Error() string {
	msg := "invalid ai configuration"
	if e.ConfigID != "" {
		msg += " " + e.ConfigID
	}
	if e.Provider != "" {
		msg += fmt.Sprintf(" (provider %q)", e.Provider)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// UnavailableError is the terminal failure of a resolution. Its message is fixed; the
// underlying cause is retained for logs only and is not part of the error chain.
type UnavailableError struct {
	Role  Role
	cause error
}

func (e *UnavailableError) Error() string { return UnavailableMessage }

func (e *UnavailableError) Is(target error) bool { return target == ErrServiceUnavailable }

// Cause returns the fallback failure that led to the error.
func (e *UnavailableError) Cause() error { return e.cause }

// StoreError wraps a failure of the configuration store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("configuration store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreFailure }

// ErrConfigurationNotFound is returned by settings operations that address a missing record.
var ErrConfigurationNotFound = errors.New("configuration not found")
