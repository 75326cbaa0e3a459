package restarter

import (
	"errors"
	"fmt"
)

// Common errors returned by svcrestarter operations
var (
	// ErrMalformedValue indicates a raw value payload does not fit its type tag
	ErrMalformedValue = errors.New("svcrestarter: malformed value")

	// ErrInvalidListElement indicates a multi-string element is empty or contains NUL
	ErrInvalidListElement = errors.New("svcrestarter: invalid list element")

	// ErrExpansion indicates environment variable expansion failed
	ErrExpansion = errors.New("svcrestarter: environment expansion failed")

	// ErrUnknownValueType indicates a type tag outside the known set
	ErrUnknownValueType = errors.New("svcrestarter: unknown value type")

	// ErrUnexpectedValueType indicates a value decoded fine but has the wrong shape for its use
	ErrUnexpectedValueType = errors.New("svcrestarter: unexpected value type")

	// ErrValueNotFound indicates the named value does not exist under the key
	ErrValueNotFound = errors.New("svcrestarter: value not found")

	// ErrKeyNotFound indicates the configuration key does not exist
	ErrKeyNotFound = errors.New("svcrestarter: key not found")

	// ErrNotSupervised indicates the service directory lacks a supervise subdirectory
	ErrNotSupervised = errors.New("svcrestarter: supervise dir missing")

	// ErrControlNotReady indicates the control socket/FIFO is not accepting connections
	ErrControlNotReady = errors.New("svcrestarter: control not accepting connections")

	// ErrServiceManager indicates the service manager rejected or failed an operation
	ErrServiceManager = errors.New("svcrestarter: service manager error")

	// ErrControlBridge indicates registration with the OS control dispatcher failed
	ErrControlBridge = errors.New("svcrestarter: control bridge error")

	// ErrUnsupported indicates the backend is not available on this platform
	ErrUnsupported = errors.New("svcrestarter: not supported on this platform")
)

// ValueError describes a failure to read, decode or encode a named configuration value
type ValueError struct {
	// Key is the configuration key path the value lives under
	Key string
	// Name is the value name
	Name string
	// Type is the raw type tag involved, if known
	Type ValueType
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *ValueError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("value %q (%s): %v", e.Name, e.Type, e.Err)
	}
	return fmt.Sprintf("value %q (%s) under %q: %v", e.Name, e.Type, e.Key, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ValueError) Unwrap() error {
	return e.Err
}

// OpError represents an error from a service manager operation
type OpError struct {
	// Op is the operation that failed
	Op Operation
	// Service is the service name involved, empty for manager-level operations
	Service string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("service manager %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("service manager %s %q: %v", e.Op, e.Service, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// Is reports every OpError as a service manager failure
func (e *OpError) Is(target error) bool {
	return target == ErrServiceManager
}

// MultiError aggregates multiple errors from bulk operations
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
