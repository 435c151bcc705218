// Package simerr defines the error taxonomy shared by every simulation
// package: a small set of classified kinds plus a SimError type that carries
// structured details without losing the wrapped cause.
package simerr

import (
	"errors"
	"fmt"
)

// Kind classifies a SimError so callers can branch on category rather than
// string-matching messages.
type Kind string

const (
	InvalidArgument Kind = "INVALID_ARGUMENT"
	InvalidMode Kind = "INVALID_MODE"
	NotInitialised Kind = "NOT_INITIALISED"
	AlreadyExists Kind = "ALREADY_EXISTS"
	UnknownDevice Kind = "UNKNOWN_DEVICE"
	ConfigurationError Kind = "CONFIGURATION_ERROR"
	TransientIO Kind = "TRANSIENT_IO"
	Internal Kind = "INTERNAL"
)

// SimError is the structured error type returned by every package in this
// module. It carries a classification Kind, a human-readable message, a
// details bag for structured context (device name, argument value, ...),
// and an optional wrapped cause.
type SimError struct {
	Kind Kind
	Message string
	Details map[string]any
	Err error
}

func (e *SimError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SimError) Unwrap() error {
	return e.Err
}

// WithDetails attaches structured key/value context and returns the same
// error for chaining.
func (e *SimError) WithDetails(details map[string]any) *SimError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// New builds a SimError with no wrapped cause.
func New(kind Kind, message string) *SimError {
	return &SimError{Kind: kind, Message: message}
}

// Wrap builds a SimError around an existing error.
func Wrap(kind Kind, message string, cause error) *SimError {
	return &SimError{Kind: kind, Message: message, Err: cause}
}

// Is reports whether err is a SimError of the given kind.
func Is(err error, kind Kind) bool {
	var se *SimError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// As extracts the *SimError from err, if any.
func As(err error) (*SimError, bool) {
	var se *SimError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Convenience constructors, grouped by the taxonomy

func NewInvalidArgument(argument string, reason string) *SimError {
	return New(InvalidArgument, fmt.Sprintf("%s: %s", argument, reason)).
		WithDetails(map[string]any{"argument": argument})
}

func NewInvalidMode(operation string, mode any) *SimError {
	return New(InvalidMode, fmt.Sprintf("%s not permitted in mode %v", operation, mode)).
		WithDetails(map[string]any{"operation": operation, "mode": mode})
}

func NewNotInitialised(component string) *SimError {
	return New(NotInitialised, fmt.Sprintf("%s not initialised", component)).
		WithDetails(map[string]any{"component": component})
}

func NewAlreadyExists(name string) *SimError {
	return New(AlreadyExists, fmt.Sprintf("%q already registered", name)).
		WithDetails(map[string]any{"name": name})
}

func NewUnknownDevice(name string) *SimError {
	return New(UnknownDevice, fmt.Sprintf("device %q not found", name)).
		WithDetails(map[string]any{"device": name})
}

func NewConfigurationError(field string, reason string) *SimError {
	return New(ConfigurationError, fmt.Sprintf("%s: %s", field, reason)).
		WithDetails(map[string]any{"field": field})
}

func NewTransientIO(operation string, cause error) *SimError {
	return Wrap(TransientIO, fmt.Sprintf("%s failed transiently", operation), cause).
		WithDetails(map[string]any{"operation": operation})
}

func NewInternal(component string, cause error) *SimError {
	return Wrap(Internal, fmt.Sprintf("invariant violation in %s", component), cause).
		WithDetails(map[string]any{"component": component})
}
