// Package errs defines the error taxonomy shared across the pipeline.
//
// Stages never return raw strings to callers outside their own package;
// they wrap a Kind so the session orchestrator and the external API layer
// can decide what is recoverable and what is fatal without string-matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind names one of the error categories from the error-handling design.
// Kinds are grouped by the component family that raises them; the grouping
// exists for documentation only, callers should switch on the Kind value
// itself, not on its string prefix.
type Kind string

const (
	// Input
	EmptyAudio           Kind = "EmptyAudio"
	UnsupportedSampleRate Kind = "UnsupportedSampleRate"
	ClippedAudio         Kind = "ClippedAudio"
	AudioRejected        Kind = "AudioRejected"

	// Configuration
	InvalidThreshold  Kind = "InvalidThreshold"
	InvalidRange      Kind = "InvalidRange"
	DimensionMismatch Kind = "DimensionMismatch"

	// Resource
	PermissionDenied   Kind = "PermissionDenied"
	DeviceUnavailable  Kind = "DeviceUnavailable"
	DeviceDisconnected Kind = "DeviceDisconnected"
	AllMethodsFailed   Kind = "AllMethodsFailed"

	// Model
	ModelNotFound       Kind = "ModelNotFound"
	ModelLoadFailed     Kind = "ModelLoadFailed"
	ModelCorrupted      Kind = "ModelCorrupted"
	HardwareUnavailable Kind = "HardwareUnavailable"

	// Runtime
	Canceled              Kind = "Canceled"
	Timeout               Kind = "Timeout"
	InsufficientAudio     Kind = "InsufficientAudio"
	MemoryLimitExceeded   Kind = "MemoryLimitExceeded"
	InternalDecoder       Kind = "InternalDecoder"

	// Storage
	NotFound            Kind = "NotFound"
	ConstraintViolation Kind = "ConstraintViolation"
	LockPoisoned        Kind = "LockPoisoned"
	SchemaMismatch      Kind = "SchemaMismatch"
)

// recoverable reports the default recoverability of a Kind. Callers that
// know better about a specific occurrence can still override it with
// WithRecoverable.
var recoverable = map[Kind]bool{
	EmptyAudio:            true,
	UnsupportedSampleRate: true,
	ClippedAudio:          true,
	AudioRejected:         true,
	InvalidThreshold:      false,
	InvalidRange:          false,
	DimensionMismatch:     false,
	PermissionDenied:      false,
	DeviceUnavailable:     true,
	DeviceDisconnected:    true,
	AllMethodsFailed:      false,
	ModelNotFound:         false,
	ModelLoadFailed:       true,
	ModelCorrupted:        true,
	HardwareUnavailable:   true,
	Canceled:              true,
	Timeout:               true,
	InsufficientAudio:     true,
	MemoryLimitExceeded:   true,
	InternalDecoder:       true,
	NotFound:              true,
	ConstraintViolation:   false,
	LockPoisoned:          false,
	SchemaMismatch:        false,
}

// Error is the structured, user-visible failure type described in §7:
// every failure crossing a component boundary carries a stable code, a
// human message, and whether the caller can retry or continue.
type Error struct {
	Kind        Kind
	Message     string
	Recoverable bool
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Code returns the stable string code for the external event surface.
func (e *Error) Code() string { return string(e.Kind) }

// New builds an Error for kind with the default recoverability.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:        kind,
		Message:     fmt.Sprintf(format, args...),
		Recoverable: recoverable[kind],
	}
}

// Wrap builds an Error for kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	e := New(kind, format, args...)
	e.Cause = cause
	return e
}

// WithRecoverable overrides the default recoverability for this occurrence.
func (e *Error) WithRecoverable(r bool) *Error {
	e.Recoverable = r
	return e
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
