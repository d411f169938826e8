// Package errors provides error handling for landview.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrOutOfBounds) {
//	    // handle click outside the job's data extent
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	Mark         = crdb.Mark
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll

	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors for the map orchestration pipeline.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrValidation indicates user input that can be corrected and retried
	// (missing files, malformed parameters). Reported inline, non-fatal.
	ErrValidation = New("validation failed")

	// ErrNoActiveJob indicates a map interaction before any detection job
	// has produced layers to interact with.
	ErrNoActiveJob = New("no active job")

	// ErrOutOfBounds indicates a click outside the active job's data extent.
	ErrOutOfBounds = New("point outside data bounds")

	// ErrMapUnavailable indicates the map engine failed to load or
	// initialize. Map-dependent features degrade; upload/run still work.
	ErrMapUnavailable = New("map engine unavailable")

	// ErrRunInFlight indicates a detection run was triggered while another
	// is still processing. The second trigger is rejected, never queued.
	ErrRunInFlight = New("detection run already in flight")

	// ErrStaleResult marks a query result superseded by a newer request.
	// Internal only: callers drop the result, users never see this.
	ErrStaleResult = New("stale query result discarded")

	// ErrNotReady indicates a wait for the map engine gave up before the
	// readiness gate fired.
	ErrNotReady = New("map engine not ready")

	// ErrTransport indicates a failed backend exchange (non-2xx status,
	// network failure). The failing operation aborts without retry.
	ErrTransport = New("backend request failed")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = New("not found")
)

// IsValidationError checks if an error is user-correctable input:
// ErrValidation itself or one of the click-rejection sentinels.
func IsValidationError(err error) bool {
	return err != nil && IsAny(err, ErrValidation, ErrNoActiveJob, ErrOutOfBounds)
}

// IsTransportError checks if an error is or wraps ErrTransport.
func IsTransportError(err error) bool {
	return err != nil && Is(err, ErrTransport)
}

// IsMapUnavailableError checks if an error is or wraps ErrMapUnavailable.
func IsMapUnavailableError(err error) bool {
	return err != nil && Is(err, ErrMapUnavailable)
}

// IsStale checks if an error is or wraps ErrStaleResult.
func IsStale(err error) bool {
	return err != nil && Is(err, ErrStaleResult)
}

// NewValidationError creates a validation error with a formatted message.
func NewValidationError(format string, args ...interface{}) error {
	return Wrap(ErrValidation, Newf(format, args...).Error())
}

// WrapTransport wraps an error as a transport error with context.
func WrapTransport(err error, context string) error {
	return Wrap(Wrap(ErrTransport, err.Error()), context)
}
