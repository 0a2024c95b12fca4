// Package errors provides error handling for Unbound.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Sentinel-friendly Is/As chains across package boundaries
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := loadSnapshot(path); err != nil {
//	    return errors.Wrapf(err, "loading snapshot %s", path)
//	}
//
//	// Check errors
//	if errors.Is(err, dispatch.ErrNoMatchingRule) {
//	    // fall back or report
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
	Errorf       = crdb.Errorf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
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
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Common sentinel errors shared across Unbound packages.
// Wrap these with errors.Wrap() to add context while preserving the type;
// check them with errors.Is().
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalid indicates malformed input or an invalid argument
	ErrInvalid = New("invalid argument")

	// ErrClosed indicates use of a resource after it was released
	ErrClosed = New("already closed")
)
