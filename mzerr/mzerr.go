/*
NAME
  mzerr.go

DESCRIPTION
  mzerr defines the error-kind taxonomy shared by the mzflow pipeline:
  Configuration, IO, Numeric, ProtocolMisuse and IllegalArgument, per the
  error handling design of the processing pipeline. Numeric errors are
  the only kind that a component may choose to swallow locally and fall
  back from; every other kind surfaces to the caller.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mzerr provides the typed error kinds used across the mzflow
// numerical data plane, so that a CLI layer can map a failure to an exit
// code without string-matching error messages.
package mzerr

import "fmt"

// Kind classifies an error for the purposes of propagation and exit-code
// mapping at the CLI layer.
type Kind int

const (
	// Configuration indicates a bad or missing construction-time
	// parameter: unknown enum, missing required path, invalid tolerance.
	// Never recovered.
	Configuration Kind = iota

	// IO indicates an unreadable/unwritable file, corrupt container, or
	// truncated blob. The pipeline aborts and partial output is closed
	// cleanly.
	IO

	// Numeric indicates a local, non-fatal numeric failure (Numpress
	// verification, pose-clustering degeneracy) that the affected
	// component has already recovered
	// from via a documented fallback. Numeric errors are informational;
	// callers are not required to abort on them.
	Numeric

	// ProtocolMisuse indicates the caller violated a state machine
	// invariant, e.g. consuming a spectrum after chromatogram writing
	// has begun. Always fatal.
	ProtocolMisuse

	// IllegalArgument indicates a bad call-site argument: a negative
	// tolerance, a zero charge where one must be positive. Fatal at the
	// call site.
	IllegalArgument
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case IO:
		return "io"
	case Numeric:
		return "numeric"
	case ProtocolMisuse:
		return "protocol misuse"
	case IllegalArgument:
		return "illegal argument"
	default:
		return "unknown"
	}
}

// Error is a typed error carrying a Kind alongside the usual message and
// wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind with no wrapped cause.
func New(k Kind, message string) *Error {
	return &Error{Kind: k, Message: message}
}

// Wrap constructs an *Error of the given kind, wrapping cause.
func Wrap(k Kind, message string, cause error) *Error {
	return &Error{Kind: k, Message: message, Cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	for err != nil {
		if me, ok := err.(*Error); ok {
			e = me
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return 0, false
	}
	return e.Kind, true
}

// ExitCode maps an error returned from a pipeline operation to a CLI exit
// code, per the exit-code policy in the CLI surface: 0 success, non-zero
// for missing parameters, parse error, unwritable output, or incompatible
// input.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	k, ok := KindOf(err)
	if !ok {
		return 1
	}
	switch k {
	case Configuration:
		return 2
	case IO:
		return 3
	case ProtocolMisuse:
		return 4
	case IllegalArgument:
		return 5
	default:
		return 1
	}
}
