// Package errors defines the sentinel errors shared by all stores.
// Callers classify store failures with errors.Is rather than string
// matching, so protocol-level handling stays uniform across entity types.
package errors

import "errors"

// Per-request errors. Expected during normal operation and recovered
// locally by callers; never logged at error level.
var (
	// ErrNotFound means no record matched. Absence of a client, grant,
	// or user is an expected outcome, not a fault.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey means an insert or update violated a primary-key
	// or unique-index constraint. For grant keys this implies an attack
	// or a broken key generator, not legitimate reuse.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Integrity and operational errors. Never swallowed; they propagate to
// top-level error reporting.
var (
	// ErrAmbiguousResult means more than one record matched a predicate
	// the caller assumed unique. This is a data-integrity bug and must
	// be surfaced, never resolved by picking a match silently.
	ErrAmbiguousResult = errors.New("ambiguous result for unique lookup")

	// ErrTimeout means the caller's deadline elapsed before the store
	// call ran. Distinct from ErrNotFound: the record's existence is
	// unknown.
	ErrTimeout = errors.New("store operation timed out")

	// ErrConnectionFailure means the backing store could not be opened.
	// Fatal at process level, not per-request.
	ErrConnectionFailure = errors.New("store connection failure")
)
