package common

import "errors"

// Business logic errors
var (
	// ErrNotFound: referenced order, version, or schema does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict: duplicate key on create (order/version pair or schema id).
	ErrConflict = errors.New("resource already exists")

	// ErrInvariantViolation: the operation would break a system invariant,
	// e.g. deleting an order's latest version or deprecating the active schema.
	ErrInvariantViolation = errors.New("operation violates a system invariant")

	// ErrInvalidInput: malformed input, e.g. a schema id that is not vX.Y.Z.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPurgeRunning: a purge run is already in flight; runs are single-flight.
	ErrPurgeRunning = errors.New("purge run already in progress")
)
