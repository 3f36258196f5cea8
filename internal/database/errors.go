package database

import "errors"

// Sentinel errors shared by every store backend. Callers match them with errors.Is.
var (
	// ErrInvalidDescriptor is returned when a descriptor has the wrong length or non-finite values.
	ErrInvalidDescriptor = errors.New("invalid descriptor")

	// ErrDuplicateIdentity is returned when inserting an identity_id that already exists.
	ErrDuplicateIdentity = errors.New("identity already enrolled")

	// ErrNotFound is returned when the requested identity does not exist.
	ErrNotFound = errors.New("identity not found")

	// ErrStoreUnavailable wraps durable storage I/O failures.
	ErrStoreUnavailable = errors.New("descriptor store unavailable")
)
