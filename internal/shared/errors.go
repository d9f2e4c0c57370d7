package shared

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist or is out of scope.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates an operation conflicts with the document lifecycle.
	ErrInvalidState = errors.New("invalid state")
	// ErrInsufficientStock indicates a stock deduction would drive quantity negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrSequenceCorrupted indicates a stored document number cannot be parsed.
	// Callers must not continue issuing numbers once this surfaces.
	ErrSequenceCorrupted = errors.New("document sequence corrupted")
	// ErrConflict indicates a storage-level serialization conflict; safe to retry.
	ErrConflict = errors.New("storage conflict")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
