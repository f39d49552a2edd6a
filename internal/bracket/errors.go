package bracket

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrCapacityExceeded  = errors.New("tournament is full")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("concurrent modification, retry")
	ErrForbidden         = errors.New("forbidden")

	// ErrInvariant marks a defect: the requested mutation would leave the
	// bracket in a state it must never reach.
	ErrInvariant = errors.New("bracket invariant violated")
)
