package model

import "errors"

// Error taxonomy shared by the ledger, reservation, validation, and bulk
// packages. Callers match with errors.Is.
var (
	ErrProductNotFound        = errors.New("product not found")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrConcurrencyConflict    = errors.New("concurrent modification, retry")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrInvalidStateTransition = errors.New("invalid reservation state transition")
	ErrProductExists          = errors.New("product already exists")
)
