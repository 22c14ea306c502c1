package core

import "errors"

// Sentinel errors. Services wrap them with context via fmt.Errorf("...: %w");
// adapters classify with errors.Is.
var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCounterExhausted  = errors.New("invoice counter exhausted for month")
	ErrAlreadyInvoiced   = errors.New("shipment already has an outgoing invoice")
)
