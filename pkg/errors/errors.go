package errors

import "errors"

var (
	// Engine error taxonomy. Every mutating operation surfaces exactly one
	// of these; callers match with errors.Is.
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("not found")
	ErrInvalidState           = errors.New("invalid lifecycle state")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInsufficientStake      = errors.New("insufficient stake")
	ErrBelowAccuracyThreshold = errors.New("accuracy below model threshold")
	ErrCapacityExceeded       = errors.New("round participant capacity exceeded")
	ErrTransferFailed         = errors.New("ledger transfer failed")
	ErrAlreadyCompleted       = errors.New("round already completed")

	// Storage-level errors.
	ErrEmptyKey     = errors.New("empty key")
	ErrInvalidData  = errors.New("invalid data type")
	ErrEntityExists = errors.New("entity already exists")
)
