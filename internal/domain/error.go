package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound     = errors.New("order not found")
	ErrInvalidState = errors.New("operation not valid for current order status")
	ErrExpired      = errors.New("order or gateway params past deadline")
	ErrTooLate      = errors.New("order already reached a terminal state server-side")

	// Confirmation outcomes the caller may act on.
	ErrConfirmationCancelled = errors.New("user cancelled the gateway confirmation")
	ErrConfirmationFailed    = errors.New("gateway confirmation failed")

	// Engine-local errors
	ErrAttemptActive   = errors.New("another reconciliation attempt is active for this order")
	ErrInvalidArgument = errors.New("invalid argument")

	// Infra-level errors kept generic so callers match on category, not cause.
	ErrOperationFailed = errors.New("storage operation failed")
	ErrReadRow         = errors.New("failed to read storage row")
)

// ConflictError reports that another active order of the same kind already
// holds the gateway. The conflicting ref lets the caller redirect instead of
// retrying.
type ConflictError struct {
	Ref string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting active order %s", e.Ref)
}

// AsConflict unwraps err into a ConflictError if there is one in the chain.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
