package model

import "time"

// Outcome is the result a reconciliation attempt presents to the user.
type Outcome string

const (
	OutcomeSucceeded  Outcome = "succeeded"
	OutcomeFailed     Outcome = "failed"
	OutcomeProcessing Outcome = "processing" // poll budget exhausted; store finalizes later
	OutcomeCancelled  Outcome = "cancelled"
)

// OutcomeFor maps a terminal order status to its attempt outcome.
// Non-terminal statuses map to OutcomeProcessing.
func OutcomeFor(s OrderStatus) Outcome {
	switch s {
	case OrderStatusSucceeded:
		return OutcomeSucceeded
	case OrderStatusFailed:
		return OutcomeFailed
	case OrderStatusCancelled:
		return OutcomeCancelled
	}
	return OutcomeProcessing
}

// Attempt is the client-local record of one in-progress resolution effort.
// It lives only in memory for the current session; at most one attempt is
// live per order ref at a time.
type Attempt struct {
	ID            string // ulid, sortable by start time
	OrderRef      string
	StartedAt     time.Time
	MaxRounds     int
	RoundsElapsed int
	Resolved      bool
}

// RoundsRemaining is what the countdown presenter shows.
func (a *Attempt) RoundsRemaining() int {
	r := a.MaxRounds - a.RoundsElapsed
	if r < 0 {
		return 0
	}
	return r
}
