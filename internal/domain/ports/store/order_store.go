package store

import (
	"context"
	"time"

	"payment-reconciliation-engine/internal/domain/model"
)

// -----------------------------
// Order store
// -----------------------------

// CreateOrderInput carries the order-placement parameters. Order placement is
// owned by the caller, not by the reconciliation engine; it is exposed here so
// the web layer and seeding tools can reach the same backend.
type CreateOrderInput struct {
	AccountID   string
	Kind        model.OrderKind
	Instrument  model.Instrument
	Amount      int64
	Discount    int64
	Currency    string
	Description string
	TTL         time.Duration // order deadline relative to creation
}

// OrderStore is the narrow contract against the authoritative order backend.
// All operations are idempotent on retry except CreateOrder.
type OrderStore interface {
	// CreateOrder places a new order in pending state. Not idempotent.
	CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error)

	// InitiateAttempt creates fresh gateway params for a pending order,
	// performing the backend-side debit or hold. Fails with ErrInvalidState
	// when the order is not pending, ErrExpired past the order deadline, and
	// *ConflictError when another active order of the same kind already holds
	// the gateway.
	InitiateAttempt(ctx context.Context, ref string, instrument model.Instrument, discountRef string) (*model.GatewayParams, error)

	// ContinueAttempt returns the saved params unchanged while they are valid,
	// otherwise behaves as InitiateAttempt for the same order. Idempotent; the
	// store enforces at most one active hold per order.
	ContinueAttempt(ctx context.Context, ref string) (*model.GatewayParams, error)

	// CancelAttempt invalidates saved params and releases any hold, returning
	// the order to pending. Fails with ErrTooLate once the gateway has reached
	// a terminal state server-side.
	CancelAttempt(ctx context.Context, ref string) error

	// GetStatus is a plain, side-effect-free status read.
	GetStatus(ctx context.Context, ref string) (*model.StatusSnapshot, error)

	// ForceRefresh asks the store to actively re-query the gateway before
	// answering. Idempotent but may incur gateway latency and cost.
	ForceRefresh(ctx context.Context, ref string) (model.OrderStatus, error)

	// FindOrder returns the full order record.
	FindOrder(ctx context.Context, ref string) (*model.Order, error)

	// ListUnsettledOlderThan returns refs of orders stuck in awaiting
	// confirmation or processing whose last update predates cutoff. Used by
	// the out-of-band sweeper.
	ListUnsettledOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}
