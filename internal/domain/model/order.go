package model

import "time"

type OrderStatus string

const (
	OrderStatusPending              OrderStatus = "pending"               // placed; no gateway hold yet
	OrderStatusAwaitingConfirmation OrderStatus = "awaiting_confirmation" // hold placed; user confirmation outstanding
	OrderStatusProcessing           OrderStatus = "processing"            // confirmation done; gateway still settling
	OrderStatusSucceeded            OrderStatus = "succeeded"             // gateway settled in our favor
	OrderStatusFailed               OrderStatus = "failed"                // gateway declined or settlement failed
	OrderStatusCancelled            OrderStatus = "cancelled"             // hold released before settlement
)

// Terminal reports whether no further reconciliation is meaningful.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusSucceeded, OrderStatusFailed, OrderStatusCancelled:
		return true
	}
	return false
}

type OrderKind string

const (
	OrderKindPayment    OrderKind = "payment"
	OrderKindWithdrawal OrderKind = "withdrawal"
)

type Instrument string

const (
	// InstrumentWallet settles synchronously against the internal balance and
	// never enters the asynchronous reconciliation path.
	InstrumentWallet Instrument = "wallet"
	// InstrumentGateway moves money through the external gateway and always
	// resolves through a reconciliation attempt.
	InstrumentGateway Instrument = "gateway"
)

// GatewayParams is the opaque handoff blob the gateway issues for one hold.
// It must never be read or reused past ExpiresAt.
type GatewayParams struct {
	Authority string // gateway token identifying the hold
	Payload   []byte // opaque blob passed verbatim to the confirmation host
	ExpiresAt time.Time
}

func (p *GatewayParams) Valid(now time.Time) bool {
	return p != nil && p.Authority != "" && now.Before(p.ExpiresAt)
}

// Order is one payment or withdrawal obligation. The authoritative copy lives
// in the order store; engine-side copies are cached views used only for UI.
type Order struct {
	Ref             string // store-assigned, immutable
	AccountID       string
	Kind            OrderKind
	Instrument      Instrument
	RequestedAmount int64 // minor units, to avoid float errors
	Discount        int64 // minor units, non-negative
	Currency        string
	Status          OrderStatus
	Params          *GatewayParams // present only while a handoff is outstanding
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time  // order deadline; attempts are invalid past this
	SettledAt       *time.Time // set when succeeded
	RefID           *string    // gateway reference id after settlement
	Description     string
}

// SettledAmount is the amount actually moved: requested minus discount,
// clamped to zero.
func (o *Order) SettledAmount() int64 {
	s := o.RequestedAmount - o.Discount
	if s < 0 {
		return 0
	}
	return s
}

// Expired reports whether the order deadline has passed.
func (o *Order) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// StatusSnapshot is the store's answer to a plain status read.
type StatusSnapshot struct {
	Ref           string
	Status        OrderStatus
	SettledAmount int64
}
