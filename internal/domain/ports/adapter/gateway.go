package adapter

import "context"

// GatewayDriver is the store-side port to the external money gateway. The
// reference order store uses it to create and release holds and to re-query
// settlement state on a forced refresh.
type GatewayDriver interface {
	Name() string

	// RequestHold places a hold (or debit intent) with the gateway and returns
	// the authority token plus the opaque confirmation payload.
	RequestHold(ctx context.Context, amount int64, currency, description string) (authority string, payload []byte, err error)

	// QuerySettlement asks the gateway for the current settlement state of a
	// hold: settled=true means money moved, declined=true means it never will.
	QuerySettlement(ctx context.Context, authority string, amount int64) (settled bool, declined bool, refID string, err error)

	// ReleaseHold abandons an unsettled hold. Idempotent.
	ReleaseHold(ctx context.Context, authority string) error
}
