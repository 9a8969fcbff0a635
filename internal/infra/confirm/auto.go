package confirm

import (
	"context"
	"time"

	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/adapter"
)

var _ adapter.ConfirmationPort = (*AutoPort)(nil)

// AutoPort resolves every prompt with a fixed decision after an optional
// delay. Dev-mode stand-in for a real confirmation host.
type AutoPort struct {
	Decision adapter.ConfirmDecision
	Delay    time.Duration
}

func NewAutoPort(decision adapter.ConfirmDecision, delay time.Duration) *AutoPort {
	if decision == "" {
		decision = adapter.ConfirmApproved
	}
	return &AutoPort{Decision: decision, Delay: delay}
}

func (a *AutoPort) PresentConfirmation(ctx context.Context, params *model.GatewayParams) (adapter.ConfirmResult, error) {
	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return adapter.ConfirmResult{Decision: adapter.ConfirmTechnicalFailure, Reason: "prompt cancelled"}, nil
		}
	}
	return adapter.ConfirmResult{Decision: a.Decision}, nil
}
