package confirm

import (
	"context"
	"sync"

	"payment-reconciliation-engine/internal/domain"
	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/adapter"
	"payment-reconciliation-engine/internal/infra/metrics"
)

var _ adapter.ConfirmationPort = (*WebPort)(nil)

// WebPort is a confirmation host whose answer arrives over HTTP: the prompt
// payload is handed to the user's client, and the approve/cancel callback
// endpoint delivers the decision. PresentConfirmation blocks until the
// decision lands or the context times the prompt out.
type WebPort struct {
	mu      sync.Mutex
	pending map[string]chan adapter.ConfirmResult // keyed by authority
}

func NewWebPort() *WebPort {
	return &WebPort{pending: make(map[string]chan adapter.ConfirmResult)}
}

func (w *WebPort) PresentConfirmation(ctx context.Context, params *model.GatewayParams) (adapter.ConfirmResult, error) {
	ch := make(chan adapter.ConfirmResult, 1)
	w.mu.Lock()
	if _, exists := w.pending[params.Authority]; exists {
		w.mu.Unlock()
		return adapter.ConfirmResult{}, domain.ErrAttemptActive
	}
	w.pending[params.Authority] = ch
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.pending, params.Authority)
		w.mu.Unlock()
	}()

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		metrics.IncConfirmation("timeout")
		return adapter.ConfirmResult{Decision: adapter.ConfirmTechnicalFailure, Reason: "confirmation timed out"}, nil
	}
}

// Deliver feeds a decision into an outstanding prompt. It reports false when
// no prompt is waiting for the authority (already resolved or timed out).
func (w *WebPort) Deliver(authority string, decision adapter.ConfirmDecision, reason string) bool {
	w.mu.Lock()
	ch, ok := w.pending[authority]
	if ok {
		delete(w.pending, authority)
	}
	w.mu.Unlock()
	if !ok {
		return false
	}
	ch <- adapter.ConfirmResult{Decision: decision, Reason: reason}
	return true
}
