package adapter

import "payment-reconciliation-engine/internal/domain/model"

// ProgressPresenter receives attempt lifecycle events to render progress.
// Implementations must be cheap and non-blocking; slow delivery (e.g. a DM)
// belongs behind a goroutine inside the adapter.
type ProgressPresenter interface {
	AttemptStarted(orderRef string)
	RoundTick(orderRef string, roundsRemaining int)
	Resolved(orderRef string, outcome model.Outcome)
}
