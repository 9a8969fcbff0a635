package notify

import (
	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/adapter"
)

var _ adapter.ProgressPresenter = (Fanout)(nil)

// Fanout delivers each event to every presenter in order.
type Fanout []adapter.ProgressPresenter

func (f Fanout) AttemptStarted(ref string) {
	for _, p := range f {
		p.AttemptStarted(ref)
	}
}

func (f Fanout) RoundTick(ref string, remaining int) {
	for _, p := range f {
		p.RoundTick(ref, remaining)
	}
}

func (f Fanout) Resolved(ref string, outcome model.Outcome) {
	for _, p := range f {
		p.Resolved(ref, outcome)
	}
}
