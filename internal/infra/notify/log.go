package notify

import (
	"github.com/rs/zerolog"

	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/adapter"
)

var _ adapter.ProgressPresenter = (*LogPresenter)(nil)

// LogPresenter renders attempt progress as structured log events. Always
// wired; other presenters stack on top via Fanout.
type LogPresenter struct {
	log *zerolog.Logger
}

func NewLogPresenter(logger *zerolog.Logger) *LogPresenter {
	return &LogPresenter{log: logger}
}

func (p *LogPresenter) AttemptStarted(ref string) {
	p.log.Info().Str("order_ref", ref).Msg("reconciliation attempt started")
}

func (p *LogPresenter) RoundTick(ref string, remaining int) {
	p.log.Debug().Str("order_ref", ref).Int("rounds_remaining", remaining).Msg("reconciliation round")
}

func (p *LogPresenter) Resolved(ref string, outcome model.Outcome) {
	p.log.Info().Str("order_ref", ref).Str("outcome", string(outcome)).Msg("reconciliation resolved")
}
