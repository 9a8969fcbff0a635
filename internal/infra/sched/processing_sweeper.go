package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"payment-reconciliation-engine/internal/domain/ports/store"
)

// ProcessingSweeper periodically scans for orders stuck in awaiting
// confirmation or processing and forces a gateway re-query for each. This is
// the out-of-band reconciliation for attempts that exhausted their poll
// budget, and for clients that disappeared mid-attempt.
type ProcessingSweeper struct {
	store      store.OrderStore
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old an unsettled order must be to retry
	batch      int
	log        *zerolog.Logger
}

func NewProcessingSweeper(st store.OrderStore, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *ProcessingSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	return &ProcessingSweeper{store: st, interval: interval, staleAfter: staleAfter, batch: batch, log: logger}
}

func (w *ProcessingSweeper) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *ProcessingSweeper) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	refs, err := w.store.ListUnsettledOlderThan(ctx, cutoff, w.batch)
	if err != nil {
		w.log.Warn().Err(err).Msg("sweeper: list unsettled failed")
		return
	}
	for _, ref := range refs {
		status, err := w.store.ForceRefresh(ctx, ref)
		if err != nil {
			w.log.Warn().Str("order_ref", ref).Err(err).Msg("sweeper: force refresh failed")
			continue
		}
		if status.Terminal() {
			w.log.Info().Str("order_ref", ref).Str("status", string(status)).Msg("sweeper: order finalized")
		}
	}
}
