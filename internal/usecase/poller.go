package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/adapter"
	"payment-reconciliation-engine/internal/domain/ports/store"
	"payment-reconciliation-engine/internal/infra/metrics"
)

// Poller drives one reconciliation attempt from handoff to resolution:
// a single forced-refresh quick check, then a bounded loop of plain status
// reads. Terminal decisions come only from the store's answers, never from
// the confirmation prompt.
type Poller struct {
	store     store.OrderStore
	presenter adapter.ProgressPresenter
	interval  time.Duration
	log       *zerolog.Logger
}

func NewPoller(st store.OrderStore, presenter adapter.ProgressPresenter, interval time.Duration, logger *zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{store: st, presenter: presenter, interval: interval, log: logger}
}

// run executes the attempt owned by h. It returns the attempt outcome;
// OutcomeCancelled means the poller observed cancellation and exited without
// emitting a terminal event (the cancel path owns that event).
//
// Two periodic tasks share h's cancellation token: the status-check loop in
// this goroutine and the countdown task spawned below. Both stop together
// when run returns.
func (p *Poller) run(ctx context.Context, h *attemptHandle) model.Outcome {
	ref := h.attempt.OrderRef

	var wg sync.WaitGroup
	wg.Add(1)
	go p.countdown(ctx, h, &wg)
	defer func() {
		h.cancel()
		wg.Wait()
		h.attempt.RoundsElapsed = int(h.rounds.Load())
	}()

	// Quick check: one forced refresh plus one read collapses the common case
	// where the confirmation round-trip already outlived gateway settlement.
	if outcome, ok := p.quickCheck(ctx, ref); ok {
		metrics.IncQuickCheckHit()
		metrics.ObserveAttemptRounds(0)
		h.resolve(p.presenter, outcome)
		return outcome
	}

	t := time.NewTicker(p.interval)
	defer t.Stop()

	for int(h.rounds.Load()) < h.attempt.MaxRounds {
		select {
		case <-ctx.Done():
			return model.OutcomeCancelled
		case <-t.C:
		}
		// The cancel flag is consulted at the start of each round; a round
		// already in flight is never pre-empted.
		if ctx.Err() != nil {
			return model.OutcomeCancelled
		}

		h.rounds.Add(1)
		snap, err := p.store.GetStatus(ctx, ref)
		if err != nil {
			// Transient read errors consume a round from the budget so a
			// flaky network cannot produce an unbounded loop.
			p.log.Debug().Str("order_ref", ref).Err(err).Msg("poll round read failed")
			continue
		}
		if snap.Status.Terminal() {
			outcome := model.OutcomeFor(snap.Status)
			metrics.ObserveAttemptRounds(int(h.rounds.Load()))
			if !h.resolve(p.presenter, outcome) {
				return model.OutcomeCancelled
			}
			if ctx.Err() != nil {
				// A cancel request raced this round and lost; the terminal
				// event stands.
				metrics.IncCancelRaceLost()
			}
			return outcome
		}
	}

	// Budget exhausted with the order still unsettled: ownership of final
	// settlement stays with the store's own asynchronous finalization.
	metrics.ObserveAttemptRounds(h.attempt.MaxRounds)
	if !h.resolve(p.presenter, model.OutcomeProcessing) {
		return model.OutcomeCancelled
	}
	return model.OutcomeProcessing
}

// quickCheck issues one forced refresh followed by one plain read. It reports
// a terminal outcome and true when polling can be skipped entirely.
func (p *Poller) quickCheck(ctx context.Context, ref string) (model.Outcome, bool) {
	if status, err := p.store.ForceRefresh(ctx, ref); err == nil && status.Terminal() {
		return model.OutcomeFor(status), true
	} else if err != nil {
		p.log.Debug().Str("order_ref", ref).Err(err).Msg("force refresh failed")
	}
	snap, err := p.store.GetStatus(ctx, ref)
	if err != nil {
		return "", false
	}
	if snap.Status.Terminal() {
		return model.OutcomeFor(snap.Status), true
	}
	return "", false
}

// countdown is the UI-facing periodic task. It runs at the same cadence as
// the status loop and stops on the shared cancellation token.
func (p *Poller) countdown(ctx context.Context, h *attemptHandle, wg *sync.WaitGroup) {
	defer wg.Done()
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			remaining := h.attempt.MaxRounds - int(h.rounds.Load())
			if remaining < 0 {
				remaining = 0
			}
			p.presenter.RoundTick(h.attempt.OrderRef, remaining)
		}
	}
}
