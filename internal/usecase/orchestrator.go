package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"payment-reconciliation-engine/internal/domain"
	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/adapter"
	"payment-reconciliation-engine/internal/domain/ports/store"
	"payment-reconciliation-engine/internal/infra/logging"
	"payment-reconciliation-engine/internal/infra/metrics"
)

// AttemptLocker guards one live attempt per order across engine instances.
// The in-process registry already enforces this locally; a locker is only
// needed for multi-instance deployments.
type AttemptLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// StatusCache is the optimistic, UI-only view of order status. It is never
// consulted for terminal decisions.
type StatusCache interface {
	Put(ctx context.Context, ref string, status model.OrderStatus)
	Get(ctx context.Context, ref string) (model.OrderStatus, bool)
}

// Handoff is the result of Initiate/Continue. Either Params is set and a
// confirmation handoff is outstanding, or Outcome is set because the
// instrument settled synchronously (wallet).
type Handoff struct {
	OrderRef string
	Params   *model.GatewayParams
	Outcome  *model.Outcome
}

// ReconcileResult reports how one attempt ended. Confirm records what the
// confirmation prompt said; it never overrides Outcome, which comes from the
// store alone.
type ReconcileResult struct {
	Outcome model.Outcome
	Confirm adapter.ConfirmDecision
	Attempt *model.Attempt
}

// Compile-time check
var _ Orchestrator = (*orchestrator)(nil)

type Orchestrator interface {
	// Initiate creates fresh gateway params for a pending order, performing
	// the backend-side debit or hold.
	Initiate(ctx context.Context, ref string, instrument model.Instrument, discountRef string) (*Handoff, error)
	// Continue resumes an in-flight order: saved unexpired params come back
	// unchanged, otherwise the store issues fresh ones without double-charging.
	Continue(ctx context.Context, ref string) (*Handoff, error)
	// Cancel releases the hold and returns the order to pending. Once the
	// gateway is terminal server-side it fails with ErrTooLate and the
	// returned snapshot carries the real outcome to present instead.
	Cancel(ctx context.Context, ref string) (*model.StatusSnapshot, error)
	// Reconcile presents the confirmation prompt and drives the poller to a
	// resolution. It owns the attempt lifecycle; at most one attempt runs per
	// order ref at a time.
	Reconcile(ctx context.Context, ref string, params *model.GatewayParams) (*ReconcileResult, error)
}

type orchestrator struct {
	store     store.OrderStore
	confirm   adapter.ConfirmationPort
	presenter adapter.ProgressPresenter
	poller    *Poller
	registry  *attemptRegistry

	locker AttemptLocker // optional
	cache  StatusCache   // optional

	maxRounds      int
	confirmTimeout time.Duration
	lockTTL        time.Duration
	log            *zerolog.Logger
}

func NewOrchestrator(
	st store.OrderStore,
	confirm adapter.ConfirmationPort,
	presenter adapter.ProgressPresenter,
	poller *Poller,
	locker AttemptLocker,
	cache StatusCache,
	maxRounds int,
	confirmTimeout time.Duration,
	logger *zerolog.Logger,
) *orchestrator {
	if maxRounds <= 0 {
		maxRounds = 5
	}
	if confirmTimeout <= 0 {
		confirmTimeout = 2 * time.Minute
	}
	return &orchestrator{
		store:          st,
		confirm:        confirm,
		presenter:      presenter,
		poller:         poller,
		registry:       newAttemptRegistry(),
		locker:         locker,
		cache:          cache,
		maxRounds:      maxRounds,
		confirmTimeout: confirmTimeout,
		// The lock must outlive the confirmation prompt plus the full poll
		// budget, with slack for the quick check.
		lockTTL: confirmTimeout + time.Duration(maxRounds+2)*poller.interval,
		log:     logger,
	}
}

func (o *orchestrator) Initiate(ctx context.Context, ref string, instrument model.Instrument, discountRef string) (*Handoff, error) {
	defer logging.TraceDuration(o.log, "Orchestrator.Initiate")()
	params, err := o.store.InitiateAttempt(ctx, ref, instrument, discountRef)
	if err != nil {
		return nil, err
	}
	return o.handoff(ctx, ref, params)
}

func (o *orchestrator) Continue(ctx context.Context, ref string) (*Handoff, error) {
	defer logging.TraceDuration(o.log, "Orchestrator.Continue")()
	params, err := o.store.ContinueAttempt(ctx, ref)
	if err != nil {
		return nil, err
	}
	return o.handoff(ctx, ref, params)
}

// handoff post-processes a successful store attempt call. A nil params means
// the instrument settled synchronously and the terminal outcome is already
// known; otherwise the order is optimistically shown as awaiting confirmation
// until the poller says otherwise.
func (o *orchestrator) handoff(ctx context.Context, ref string, params *model.GatewayParams) (*Handoff, error) {
	if params == nil {
		snap, err := o.store.GetStatus(ctx, ref)
		if err != nil {
			return nil, err
		}
		outcome := model.OutcomeFor(snap.Status)
		o.cachePut(ctx, ref, snap.Status)
		o.presenter.Resolved(ref, outcome)
		metrics.IncAttempt(string(outcome))
		return &Handoff{OrderRef: ref, Outcome: &outcome}, nil
	}
	o.cachePut(ctx, ref, model.OrderStatusAwaitingConfirmation)
	return &Handoff{OrderRef: ref, Params: params}, nil
}

func (o *orchestrator) Reconcile(ctx context.Context, ref string, params *model.GatewayParams) (*ReconcileResult, error) {
	if !params.Valid(time.Now()) {
		return nil, domain.ErrExpired
	}

	if o.locker != nil {
		token, err := o.locker.TryLock(ctx, "attempt:"+ref, o.lockTTL)
		if err != nil {
			return nil, domain.ErrAttemptActive
		}
		defer func() { _ = o.locker.Unlock(context.Background(), "attempt:"+ref, token) }()
	}

	h, actx := o.registry.start(ctx, ref, o.maxRounds)
	defer o.registry.finish(h)

	o.presenter.AttemptStarted(ref)

	// The confirmation prompt blocks on the user; it runs beside the poller's
	// timers, never gating them. Its answer is informational only.
	confirmCh := make(chan adapter.ConfirmResult, 1)
	go func() {
		cctx, cancel := context.WithTimeout(actx, o.confirmTimeout)
		defer cancel()
		res, err := o.confirm.PresentConfirmation(cctx, params)
		if err != nil {
			res = adapter.ConfirmResult{Decision: adapter.ConfirmTechnicalFailure, Reason: err.Error()}
		}
		metrics.IncConfirmation(string(res.Decision))
		confirmCh <- res
	}()

	outcome := o.poller.run(actx, h)
	confirm := <-confirmCh // unblocked by the shared cancellation token at the latest

	l := logging.With(logging.WithAttemptID(logging.WithOrderRef(ctx, ref), h.attempt.ID), o.log)
	l.Info().
		Str("outcome", string(outcome)).
		Str("confirm", string(confirm.Decision)).
		Int("rounds", h.attempt.RoundsElapsed).
		Msg("attempt resolved")

	o.cachePut(ctx, ref, statusFor(outcome))
	return &ReconcileResult{Outcome: outcome, Confirm: confirm.Decision, Attempt: h.attempt}, nil
}

func (o *orchestrator) Cancel(ctx context.Context, ref string) (*model.StatusSnapshot, error) {
	defer logging.TraceDuration(o.log, "Orchestrator.Cancel")()
	// Set the cooperative flag first so the poller observes the cancellation
	// before its next round fires.
	h := o.registry.get(ref)
	if h != nil {
		h.cancel()
	}

	err := o.store.CancelAttempt(ctx, ref)
	switch {
	case err == nil:
		if h != nil {
			<-h.done
			h.resolve(o.presenter, model.OutcomeCancelled)
		} else {
			o.presenter.Resolved(ref, model.OutcomeCancelled)
			metrics.IncAttempt(string(model.OutcomeCancelled))
		}
		o.cachePut(ctx, ref, model.OrderStatusPending)
		return &model.StatusSnapshot{Ref: ref, Status: model.OrderStatusPending}, nil

	case errors.Is(err, domain.ErrTooLate):
		// Cancel lost to a server-side terminal resolution: re-fetch and
		// present the real outcome, never a fake cancellation.
		snap, gerr := o.store.GetStatus(ctx, ref)
		if gerr != nil {
			return nil, err
		}
		if h == nil || !h.resolved.Load() {
			outcome := model.OutcomeFor(snap.Status)
			if h != nil {
				h.resolve(o.presenter, outcome)
			} else {
				o.presenter.Resolved(ref, outcome)
				metrics.IncAttempt(string(outcome))
			}
		}
		o.cachePut(ctx, ref, snap.Status)
		return snap, err

	default:
		return nil, err
	}
}

func (o *orchestrator) cachePut(ctx context.Context, ref string, status model.OrderStatus) {
	if o.cache != nil {
		o.cache.Put(ctx, ref, status)
	}
}

// statusFor maps an attempt outcome back to the status shown while the store
// remains authoritative.
func statusFor(outcome model.Outcome) model.OrderStatus {
	switch outcome {
	case model.OutcomeSucceeded:
		return model.OrderStatusSucceeded
	case model.OutcomeFailed:
		return model.OrderStatusFailed
	case model.OutcomeCancelled:
		return model.OrderStatusCancelled
	}
	return model.OrderStatusProcessing
}
