package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/adapter"
	"payment-reconciliation-engine/internal/infra/metrics"
)

// attemptHandle owns the live timers of one reconciliation attempt. Exactly
// one handle may exist per order ref; the registry tears down the previous
// one synchronously before registering a replacement.
type attemptHandle struct {
	attempt *model.Attempt
	cancel  context.CancelFunc
	done    chan struct{}

	rounds atomic.Int32 // rounds consumed so far, read by the countdown task

	resolveOnce sync.Once
	outcome     model.Outcome
	resolved    atomic.Bool
}

// resolve emits the terminal event exactly once per attempt and reports
// whether this caller won. Both the poller and the cancel path race through
// here; whoever arrives first is authoritative.
func (h *attemptHandle) resolve(p adapter.ProgressPresenter, outcome model.Outcome) bool {
	won := false
	h.resolveOnce.Do(func() {
		h.outcome = outcome
		h.resolved.Store(true)
		h.attempt.Resolved = true
		won = true
		metrics.IncAttempt(string(outcome))
		p.Resolved(h.attempt.OrderRef, outcome)
	})
	return won
}

// attemptRegistry enforces at most one live attempt per order ref. It
// replaces the module-level in-flight boolean of the original design with an
// explicit per-order handle, so unrelated orders never block each other.
type attemptRegistry struct {
	mu   sync.Mutex
	live map[string]*attemptHandle
}

func newAttemptRegistry() *attemptRegistry {
	return &attemptRegistry{live: make(map[string]*attemptHandle)}
}

// start tears down any prior attempt for ref, waits for its timers to stop,
// and registers a fresh handle bound to a child of parent. Registration only
// happens under the lock with the slot observed empty, so two concurrent
// starters can never both hold a live handle for the same ref; the loser of
// each round tears down whoever registered meanwhile and tries again.
func (r *attemptRegistry) start(parent context.Context, ref string, maxRounds int) (*attemptHandle, context.Context) {
	for {
		r.mu.Lock()
		prev := r.live[ref]
		if prev == nil {
			ctx, cancel := context.WithCancel(parent)
			h := &attemptHandle{
				attempt: &model.Attempt{
					ID:        ulid.Make().String(),
					OrderRef:  ref,
					StartedAt: time.Now(),
					MaxRounds: maxRounds,
				},
				cancel: cancel,
				done:   make(chan struct{}),
			}
			r.live[ref] = h
			r.mu.Unlock()
			metrics.AttemptStarted()
			return h, ctx
		}
		r.mu.Unlock()

		prev.cancel()
		<-prev.done
	}
}

// finish marks the handle's timers as stopped and drops it from the registry
// if it is still the registered one.
func (r *attemptRegistry) finish(h *attemptHandle) {
	close(h.done)
	r.mu.Lock()
	if r.live[h.attempt.OrderRef] == h {
		delete(r.live, h.attempt.OrderRef)
	}
	r.mu.Unlock()
	metrics.AttemptFinished()
}

// get returns the live handle for ref, if any.
func (r *attemptRegistry) get(ref string) *attemptHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[ref]
}
