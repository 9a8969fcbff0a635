//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"payment-reconciliation-engine/internal/domain"
	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/adapter"
	"payment-reconciliation-engine/internal/domain/ports/store"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memOrderStore is a small in-memory store used by unit tests. Behavior can
// be overridden per test through the Func fields.
type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]*model.Order

	initiateCalls int
	statusCalls   int
	refreshCalls  int

	InitiateFunc     func(ctx context.Context, ref string, instrument model.Instrument, discountRef string) (*model.GatewayParams, error)
	GetStatusFunc    func(ctx context.Context, ref string) (*model.StatusSnapshot, error)
	ForceRefreshFunc func(ctx context.Context, ref string) (model.OrderStatus, error)
	CancelFunc       func(ctx context.Context, ref string) error
}

var _ store.OrderStore = (*memOrderStore)(nil)

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[string]*model.Order)}
}

func (m *memOrderStore) put(o *model.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.Ref] = &cp
}

func (m *memOrderStore) CreateOrder(ctx context.Context, in store.CreateOrderInput) (*model.Order, error) {
	o := &model.Order{
		Ref:             uuid.NewString(),
		AccountID:       in.AccountID,
		Kind:            in.Kind,
		Instrument:      in.Instrument,
		RequestedAmount: in.Amount,
		Discount:        in.Discount,
		Currency:        in.Currency,
		Status:          model.OrderStatusPending,
		CreatedAt:       time.Now(),
		ExpiresAt:       time.Now().Add(in.TTL),
	}
	m.put(o)
	return o, nil
}

func (m *memOrderStore) InitiateAttempt(ctx context.Context, ref string, instrument model.Instrument, discountRef string) (*model.GatewayParams, error) {
	m.mu.Lock()
	m.initiateCalls++
	m.mu.Unlock()
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, ref, instrument, discountRef)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != model.OrderStatusPending {
		return nil, domain.ErrInvalidState
	}
	if o.Expired(time.Now()) {
		return nil, domain.ErrExpired
	}
	if instrument == model.InstrumentWallet {
		o.Status = model.OrderStatusSucceeded
		return nil, nil
	}
	o.Status = model.OrderStatusAwaitingConfirmation
	o.Params = &model.GatewayParams{
		Authority: uuid.NewString(),
		Payload:   []byte(`{"order":"` + ref + `"}`),
		ExpiresAt: time.Now().Add(2 * time.Minute),
	}
	return o.Params, nil
}

func (m *memOrderStore) ContinueAttempt(ctx context.Context, ref string) (*model.GatewayParams, error) {
	m.mu.Lock()
	o, ok := m.orders[ref]
	if !ok {
		m.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	if o.Params.Valid(time.Now()) {
		p := *o.Params
		m.mu.Unlock()
		return &p, nil
	}
	instrument := o.Instrument
	o.Status = model.OrderStatusPending // expired params behave as a fresh initiate
	m.mu.Unlock()
	return m.InitiateAttempt(ctx, ref, instrument, "")
}

func (m *memOrderStore) CancelAttempt(ctx context.Context, ref string) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[ref]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status.Terminal() {
		return domain.ErrTooLate
	}
	o.Status = model.OrderStatusPending
	o.Params = nil
	return nil
}

func (m *memOrderStore) GetStatus(ctx context.Context, ref string) (*model.StatusSnapshot, error) {
	m.mu.Lock()
	m.statusCalls++
	m.mu.Unlock()
	if m.GetStatusFunc != nil {
		return m.GetStatusFunc(ctx, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &model.StatusSnapshot{Ref: ref, Status: o.Status, SettledAmount: o.SettledAmount()}, nil
}

func (m *memOrderStore) ForceRefresh(ctx context.Context, ref string) (model.OrderStatus, error) {
	m.mu.Lock()
	m.refreshCalls++
	m.mu.Unlock()
	if m.ForceRefreshFunc != nil {
		return m.ForceRefreshFunc(ctx, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[ref]
	if !ok {
		return "", domain.ErrNotFound
	}
	return o.Status, nil
}

func (m *memOrderStore) FindOrder(ctx context.Context, ref string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderStore) ListUnsettledOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for ref, o := range m.orders {
		if (o.Status == model.OrderStatusAwaitingConfirmation || o.Status == model.OrderStatusProcessing) && o.UpdatedAt.Before(cutoff) {
			out = append(out, ref)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// recordingPresenter records lifecycle events for assertions.
type recordingPresenter struct {
	mu       sync.Mutex
	started  []string
	ticks    []int
	resolved []resolvedEvent
}

type resolvedEvent struct {
	ref     string
	outcome model.Outcome
}

func (p *recordingPresenter) AttemptStarted(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, ref)
}

func (p *recordingPresenter) RoundTick(ref string, remaining int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks = append(p.ticks, remaining)
}

func (p *recordingPresenter) Resolved(ref string, outcome model.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolved = append(p.resolved, resolvedEvent{ref: ref, outcome: outcome})
}

func (p *recordingPresenter) resolvedEvents() []resolvedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]resolvedEvent, len(p.resolved))
	copy(out, p.resolved)
	return out
}

// stubConfirm resolves the confirmation prompt with a fixed decision, or
// blocks until the context is done when Block is set.
type stubConfirm struct {
	Decision adapter.ConfirmDecision
	Block    bool
}

func (c *stubConfirm) PresentConfirmation(ctx context.Context, params *model.GatewayParams) (adapter.ConfirmResult, error) {
	if c.Block {
		<-ctx.Done()
		return adapter.ConfirmResult{Decision: adapter.ConfirmTechnicalFailure, Reason: "host timeout"}, nil
	}
	d := c.Decision
	if d == "" {
		d = adapter.ConfirmApproved
	}
	return adapter.ConfirmResult{Decision: d}, nil
}
