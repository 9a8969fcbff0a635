//go:build !integration

package web_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"payment-reconciliation-engine/internal/domain"
	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/store"
	"payment-reconciliation-engine/internal/usecase"
)

// ---------------- in-memory order store ----------------

type memStore struct {
	mu     sync.Mutex
	orders map[string]*model.Order
	seq    int

	CancelFunc  func(ctx context.Context, ref string) error
	RefreshFunc func(ctx context.Context, ref string) (model.OrderStatus, error)
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]*model.Order)}
}

func (m *memStore) CreateOrder(ctx context.Context, in store.CreateOrderInput) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	now := time.Now()
	o := &model.Order{
		Ref:             fmt.Sprintf("ord-%d", m.seq),
		AccountID:       in.AccountID,
		Kind:            in.Kind,
		Instrument:      in.Instrument,
		RequestedAmount: in.Amount,
		Discount:        in.Discount,
		Currency:        in.Currency,
		Status:          model.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(in.TTL),
		Description:     in.Description,
	}
	m.orders[o.Ref] = o
	return o, nil
}

func (m *memStore) InitiateAttempt(ctx context.Context, ref string, instrument model.Instrument, discountRef string) (*model.GatewayParams, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != model.OrderStatusPending {
		return nil, domain.ErrInvalidState
	}
	if instrument == model.InstrumentWallet {
		o.Status = model.OrderStatusSucceeded
		return nil, nil
	}
	o.Status = model.OrderStatusAwaitingConfirmation
	o.Params = &model.GatewayParams{
		Authority: "auth-" + ref,
		Payload:   []byte(`{"hold":"` + ref + `"}`),
		ExpiresAt: time.Now().Add(2 * time.Minute),
	}
	return o.Params, nil
}

func (m *memStore) ContinueAttempt(ctx context.Context, ref string) (*model.GatewayParams, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Params == nil {
		return nil, domain.ErrInvalidState
	}
	return o.Params, nil
}

func (m *memStore) CancelAttempt(ctx context.Context, ref string) error {
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

func (m *memStore) GetStatus(ctx context.Context, ref string) (*model.StatusSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	snap := &model.StatusSnapshot{Ref: ref, Status: o.Status}
	if o.Status == model.OrderStatusSucceeded {
		snap.SettledAmount = o.SettledAmount()
	}
	return snap, nil
}

func (m *memStore) ForceRefresh(ctx context.Context, ref string) (model.OrderStatus, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, ref)
	}
	snap, err := m.GetStatus(ctx, ref)
	if err != nil {
		return "", err
	}
	return snap.Status, nil
}

func (m *memStore) FindOrder(ctx context.Context, ref string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListUnsettledOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []string
	for ref, o := range m.orders {
		if o.Status.Terminal() || o.Status == model.OrderStatusPending {
			continue
		}
		if o.UpdatedAt.Before(cutoff) {
			refs = append(refs, ref)
		}
		if len(refs) == limit {
			break
		}
	}
	return refs, nil
}

func (m *memStore) setStatus(ref string, status model.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[ref]; ok {
		o.Status = status
	}
}

func storeCreateInput() store.CreateOrderInput {
	return store.CreateOrderInput{
		AccountID:  "acc-rt",
		Kind:       model.OrderKindPayment,
		Instrument: model.InstrumentGateway,
		Amount:     7500,
		Currency:   "IRR",
		TTL:        15 * time.Minute,
	}
}

// ---------------- orchestrator mock ----------------

type mockOrchestrator struct {
	st *memStore

	mu         sync.Mutex
	reconciled []string

	InitiateFunc  func(ctx context.Context, ref string, instrument model.Instrument, discountRef string) (*usecase.Handoff, error)
	CancelFunc    func(ctx context.Context, ref string) (*model.StatusSnapshot, error)
	ReconcileFunc func(ctx context.Context, ref string, params *model.GatewayParams) (*usecase.ReconcileResult, error)
}

var _ usecase.Orchestrator = (*mockOrchestrator)(nil)

func (m *mockOrchestrator) Initiate(ctx context.Context, ref string, instrument model.Instrument, discountRef string) (*usecase.Handoff, error) {
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, ref, instrument, discountRef)
	}
	params, err := m.st.InitiateAttempt(ctx, ref, instrument, discountRef)
	if err != nil {
		return nil, err
	}
	if params == nil {
		outcome := model.OutcomeSucceeded
		return &usecase.Handoff{OrderRef: ref, Outcome: &outcome}, nil
	}
	return &usecase.Handoff{OrderRef: ref, Params: params}, nil
}

func (m *mockOrchestrator) Continue(ctx context.Context, ref string) (*usecase.Handoff, error) {
	params, err := m.st.ContinueAttempt(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &usecase.Handoff{OrderRef: ref, Params: params}, nil
}

func (m *mockOrchestrator) Cancel(ctx context.Context, ref string) (*model.StatusSnapshot, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, ref)
	}
	if err := m.st.CancelAttempt(ctx, ref); err != nil {
		return nil, err
	}
	return &model.StatusSnapshot{Ref: ref, Status: model.OrderStatusPending}, nil
}

func (m *mockOrchestrator) Reconcile(ctx context.Context, ref string, params *model.GatewayParams) (*usecase.ReconcileResult, error) {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, ref, params)
	}
	m.mu.Lock()
	m.reconciled = append(m.reconciled, ref)
	m.mu.Unlock()
	return &usecase.ReconcileResult{Outcome: model.OutcomeProcessing}, nil
}

func (m *mockOrchestrator) reconciledRefs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.reconciled...)
}

// ---------------- status cache mock ----------------

type memCache struct {
	mu sync.Mutex
	m  map[string]model.OrderStatus
}

func newMemCache() *memCache { return &memCache{m: make(map[string]model.OrderStatus)} }

func (c *memCache) Put(ctx context.Context, ref string, status model.OrderStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[ref] = status
}

func (c *memCache) Get(ctx context.Context, ref string) (model.OrderStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.m[ref]
	return s, ok
}
