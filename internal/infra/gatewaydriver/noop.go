package gatewaydriver

import (
	"context"
	"fmt"
	"sync"

	"payment-reconciliation-engine/internal/domain/ports/adapter"
)

var _ adapter.GatewayDriver = (*NoopDriver)(nil)

// NoopDriver is a simple in-memory gateway for dev mode and tests. Holds
// settle after a configurable number of settlement queries, mimicking the
// gateway's own settlement latency.
type NoopDriver struct {
	mu    sync.Mutex
	seq   int64
	holds map[string]*noopHold

	// SettleAfterQueries is how many QuerySettlement calls a hold stays
	// pending before it settles. Zero settles on the first query.
	SettleAfterQueries int
}

type noopHold struct {
	amount   int64
	queries  int
	released bool
}

func NewNoopDriver(settleAfterQueries int) *NoopDriver {
	return &NoopDriver{holds: make(map[string]*noopHold), SettleAfterQueries: settleAfterQueries}
}

func (g *NoopDriver) Name() string { return "noop" }

func (g *NoopDriver) RequestHold(ctx context.Context, amount int64, currency, description string) (string, []byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	authority := fmt.Sprintf("noop-%d", g.seq)
	g.holds[authority] = &noopHold{amount: amount}
	payload := []byte(fmt.Sprintf(`{"authority":%q,"amount":%d,"currency":%q}`, authority, amount, currency))
	return authority, payload, nil
}

func (g *NoopDriver) QuerySettlement(ctx context.Context, authority string, amount int64) (bool, bool, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.holds[authority]
	if !ok {
		return false, false, "", fmt.Errorf("noop: authority not found")
	}
	if h.released {
		return false, true, "", nil
	}
	if h.amount != amount {
		return false, true, "", nil
	}
	h.queries++
	if h.queries > g.SettleAfterQueries {
		return true, false, "ref-" + authority, nil
	}
	return false, false, "", nil
}

func (g *NoopDriver) ReleaseHold(ctx context.Context, authority string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h, ok := g.holds[authority]; ok {
		h.released = true
	}
	return nil
}
