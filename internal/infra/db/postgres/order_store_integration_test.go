//go:build integration

package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"payment-reconciliation-engine/internal/domain"
	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/store"
	"payment-reconciliation-engine/internal/infra/gatewaydriver"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	dsn := os.Getenv("ORDERS_TEST_DATABASE_URL")
	if dsn == "" {
		fmt.Println("ORDERS_TEST_DATABASE_URL not set; skipping postgres integration tests")
		os.Exit(0)
	}
	ctx := context.Background()
	var err error
	testPool, err = pgxpool.Connect(ctx, dsn)
	if err != nil {
		fmt.Printf("connect test database: %v\n", err)
		os.Exit(1)
	}
	if err := EnsureSchema(ctx, testPool); err != nil {
		fmt.Printf("ensure schema: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	testPool.Close()
	os.Exit(code)
}

func cleanup(t *testing.T) {
	t.Helper()
	if _, err := testPool.Exec(context.Background(), `TRUNCATE orders`); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

func newTestStore(t *testing.T, settleAfter int) (*orderStore, *gatewaydriver.NoopDriver) {
	t.Helper()
	cleanup(t)
	logger := zerolog.Nop()
	driver := gatewaydriver.NewNoopDriver(settleAfter)
	return NewOrderStore(testPool, driver, 2*time.Minute, &logger), driver
}

func placeOrder(t *testing.T, st *orderStore, account string, kind model.OrderKind) *model.Order {
	t.Helper()
	o, err := st.CreateOrder(context.Background(), store.CreateOrderInput{
		AccountID:  account,
		Kind:       kind,
		Instrument: model.InstrumentGateway,
		Amount:     5000,
		Currency:   "IRR",
		TTL:        15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestOrderLifecycle(t *testing.T) {
	st, _ := newTestStore(t, 100)
	ctx := context.Background()
	o := placeOrder(t, st, "acc-1", model.OrderKindPayment)

	params, err := st.InitiateAttempt(ctx, o.Ref, model.InstrumentGateway, "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if params == nil || params.Authority == "" {
		t.Fatalf("want params, got %+v", params)
	}

	snap, err := st.GetStatus(ctx, o.Ref)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if snap.Status != model.OrderStatusAwaitingConfirmation {
		t.Fatalf("want awaiting_confirmation, got %s", snap.Status)
	}

	// Continue while params are valid returns them byte-identically.
	again, err := st.ContinueAttempt(ctx, o.Ref)
	if err != nil {
		t.Fatalf("continue: %v", err)
	}
	if again.Authority != params.Authority || !bytes.Equal(again.Payload, params.Payload) {
		t.Fatal("continue must return the saved params unchanged")
	}

	if err := st.CancelAttempt(ctx, o.Ref); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	snap, err = st.GetStatus(ctx, o.Ref)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if snap.Status != model.OrderStatusPending {
		t.Fatalf("cancel must return the order to pending, got %s", snap.Status)
	}

	// A fresh initiate after cancel is valid again.
	if _, err := st.InitiateAttempt(ctx, o.Ref, model.InstrumentGateway, ""); err != nil {
		t.Fatalf("re-initiate: %v", err)
	}
}

func TestInitiateStateErrors(t *testing.T) {
	st, _ := newTestStore(t, 100)
	ctx := context.Background()

	t.Run("second initiate is invalid state", func(t *testing.T) {
		o := placeOrder(t, st, "acc-a", model.OrderKindPayment)
		if _, err := st.InitiateAttempt(ctx, o.Ref, model.InstrumentGateway, ""); err != nil {
			t.Fatalf("initiate: %v", err)
		}
		if _, err := st.InitiateAttempt(ctx, o.Ref, model.InstrumentGateway, ""); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("want ErrInvalidState, got %v", err)
		}
	})

	t.Run("expired order is rejected", func(t *testing.T) {
		o, err := st.CreateOrder(ctx, store.CreateOrderInput{
			AccountID:  "acc-b",
			Kind:       model.OrderKindPayment,
			Instrument: model.InstrumentGateway,
			Amount:     5000,
			Currency:   "IRR",
			TTL:        -time.Second,
		})
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		if _, err := st.InitiateAttempt(ctx, o.Ref, model.InstrumentGateway, ""); !errors.Is(err, domain.ErrExpired) {
			t.Fatalf("want ErrExpired, got %v", err)
		}
	})
}

func TestActiveConflict(t *testing.T) {
	st, _ := newTestStore(t, 100)
	ctx := context.Background()

	first := placeOrder(t, st, "acc-c", model.OrderKindWithdrawal)
	second := placeOrder(t, st, "acc-c", model.OrderKindWithdrawal)

	if _, err := st.InitiateAttempt(ctx, first.Ref, model.InstrumentGateway, ""); err != nil {
		t.Fatalf("initiate first: %v", err)
	}
	_, err := st.InitiateAttempt(ctx, second.Ref, model.InstrumentGateway, "")
	ce, ok := domain.AsConflict(err)
	if !ok {
		t.Fatalf("want ConflictError, got %v", err)
	}
	if ce.Ref != first.Ref {
		t.Fatalf("conflict must name the blocking order: want %s, got %s", first.Ref, ce.Ref)
	}
}

func TestCancelTooLate(t *testing.T) {
	// The simulated gateway settles on the first settlement query.
	st, _ := newTestStore(t, 0)
	ctx := context.Background()
	o := placeOrder(t, st, "acc-d", model.OrderKindPayment)

	if _, err := st.InitiateAttempt(ctx, o.Ref, model.InstrumentGateway, ""); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if err := st.CancelAttempt(ctx, o.Ref); !errors.Is(err, domain.ErrTooLate) {
		t.Fatalf("want ErrTooLate once settled server-side, got %v", err)
	}
	snap, err := st.GetStatus(ctx, o.Ref)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if snap.Status != model.OrderStatusSucceeded || snap.SettledAmount != 5000 {
		t.Fatalf("want settled snapshot, got %+v", snap)
	}
}

func TestWalletSettlesSynchronously(t *testing.T) {
	st, _ := newTestStore(t, 100)
	ctx := context.Background()
	o := placeOrder(t, st, "acc-e", model.OrderKindPayment)

	params, err := st.InitiateAttempt(ctx, o.Ref, model.InstrumentWallet, "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if params != nil {
		t.Fatalf("wallet settlement must not hand off params, got %+v", params)
	}
	snap, err := st.GetStatus(ctx, o.Ref)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if snap.Status != model.OrderStatusSucceeded {
		t.Fatalf("want succeeded, got %s", snap.Status)
	}
}
