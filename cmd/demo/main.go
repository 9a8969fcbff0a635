package main

import (
	"context"
	"flag"
	"log"
	"time"

	"payment-reconciliation-engine/internal/config"
	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/adapter"
	"payment-reconciliation-engine/internal/domain/ports/store"
	"payment-reconciliation-engine/internal/infra/confirm"
	pg "payment-reconciliation-engine/internal/infra/db/postgres"
	"payment-reconciliation-engine/internal/infra/gatewaydriver"
	"payment-reconciliation-engine/internal/infra/logging"
	"payment-reconciliation-engine/internal/infra/metrics"
	"payment-reconciliation-engine/internal/infra/notify"
	"payment-reconciliation-engine/internal/infra/sched"
	"payment-reconciliation-engine/internal/usecase"
)

// Demo: runs one full attempt end to end against a live Postgres, with the
// simulated gateway and an auto-approving confirmation host. A fast sweeper
// plays the role of the store's asynchronous settlement observer, so the
// poller sees the order settle mid-budget.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, true)
	metrics.MustRegister()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}

	driver := gatewaydriver.NewNoopDriver(2)
	st := pg.NewOrderStore(pool, driver, cfg.Engine.ParamsTTL, logger)
	presenter := notify.Fanout{notify.NewLogPresenter(logger)}
	auto := confirm.NewAutoPort(adapter.ConfirmApproved, 100*time.Millisecond)

	poller := usecase.NewPoller(st, presenter, 500*time.Millisecond, logger)
	orch := usecase.NewOrchestrator(st, auto, presenter, poller, nil, nil, cfg.Engine.MaxRounds, 10*time.Second, logger)

	sweeper := sched.NewProcessingSweeper(st, 300*time.Millisecond, time.Millisecond, 50, logger)
	go sweeper.Start(ctx)

	// 1. Place an order and run it to settlement.
	order, err := st.CreateOrder(ctx, store.CreateOrderInput{
		AccountID:  "demo-account",
		Kind:       model.OrderKindPayment,
		Instrument: model.InstrumentGateway,
		Amount:     250_000,
		Currency:   "IRR",
		TTL:        cfg.Engine.OrderTTL,
	})
	if err != nil {
		log.Fatalf("create order: %v", err)
	}
	log.Printf("placed order %s", order.Ref)

	h, err := orch.Initiate(ctx, order.Ref, model.InstrumentGateway, "")
	if err != nil {
		log.Fatalf("initiate: %v", err)
	}
	res, err := orch.Reconcile(ctx, order.Ref, h.Params)
	if err != nil {
		log.Fatalf("reconcile: %v", err)
	}
	log.Printf("order %s resolved: outcome=%s confirm=%s rounds=%d",
		order.Ref, res.Outcome, res.Confirm, res.Attempt.RoundsElapsed)

	// 2. Place a second order and cancel it mid-flight.
	order2, err := st.CreateOrder(ctx, store.CreateOrderInput{
		AccountID:  "demo-account",
		Kind:       model.OrderKindWithdrawal,
		Instrument: model.InstrumentGateway,
		Amount:     90_000,
		Currency:   "IRR",
		TTL:        cfg.Engine.OrderTTL,
	})
	if err != nil {
		log.Fatalf("create order: %v", err)
	}
	h2, err := orch.Initiate(ctx, order2.Ref, model.InstrumentGateway, "")
	if err != nil {
		log.Fatalf("initiate: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := orch.Reconcile(ctx, order2.Ref, h2.Params); err != nil {
			log.Printf("reconcile: %v", err)
		}
	}()
	time.Sleep(200 * time.Millisecond)
	snap, err := orch.Cancel(ctx, order2.Ref)
	if err != nil && snap != nil {
		log.Printf("cancel: %v (status now %s)", err, snap.Status)
	} else if err != nil {
		log.Printf("cancel: %v", err)
	} else {
		log.Printf("order %s cancelled, back to %s", order2.Ref, snap.Status)
	}
	<-done
}
