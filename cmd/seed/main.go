package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"payment-reconciliation-engine/internal/config"
	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/store"
	pg "payment-reconciliation-engine/internal/infra/db/postgres"
	"payment-reconciliation-engine/internal/infra/gatewaydriver"
	"payment-reconciliation-engine/internal/infra/logging"
)

// Seeds a handful of pending orders for exercising the flow by hand.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}

	st := pg.NewOrderStore(pool, gatewaydriver.NewNoopDriver(2), cfg.Engine.ParamsTTL, logger)

	seed := []struct {
		Account  string
		Kind     model.OrderKind
		Amount   int64
		Discount int64
		Desc     string
	}{
		{"acc-alpha", model.OrderKindPayment, 150_000, 0, "starter top-up"},
		{"acc-alpha", model.OrderKindWithdrawal, 90_000, 0, "partial payout"},
		{"acc-beta", model.OrderKindPayment, 690_000, 69_000, "discounted renewal"},
		{"acc-gamma", model.OrderKindPayment, 1_890_000, 0, "annual bundle"},
	}

	for _, s := range seed {
		o, err := st.CreateOrder(ctx, store.CreateOrderInput{
			AccountID:   s.Account,
			Kind:        s.Kind,
			Instrument:  model.InstrumentGateway,
			Amount:      s.Amount,
			Discount:    s.Discount,
			Currency:    "IRR",
			Description: s.Desc,
			TTL:         cfg.Engine.OrderTTL,
		})
		if err != nil {
			log.Fatalf("seed %s/%s: %v", s.Account, s.Desc, err)
		}
		fmt.Printf("  - %s %s %d IRR (%s) -> %s\n", s.Account, s.Kind, s.Amount, s.Desc, o.Ref)
	}
	fmt.Println("Seed complete.")
}
