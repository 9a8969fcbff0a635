package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"payment-reconciliation-engine/internal/config"
	"payment-reconciliation-engine/internal/domain/ports/adapter"
	"payment-reconciliation-engine/internal/domain/ports/store"
	"payment-reconciliation-engine/internal/infra/confirm"
	pg "payment-reconciliation-engine/internal/infra/db/postgres"
	"payment-reconciliation-engine/internal/infra/gatewaydriver"
	"payment-reconciliation-engine/internal/infra/logging"
	"payment-reconciliation-engine/internal/infra/metrics"
	"payment-reconciliation-engine/internal/infra/notify"
	"payment-reconciliation-engine/internal/infra/orderstore"
	red "payment-reconciliation-engine/internal/infra/redis"
	"payment-reconciliation-engine/internal/infra/sched"
	"payment-reconciliation-engine/internal/infra/web"
	"payment-reconciliation-engine/internal/infra/worker"
	"payment-reconciliation-engine/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (relaxed auth, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Runtime.Dev {
		log.Printf("[DEV MODE] Enabled")
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Gateway driver ----
	var driver adapter.GatewayDriver
	switch cfg.Gateway.Driver {
	case "http":
		driver = gatewaydriver.NewHTTPDriver(cfg.Gateway.MerchantID, cfg.Gateway.BaseURL, cfg.Gateway.Sandbox)
	case "noop":
		driver = gatewaydriver.NewNoopDriver(2)
		logger.Warn().Msg("gateway.driver=noop: settlements are simulated")
	default:
		log.Fatalf("unknown gateway.driver %q", cfg.Gateway.Driver)
	}

	// ---- Order store (local Postgres or remote over HTTP) ----
	var st store.OrderStore
	switch cfg.Store.Mode {
	case "local":
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("schema: %v", err)
		}
		st = pg.NewOrderStore(pool, driver, cfg.Engine.ParamsTTL, logger)
	case "remote":
		st = orderstore.NewClient(cfg.Store.URL, cfg.Store.APIKey)
	default:
		log.Fatalf("unknown store.mode %q", cfg.Store.Mode)
	}

	// ---- Redis (optional: cross-instance attempt lock + status cache) ----
	var locker usecase.AttemptLocker
	var cache usecase.StatusCache
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		locker = red.NewAttemptLocker(redisClient)
		cache = red.NewStatusCache(redisClient, cfg.Redis.StatusTTL, logger)
	}

	// ---- Progress presenters ----
	presenters := notify.Fanout{notify.NewLogPresenter(logger)}
	if cfg.Notify.Telegram.Token != "" {
		tg, err := notify.NewTelegramPresenter(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID, logger)
		if err != nil {
			log.Fatalf("telegram presenter: %v", err)
		}
		presenters = append(presenters, tg)
	}

	// ---- Reconciliation core ----
	webPort := confirm.NewWebPort()
	poller := usecase.NewPoller(st, presenters, cfg.Engine.PollInterval, logger)
	orch := usecase.NewOrchestrator(
		st, webPort, presenters, poller,
		locker, cache,
		cfg.Engine.MaxRounds, cfg.Engine.ConfirmTimeout,
		logger,
	)

	// ---- Background attempt runners ----
	pool := worker.NewPool(cfg.Engine.Workers, logger)
	pool.Start(ctx)
	defer pool.Stop()

	// ---- Web API ----
	secret := cfg.Web.JWTSecret
	if secret == "" {
		// dev only; LoadConfig rejects an empty secret outside dev mode
		secret = uuid.NewString()
	}
	auth := web.NewAuthManager(secret, cfg.Web.TokenTTL)
	if cfg.Runtime.Dev {
		if tok, err := auth.Mint("dev"); err == nil {
			logger.Info().Str("token", tok).Msg("dev bootstrap API token")
		}
	}
	srv := web.NewServer(orch, st, cache, webPort, pool, auth, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Web.Port), Handler: srv.Routes()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Out-of-band sweeper ----
	sweeper := sched.NewProcessingSweeper(st, cfg.Sweeper.Interval, cfg.Sweeper.StaleAfter, cfg.Sweeper.Batch, logger)
	go sweeper.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Println("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
