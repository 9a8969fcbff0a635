package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"payment-reconciliation-engine/internal/domain"
	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/store"
	"payment-reconciliation-engine/internal/infra/confirm"
	"payment-reconciliation-engine/internal/infra/worker"
	"payment-reconciliation-engine/internal/usecase"
)

// Server exposes the engine over JSON REST. The same surface doubles as the
// remote order-store backend: an engine instance configured with
// store.mode=remote speaks to these routes through orderstore.Client, so the
// wire shapes here and there must stay in lockstep.
type Server struct {
	orch    usecase.Orchestrator
	store   store.OrderStore
	cache   usecase.StatusCache // optional
	webPort *confirm.WebPort    // optional; nil when confirmation is hosted elsewhere
	pool    *worker.Pool        // optional; reconcile runs inline-goroutine without it
	auth    *AuthManager
	log     *zerolog.Logger
}

func NewServer(
	orch usecase.Orchestrator,
	st store.OrderStore,
	cache usecase.StatusCache,
	webPort *confirm.WebPort,
	pool *worker.Pool,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		orch:    orch,
		store:   st,
		cache:   cache,
		webPort: webPort,
		pool:    pool,
		auth:    auth,
		log:     logger,
	}
}

// Routes wires the full route tree. Confirmation callbacks sit outside bearer
// auth: the authority string is itself the capability, handed to exactly one
// client during the gateway handoff.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(traceID)
	r.Use(requestLog(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/confirmations/{authority}", func(r chi.Router) {
			r.Post("/approve", s.handleConfirmation(true))
			r.Post("/cancel", s.handleConfirmation(false))
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Route("/orders", func(r chi.Router) {
				r.Post("/", s.handleCreateOrder)
				r.Get("/unsettled", s.handleListUnsettled)
				r.Route("/{ref}", func(r chi.Router) {
					r.Get("/", s.handleGetOrder)
					r.Get("/status", s.handleGetStatus)
					r.Post("/initiate", s.handleInitiate)
					r.Post("/continue", s.handleContinue)
					r.Post("/cancel", s.handleCancel)
					r.Post("/refresh", s.handleRefresh)
				})
			})
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// spawnReconcile drives the attempt off the request path so initiate/continue
// return as soon as the handoff exists.
func (s *Server) spawnReconcile(ref string, params *model.GatewayParams) {
	p := *params
	task := func(ctx context.Context) error {
		_, err := s.orch.Reconcile(ctx, ref, &p)
		if err != nil && !errors.Is(err, domain.ErrAttemptActive) && !errors.Is(err, domain.ErrExpired) {
			return err
		}
		return nil
	}
	if s.pool != nil {
		if err := s.pool.Submit(task); err != nil {
			s.log.Warn().Str("order_ref", ref).Err(err).Msg("reconcile not scheduled")
		}
		return
	}
	go func() {
		if err := task(context.Background()); err != nil {
			s.log.Error().Str("order_ref", ref).Err(err).Msg("reconcile failed")
		}
	}()
}
