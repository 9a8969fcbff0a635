package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"payment-reconciliation-engine/internal/domain"
	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/adapter"
	"payment-reconciliation-engine/internal/domain/ports/store"
)

// ===== wire shapes =====

type errorBody struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	ConflictingRef string `json:"conflicting_ref,omitempty"`
}

type paramsDTO struct {
	Authority string    `json:"authority"`
	Payload   []byte    `json:"payload"`
	ExpiresAt time.Time `json:"expires_at"`
}

func paramsFromModel(p *model.GatewayParams) paramsDTO {
	if p == nil {
		return paramsDTO{}
	}
	return paramsDTO{Authority: p.Authority, Payload: p.Payload, ExpiresAt: p.ExpiresAt}
}

type orderDTO struct {
	Ref             string     `json:"ref"`
	AccountID       string     `json:"account_id"`
	Kind            string     `json:"kind"`
	Instrument      string     `json:"instrument"`
	RequestedAmount int64      `json:"requested_amount"`
	Discount        int64      `json:"discount"`
	Currency        string     `json:"currency"`
	Status          string     `json:"status"`
	Params          *paramsDTO `json:"params,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
	RefID           *string    `json:"ref_id,omitempty"`
	Description     string     `json:"description"`
}

func orderFromModel(o *model.Order) orderDTO {
	dto := orderDTO{
		Ref:             o.Ref,
		AccountID:       o.AccountID,
		Kind:            string(o.Kind),
		Instrument:      string(o.Instrument),
		RequestedAmount: o.RequestedAmount,
		Discount:        o.Discount,
		Currency:        o.Currency,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		ExpiresAt:       o.ExpiresAt,
		SettledAt:       o.SettledAt,
		RefID:           o.RefID,
		Description:     o.Description,
	}
	if o.Params != nil {
		p := paramsFromModel(o.Params)
		dto.Params = &p
	}
	return dto
}

type statusDTO struct {
	Ref           string `json:"ref"`
	Status        string `json:"status"`
	SettledAmount int64  `json:"settled_amount"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status, body := statusAndBody(err)
	writeJSON(w, status, map[string]errorBody{"error": body})
}

// statusAndBody maps the sentinel taxonomy onto HTTP. The codes mirror what
// orderstore.Client unmaps on the other side of the wire.
func statusAndBody(err error) (int, errorBody) {
	if ce, ok := domain.AsConflict(err); ok {
		return http.StatusConflict, errorBody{Code: "conflict", Message: ce.Error(), ConflictingRef: ce.Ref}
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, errorBody{Code: "invalid_state", Message: err.Error()}
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone, errorBody{Code: "expired", Message: err.Error()}
	case errors.Is(err, domain.ErrTooLate):
		return http.StatusConflict, errorBody{Code: "too_late", Message: err.Error()}
	case errors.Is(err, domain.ErrAttemptActive):
		return http.StatusConflict, errorBody{Code: "attempt_active", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, errorBody{Code: "invalid_request", Message: err.Error()}
	}
	return http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal error"}
}

// ===== order handlers =====

type createOrderRequest struct {
	AccountID   string `json:"account_id"`
	Kind        string `json:"kind"`
	Instrument  string `json:"instrument"`
	Amount      int64  `json:"amount"`
	Discount    int64  `json:"discount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	TTLSeconds  int64  `json:"ttl_seconds"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if req.AccountID == "" || req.Amount <= 0 {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	order, err := s.store.CreateOrder(r.Context(), store.CreateOrderInput{
		AccountID:   req.AccountID,
		Kind:        model.OrderKind(req.Kind),
		Instrument:  model.Instrument(req.Instrument),
		Amount:      req.Amount,
		Discount:    req.Discount,
		Currency:    req.Currency,
		Description: req.Description,
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderFromModel(order))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	order, err := s.store.FindOrder(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderFromModel(order))
}

// handleGetStatus serves the cached view while it is non-terminal; terminal
// answers always come from the store so the settled amount is real.
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if s.cache != nil {
		if status, ok := s.cache.Get(r.Context(), ref); ok && !status.Terminal() {
			writeJSON(w, http.StatusOK, statusDTO{Ref: ref, Status: string(status)})
			return
		}
	}
	snap, err := s.store.GetStatus(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusDTO{Ref: snap.Ref, Status: string(snap.Status), SettledAmount: snap.SettledAmount})
}

type initiateRequest struct {
	Instrument  string `json:"instrument"`
	DiscountRef string `json:"discount_ref"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	h, err := s.orch.Initiate(r.Context(), ref, model.Instrument(req.Instrument), req.DiscountRef)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Params == nil {
		// synchronous settlement; an empty authority tells the caller there is
		// no handoff to confirm
		writeJSON(w, http.StatusOK, paramsDTO{})
		return
	}
	s.spawnReconcile(ref, h.Params)
	writeJSON(w, http.StatusOK, paramsFromModel(h.Params))
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	h, err := s.orch.Continue(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Params == nil {
		writeJSON(w, http.StatusOK, paramsDTO{})
		return
	}
	s.spawnReconcile(ref, h.Params)
	writeJSON(w, http.StatusOK, paramsFromModel(h.Params))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	snap, err := s.orch.Cancel(r.Context(), ref)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, statusDTO{Ref: snap.Ref, Status: string(snap.Status), SettledAmount: snap.SettledAmount})
	case errors.Is(err, domain.ErrTooLate) && snap != nil:
		// the snapshot carries the real outcome the caller should present
		status, body := statusAndBody(err)
		writeJSON(w, status, map[string]interface{}{
			"error": body,
			"order": statusDTO{Ref: snap.Ref, Status: string(snap.Status), SettledAmount: snap.SettledAmount},
		})
	default:
		writeError(w, err)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	status, err := s.store.ForceRefresh(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) handleListUnsettled(w http.ResponseWriter, r *http.Request) {
	cutoff := time.Now()
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		cutoff = t
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	refs, err := s.store.ListUnsettledOlderThan(r.Context(), cutoff, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"refs": refs})
}

// ===== confirmation callbacks =====

type confirmationRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleConfirmation(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.webPort == nil {
			writeError(w, domain.ErrNotFound)
			return
		}
		authority := chi.URLParam(r, "authority")

		var req confirmationRequest
		if r.Body != nil {
			// body is optional
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		decision := adapter.ConfirmApproved
		if !approve {
			decision = adapter.ConfirmUserCancelled
		}
		if !s.webPort.Deliver(authority, decision, req.Reason) {
			writeJSON(w, http.StatusNotFound, map[string]errorBody{"error": {
				Code:    "not_found",
				Message: "no confirmation pending for this authority",
			}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"result": "delivered"})
	}
}
