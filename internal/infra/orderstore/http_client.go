package orderstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"payment-reconciliation-engine/internal/domain"
	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/store"
	"payment-reconciliation-engine/internal/infra/metrics"
)

var _ store.OrderStore = (*Client)(nil)

// Client implements the order store port against a remote backend over JSON
// REST. The remote error envelope is mapped back onto the sentinel taxonomy
// so callers never see transport details.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type errorEnvelope struct {
	Error struct {
		Code           string `json:"code"`
		Message        string `json:"message"`
		ConflictingRef string `json:"conflicting_ref,omitempty"`
	} `json:"error"`
}

type paramsDTO struct {
	Authority string    `json:"authority"`
	Payload   []byte    `json:"payload"`
	ExpiresAt time.Time `json:"expires_at"`
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

func (d *orderDTO) toModel() *model.Order {
	o := &model.Order{
		Ref:             d.Ref,
		AccountID:       d.AccountID,
		Kind:            model.OrderKind(d.Kind),
		Instrument:      model.Instrument(d.Instrument),
		RequestedAmount: d.RequestedAmount,
		Discount:        d.Discount,
		Currency:        d.Currency,
		Status:          model.OrderStatus(d.Status),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		ExpiresAt:       d.ExpiresAt,
		SettledAt:       d.SettledAt,
		RefID:           d.RefID,
		Description:     d.Description,
	}
	if d.Params != nil {
		o.Params = &model.GatewayParams{
			Authority: d.Params.Authority,
			Payload:   d.Params.Payload,
			ExpiresAt: d.Params.ExpiresAt,
		}
	}
	return o
}

// do performs one API call and decodes the response into out when the status
// is 2xx; otherwise the error envelope is mapped to a sentinel.
func (c *Client) do(ctx context.Context, op, method, path string, body interface{}, out interface{}) error {
	start := time.Now()
	result := "ok"
	defer func() { metrics.ObserveStoreRequest(op, result, time.Since(start).Seconds()) }()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			result = "error"
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		result = "error"
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		result = "error"
		return fmt.Errorf("order store request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		result = "error"
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			result = "error"
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	result = "fail"
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("order store status %d: %s", resp.StatusCode, string(data))
	}
	return sentinelFor(env)
}

func sentinelFor(env errorEnvelope) error {
	switch env.Error.Code {
	case "not_found":
		return domain.ErrNotFound
	case "invalid_state":
		return domain.ErrInvalidState
	case "expired":
		return domain.ErrExpired
	case "too_late":
		return domain.ErrTooLate
	case "conflict":
		return &domain.ConflictError{Ref: env.Error.ConflictingRef}
	}
	return fmt.Errorf("order store: %s: %s", env.Error.Code, env.Error.Message)
}

func (c *Client) CreateOrder(ctx context.Context, in store.CreateOrderInput) (*model.Order, error) {
	req := map[string]interface{}{
		"account_id":  in.AccountID,
		"kind":        in.Kind,
		"instrument":  in.Instrument,
		"amount":      in.Amount,
		"discount":    in.Discount,
		"currency":    in.Currency,
		"description": in.Description,
		"ttl_seconds": int64(in.TTL / time.Second),
	}
	var dto orderDTO
	if err := c.do(ctx, "create_order", http.MethodPost, "/api/v1/orders", req, &dto); err != nil {
		return nil, err
	}
	return dto.toModel(), nil
}

func (c *Client) InitiateAttempt(ctx context.Context, ref string, instrument model.Instrument, discountRef string) (*model.GatewayParams, error) {
	req := map[string]interface{}{"instrument": instrument, "discount_ref": discountRef}
	var dto paramsDTO
	if err := c.do(ctx, "initiate", http.MethodPost, "/api/v1/orders/"+url.PathEscape(ref)+"/initiate", req, &dto); err != nil {
		return nil, err
	}
	if dto.Authority == "" {
		return nil, nil // synchronous settlement, no handoff
	}
	return &model.GatewayParams{Authority: dto.Authority, Payload: dto.Payload, ExpiresAt: dto.ExpiresAt}, nil
}

func (c *Client) ContinueAttempt(ctx context.Context, ref string) (*model.GatewayParams, error) {
	var dto paramsDTO
	if err := c.do(ctx, "continue", http.MethodPost, "/api/v1/orders/"+url.PathEscape(ref)+"/continue", nil, &dto); err != nil {
		return nil, err
	}
	return &model.GatewayParams{Authority: dto.Authority, Payload: dto.Payload, ExpiresAt: dto.ExpiresAt}, nil
}

func (c *Client) CancelAttempt(ctx context.Context, ref string) error {
	return c.do(ctx, "cancel", http.MethodPost, "/api/v1/orders/"+url.PathEscape(ref)+"/cancel", nil, nil)
}

func (c *Client) GetStatus(ctx context.Context, ref string) (*model.StatusSnapshot, error) {
	var out struct {
		Ref           string `json:"ref"`
		Status        string `json:"status"`
		SettledAmount int64  `json:"settled_amount"`
	}
	if err := c.do(ctx, "get_status", http.MethodGet, "/api/v1/orders/"+url.PathEscape(ref)+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &model.StatusSnapshot{Ref: out.Ref, Status: model.OrderStatus(out.Status), SettledAmount: out.SettledAmount}, nil
}

func (c *Client) ForceRefresh(ctx context.Context, ref string) (model.OrderStatus, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, "force_refresh", http.MethodPost, "/api/v1/orders/"+url.PathEscape(ref)+"/refresh", nil, &out); err != nil {
		return "", err
	}
	return model.OrderStatus(out.Status), nil
}

func (c *Client) FindOrder(ctx context.Context, ref string) (*model.Order, error) {
	var dto orderDTO
	if err := c.do(ctx, "find_order", http.MethodGet, "/api/v1/orders/"+url.PathEscape(ref), nil, &dto); err != nil {
		return nil, err
	}
	return dto.toModel(), nil
}

func (c *Client) ListUnsettledOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	var out struct {
		Refs []string `json:"refs"`
	}
	q := "?before=" + url.QueryEscape(cutoff.Format(time.RFC3339)) + "&limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, "list_unsettled", http.MethodGet, "/api/v1/orders/unsettled"+q, nil, &out); err != nil {
		return nil, err
	}
	return out.Refs, nil
}
