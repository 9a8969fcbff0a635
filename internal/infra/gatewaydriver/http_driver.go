package gatewaydriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"payment-reconciliation-engine/internal/domain/ports/adapter"
)

var _ adapter.GatewayDriver = (*HTTPDriver)(nil)

// HTTPDriver talks to the money gateway's merchant API with direct HTTP
// calls: one endpoint to place a hold, one to query settlement, one to
// release a hold.
type HTTPDriver struct {
	merchantID string
	baseURL    string
	client     *http.Client
}

// NewHTTPDriver creates a direct gateway driver. sandbox selects the
// gateway's test environment.
func NewHTTPDriver(merchantID, baseURL string, sandbox bool) *HTTPDriver {
	if baseURL == "" {
		if sandbox {
			baseURL = "https://sandbox.gateway.example/merchant/v1"
		} else {
			baseURL = "https://gateway.example/merchant/v1"
		}
	}
	return &HTTPDriver{
		merchantID: merchantID,
		baseURL:    baseURL,
		client:     &http.Client{},
	}
}

func (d *HTTPDriver) Name() string { return "gateway-http" }

// holdResponse represents the response from the hold request API.
type holdResponse struct {
	Data struct {
		Code      int    `json:"code"`
		Message   string `json:"message"`
		Authority string `json:"authority"`
		Payload   string `json:"payload"` // opaque confirmation blob, passed through verbatim
	} `json:"data"`
	Errors []interface{} `json:"errors"`
}

// settlementResponse represents the response from the settlement query API.
type settlementResponse struct {
	Data struct {
		Code   int    `json:"code"`
		Status string `json:"status"` // SETTLED | DECLINED | PENDING
		RefID  string `json:"ref_id"`
	} `json:"data"`
	Errors []interface{} `json:"errors"`
}

func (d *HTTPDriver) post(ctx context.Context, path string, payload map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", d.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	return nil
}

func (d *HTTPDriver) RequestHold(ctx context.Context, amount int64, currency, description string) (string, []byte, error) {
	var response holdResponse
	err := d.post(ctx, "/hold.json", map[string]interface{}{
		"merchant_id": d.merchantID,
		"amount":      amount,
		"currency":    currency,
		"description": description,
	}, &response)
	if err != nil {
		return "", nil, err
	}
	if response.Data.Code != 100 {
		return "", nil, fmt.Errorf("gateway error: code %d, message: %s", response.Data.Code, response.Data.Message)
	}
	if len(response.Errors) > 0 {
		errorBytes, _ := json.Marshal(response.Errors)
		return "", nil, fmt.Errorf("gateway errors: %s", string(errorBytes))
	}
	return response.Data.Authority, []byte(response.Data.Payload), nil
}

func (d *HTTPDriver) QuerySettlement(ctx context.Context, authority string, amount int64) (bool, bool, string, error) {
	var response settlementResponse
	err := d.post(ctx, "/settlement.json", map[string]interface{}{
		"merchant_id": d.merchantID,
		"authority":   authority,
		"amount":      amount,
	}, &response)
	if err != nil {
		return false, false, "", err
	}
	if response.Data.Code != 100 && response.Data.Code != 101 {
		return false, false, "", fmt.Errorf("gateway error: code %d", response.Data.Code)
	}
	switch response.Data.Status {
	case "SETTLED":
		return true, false, response.Data.RefID, nil
	case "DECLINED":
		return false, true, "", nil
	}
	return false, false, "", nil
}

func (d *HTTPDriver) ReleaseHold(ctx context.Context, authority string) error {
	var response settlementResponse
	err := d.post(ctx, "/release.json", map[string]interface{}{
		"merchant_id": d.merchantID,
		"authority":   authority,
	}, &response)
	if err != nil {
		return err
	}
	// 102: already released; release is idempotent.
	if response.Data.Code != 100 && response.Data.Code != 102 {
		return fmt.Errorf("gateway error: code %d", response.Data.Code)
	}
	return nil
}
