package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/example/storefront-backend/internal/shared/apperr"
)

// Gateway is the payment provider client the reconciler talks to.
type Gateway interface {
	// Initialize registers a pending transaction with the provider and
	// returns the hosted checkout handle.
	Initialize(ctx context.Context, email string, amount float64, reference string, metadata map[string]string) (*InitializeResult, error)

	// Verify fetches the provider's authoritative status for a reference.
	Verify(ctx context.Context, reference string) (*ProviderData, error)
}

// PaystackConfig configures the Paystack client. The secret key also signs
// webhook payloads.
type PaystackConfig struct {
	SecretKey   string
	BaseURL     string
	CallbackURL string
	Timeout     time.Duration
}

type paystackGateway struct {
	cfg    PaystackConfig
	client *http.Client
}

// NewPaystackGateway creates a Paystack-backed Gateway. Amounts are converted
// to the currency minor unit (kobo) on the wire.
func NewPaystackGateway(cfg PaystackConfig) Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &paystackGateway{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type initResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Reference     string  `json:"reference"`
		Status        string  `json:"status"`
		Amount        float64 `json:"amount"` // minor units
		Channel       string  `json:"channel"`
		PaidAt        string  `json:"paid_at"`
		Authorization struct {
			Brand string `json:"brand"`
		} `json:"authorization"`
		Metadata struct {
			OrderID string `json:"order_id"`
		} `json:"metadata"`
	} `json:"data"`
}

func (g *paystackGateway) Initialize(ctx context.Context, email string, amount float64, reference string, metadata map[string]string) (*InitializeResult, error) {
	body := map[string]interface{}{
		"email":     email,
		"amount":    int64(math.Round(amount * 100)),
		"reference": reference,
		"metadata":  metadata,
	}
	if g.cfg.CallbackURL != "" {
		body["callback_url"] = g.cfg.CallbackURL
	}

	var resp initResponse
	if _, err := g.do(ctx, http.MethodPost, "/transaction/initialize", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, &apperr.ProviderError{Op: "initialize", Err: fmt.Errorf("provider rejected request: %s", resp.Message)}
	}

	return &InitializeResult{
		AuthorizationURL: resp.Data.AuthorizationURL,
		AccessCode:       resp.Data.AccessCode,
		Reference:        resp.Data.Reference,
	}, nil
}

func (g *paystackGateway) Verify(ctx context.Context, reference string) (*ProviderData, error) {
	var resp verifyResponse
	raw, err := g.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, &apperr.ProviderError{Op: "verify", Err: fmt.Errorf("provider rejected request: %s", resp.Message)}
	}

	data := &ProviderData{
		Reference: resp.Data.Reference,
		Status:    resp.Data.Status,
		Amount:    resp.Data.Amount / 100,
		Channel:   resp.Data.Channel,
		Method:    resp.Data.Authorization.Brand,
		OrderID:   resp.Data.Metadata.OrderID,
		Raw:       raw,
	}
	if resp.Data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, resp.Data.PaidAt); err == nil {
			data.PaidAt = &t
		}
	}
	return data, nil
}

// do performs one provider call and returns the raw response body. Network
// failures, timeouts and non-2xx responses all come back as ProviderError.
func (g *paystackGateway) do(ctx context.Context, method, path string, body interface{}, out interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return nil, &apperr.ProviderError{Op: method + " " + path, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &apperr.ProviderError{Op: method + " " + path, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &apperr.ProviderError{
			Op:  method + " " + path,
			Err: fmt.Errorf("unexpected status %d: %s", res.StatusCode, raw),
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, &apperr.ProviderError{Op: method + " " + path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return raw, nil
}
