package payment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle of a payment attempt as reported by the
// provider. success is terminal: the reconciler never regresses it.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

// Payment is the record of one payment attempt. It may be created before the
// order it eventually pays for is linked, and several payments may reference
// the same order (retries). Payments are never deleted; only the reconciler
// mutates them after creation.
type Payment struct {
	ID                uuid.UUID       `json:"id"`
	OrderID           *uuid.UUID      `json:"order_id,omitempty"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	Email             string          `json:"email"`
	Amount            float64         `json:"amount"`
	Currency          string          `json:"currency"`
	Reference         string          `json:"reference"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	Status            Status          `json:"status"`
	PaymentMethod     string          `json:"payment_method,omitempty"`
	Channel           string          `json:"channel,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	ProviderResponse  json.RawMessage `json:"-"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// InitializeRequest is the payload to start a new payment.
type InitializeRequest struct {
	Amount  float64 `json:"amount"`
	Email   string  `json:"email"`
	OrderID string  `json:"order_id,omitempty"`
}

// InitializeResult is returned to the client so it can complete the charge on
// the provider's hosted page.
type InitializeResult struct {
	AuthorizationURL string    `json:"authorization_url"`
	AccessCode       string    `json:"access_code"`
	Reference        string    `json:"reference"`
	PaymentID        uuid.UUID `json:"payment_id"`
}

// ProviderData is the provider's authoritative view of one transaction, as
// returned by the verify API or carried in a webhook event.
type ProviderData struct {
	Reference string
	Status    string // success | failed | abandoned | ...
	Amount    float64
	Channel   string
	Method    string
	PaidAt    *time.Time
	OrderID   string // from metadata, may be empty
	Raw       json.RawMessage
}
