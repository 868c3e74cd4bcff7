package payment

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/storefront-backend/internal/shared/apperr"
	"github.com/google/uuid"
)

// OrderLedger is the slice of the order module the reconciler needs: marking
// an order paid when its payment succeeds.
type OrderLedger interface {
	MarkPaid(ctx context.Context, orderID string, paidAt time.Time) error
}

// Service reconciles provider-reported payment state into local records. The
// synchronous verify path and the asynchronous webhook path both converge on
// applyProviderStatus, so the idempotence guard exists exactly once.
type Service interface {
	Initialize(ctx context.Context, customerID string, req InitializeRequest) (*InitializeResult, error)

	// Verify polls the provider for a reference and applies the result.
	Verify(ctx context.Context, reference string) (*Payment, error)

	// HandleWebhook authenticates a provider callback against its HMAC
	// signature and applies the event. Apply failures for recognized events
	// are logged and swallowed so the provider receives an acknowledgement;
	// only ErrInvalidSignature is returned as an error.
	HandleWebhook(ctx context.Context, signature string, body []byte) error

	ListByCustomer(ctx context.Context, customerID string) ([]*Payment, error)
	GetByID(ctx context.Context, customerID, id string) (*Payment, error)
}

type service struct {
	repo    Repository
	gateway Gateway
	orders  OrderLedger
	secret  []byte
}

// NewService creates a new payment service. secret is the provider's shared
// webhook signing key.
func NewService(repo Repository, gateway Gateway, orders OrderLedger, secret []byte) Service {
	return &service{repo: repo, gateway: gateway, orders: orders, secret: secret}
}

const (
	minimumAmount     = 100
	referenceAttempts = 3
)

func (s *service) Initialize(ctx context.Context, customerID string, req InitializeRequest) (*InitializeResult, error) {
	if req.Email == "" {
		return nil, apperr.Validation("email is required")
	}
	if req.Amount < minimumAmount {
		return nil, apperr.Validation("amount must be at least %d", minimumAmount)
	}
	custID, err := uuid.Parse(customerID)
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}

	var orderID *uuid.UUID
	metadata := map[string]string{"customer_id": customerID}
	if req.OrderID != "" {
		id, err := uuid.Parse(req.OrderID)
		if err != nil {
			return nil, apperr.Validation("invalid order_id")
		}
		orderID = &id
		metadata["order_id"] = req.OrderID
	}

	// A reference collision means another payment grabbed the same random
	// suffix; regenerate rather than surface it.
	var p *Payment
	for attempt := 0; ; attempt++ {
		p = &Payment{
			ID:         uuid.New(),
			OrderID:    orderID,
			CustomerID: custID,
			Email:      req.Email,
			Amount:     req.Amount,
			Currency:   "NGN",
			Reference:  generateReference(),
			Status:     StatusPending,
		}
		err = s.repo.Create(ctx, p)
		if err == nil {
			break
		}
		if errors.Is(err, apperr.ErrDuplicateReference) && attempt < referenceAttempts-1 {
			continue
		}
		return nil, err
	}

	result, err := s.gateway.Initialize(ctx, req.Email, req.Amount, p.Reference, metadata)
	if err != nil {
		return nil, err
	}
	result.Reference = p.Reference
	result.PaymentID = p.ID
	return result, nil
}

func (s *service) Verify(ctx context.Context, reference string) (*Payment, error) {
	if reference == "" {
		return nil, apperr.Validation("payment reference is required")
	}

	data, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	return s.applyProviderStatus(ctx, reference, data)
}

// webhookEvent is the provider's callback shape.
type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference     string  `json:"reference"`
		Status        string  `json:"status"`
		Amount        float64 `json:"amount"`
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

func (s *service) HandleWebhook(ctx context.Context, signature string, body []byte) error {
	if !s.signatureValid(signature, body) {
		return apperr.ErrInvalidSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// Authenticated but unparseable; acknowledge and keep the payload in
		// the logs for out-of-band reconciliation.
		log.Printf("payment webhook: undecodable payload: %v", err)
		return nil
	}

	data := &ProviderData{
		Reference: event.Data.Reference,
		Status:    event.Data.Status,
		Amount:    event.Data.Amount / 100,
		Channel:   event.Data.Channel,
		Method:    event.Data.Authorization.Brand,
		OrderID:   event.Data.Metadata.OrderID,
		Raw:       body,
	}
	if event.Data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, event.Data.PaidAt); err == nil {
			data.PaidAt = &t
		}
	}

	switch event.Event {
	case "charge.success":
		data.Status = "success"
		if _, err := s.applyProviderStatus(ctx, data.Reference, data); err != nil {
			log.Printf("payment webhook: applying charge.success for %s failed: %v", data.Reference, err)
		}
	case "charge.failed":
		data.Status = "failed"
		if _, err := s.applyProviderStatus(ctx, data.Reference, data); err != nil {
			log.Printf("payment webhook: applying charge.failed for %s failed: %v", data.Reference, err)
		}
	default:
		log.Printf("payment webhook: ignoring event %q", event.Event)
	}
	return nil
}

// applyProviderStatus is the single reconciliation path shared by verify and
// webhook. Replayed events are no-ops: a payment already in success is never
// re-applied, so the order side effect fires at most once. The read-side
// guard here is an early exit; the conditional write in UpdateFromProvider is
// what holds when a stale result races a concurrent success.
func (s *service) applyProviderStatus(ctx context.Context, reference string, data *ProviderData) (*Payment, error) {
	p, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", reference, err)
	}

	if p.Status == StatusSuccess {
		return p, nil
	}

	p.Status = normaliseStatus(data.Status)
	p.ProviderReference = data.Reference
	p.Channel = data.Channel
	p.PaymentMethod = data.Method
	p.ProviderResponse = data.Raw
	if p.Status == StatusSuccess {
		if data.PaidAt != nil {
			p.PaidAt = data.PaidAt
		} else {
			now := time.Now()
			p.PaidAt = &now
		}
	}
	if p.OrderID == nil && data.OrderID != "" {
		if id, err := uuid.Parse(data.OrderID); err == nil {
			p.OrderID = &id
		}
	}

	applied, err := s.repo.UpdateFromProvider(ctx, p)
	if err != nil {
		return nil, err
	}
	if !applied {
		// The payment reached success between our read and the write. The
		// stored terminal state wins; this result is discarded.
		return s.repo.GetByReference(ctx, reference)
	}

	// Failure never touches the order; success propagates exactly once
	// thanks to the conditional write above.
	if p.Status == StatusSuccess && p.OrderID != nil {
		if err := s.orders.MarkPaid(ctx, p.OrderID.String(), *p.PaidAt); err != nil {
			return nil, fmt.Errorf("mark order %s paid: %w", p.OrderID, err)
		}
	}
	return p, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID string) ([]*Payment, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

func (s *service) GetByID(ctx context.Context, customerID, id string) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customerID != "" && p.CustomerID.String() != customerID {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// signatureValid checks the HMAC-SHA512 of the raw body against the header
// value in constant time.
func (s *service) signatureValid(signature string, body []byte) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func normaliseStatus(providerStatus string) Status {
	switch providerStatus {
	case "success":
		return StatusSuccess
	case "failed":
		return StatusFailed
	case "abandoned":
		return StatusAbandoned
	default:
		return StatusPending
	}
}

// generateReference creates a globally unique payment reference:
// TXN_<unix>_<random hex>.
func generateReference() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("TXN_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
