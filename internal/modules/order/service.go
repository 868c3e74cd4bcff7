package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/example/storefront-backend/internal/modules/cart"
	"github.com/example/storefront-backend/internal/shared/apperr"
	"github.com/google/uuid"
)

// CheckoutConfig carries the pricing rules applied at checkout. It is passed
// in at construction time rather than read from globals.
type CheckoutConfig struct {
	FreeShippingThreshold float64
	FlatShippingFee       float64
	TaxRate               float64
}

// DefaultCheckoutConfig returns the storefront's standard pricing rules:
// free delivery above 10000, otherwise a flat 500 fee, and 7.5% tax.
func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		FreeShippingThreshold: 10000,
		FlatShippingFee:       500,
		TaxRate:               0.075,
	}
}

// CartStore is the slice of the cart module checkout needs.
type CartStore interface {
	ListByCustomer(ctx context.Context, customerID string) ([]*cart.Line, error)
	DeleteAll(ctx context.Context, customerID string) error
}

// StockStore reads the authoritative catalog price and stock. The cart's
// cached price is display-only; totals always come from here.
type StockStore interface {
	GetPriceAndStock(ctx context.Context, productID string) (price float64, stock int, err error)
}

// Service defines the order business logic: the checkout transaction, the
// status state machine, and the cancellation transaction.
type Service interface {
	// Checkout converts the customer's cart into a durable order, reserving
	// stock atomically and clearing the cart on success.
	Checkout(ctx context.Context, customerID string, req CheckoutRequest) (*Order, error)

	// GetOrder retrieves an order. A non-empty customerID restricts the
	// lookup to that customer's own orders.
	GetOrder(ctx context.Context, customerID, id string) (*Order, error)

	// ListCustomerOrders returns the customer's orders newest first.
	ListCustomerOrders(ctx context.Context, customerID, status string) ([]*Order, error)

	// UpdateStatus advances an order along the forward pipeline
	// pending -> processing -> shipped -> delivered, or cancels it.
	UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (*Order, error)

	// CancelOrder marks the order cancelled and restores stock for every
	// item. A non-empty customerID enforces ownership.
	CancelOrder(ctx context.Context, customerID, id string) (*Order, error)

	// MarkPaid records a successful payment against the order, promoting
	// pending to processing. Invoked by the payment reconciler.
	MarkPaid(ctx context.Context, orderID string, paidAt time.Time) error
}

type service struct {
	repo  Repository
	carts CartStore
	stock StockStore
	cfg   CheckoutConfig
}

// NewService creates a new order service.
func NewService(repo Repository, carts CartStore, stock StockStore, cfg CheckoutConfig) Service {
	return &service{repo: repo, carts: carts, stock: stock, cfg: cfg}
}

// validTransitions defines the allowed status state machine. Cancellation is
// allowed until the order is delivered; delivered and cancelled are terminal.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

const orderNumberAttempts = 3

func (s *service) Checkout(ctx context.Context, customerID string, req CheckoutRequest) (*Order, error) {
	if req.ShippingAddress == "" || req.PaymentMethod == "" {
		return nil, apperr.Validation("shipping address and payment method are required")
	}
	custID, err := uuid.Parse(customerID)
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}

	lines, err := s.carts.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, apperr.ErrEmptyCart
	}

	// Re-read price and stock per line; the cart snapshot is display-only.
	// This pre-check fails fast, the conditional decrement inside
	// Repository.CreateOrder is what actually decides the race.
	var items []*Item
	var subtotal float64
	for _, line := range lines {
		price, stock, err := s.stock.GetPriceAndStock(ctx, line.ProductID.String())
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, err)
		}
		if stock < line.Quantity {
			return nil, &apperr.InsufficientStockError{
				ProductID: line.ProductID.String(),
				Requested: line.Quantity,
				Available: stock,
			}
		}

		lineSubtotal := price * float64(line.Quantity)
		subtotal += lineSubtotal
		items = append(items, &Item{
			ID:        uuid.New(),
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: price,
			Subtotal:  lineSubtotal,
			Size:      line.Size,
			Color:     line.Color,
		})
	}

	shippingFee := s.cfg.FlatShippingFee
	if subtotal > s.cfg.FreeShippingThreshold {
		shippingFee = 0
	}
	tax := subtotal * s.cfg.TaxRate
	total := subtotal + shippingFee + tax

	billing := req.BillingAddress
	if billing == "" {
		billing = req.ShippingAddress
	}

	o := &Order{
		ID:              uuid.New(),
		CustomerID:      custID,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		Subtotal:        round2(subtotal),
		ShippingFee:     round2(shippingFee),
		Tax:             round2(tax),
		TotalAmount:     round2(total),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		PaymentMethod:   req.PaymentMethod,
		PhoneNumber:     req.PhoneNumber,
		Items:           items,
	}
	for _, item := range items {
		item.OrderID = o.ID
	}

	// Order-number collisions are retried with a fresh number rather than
	// surfaced; anything else aborts.
	for attempt := 0; ; attempt++ {
		o.OrderNumber = generateOrderNumber()
		err = s.repo.CreateOrder(ctx, o)
		if err == nil {
			break
		}
		if errors.Is(err, apperr.ErrDuplicateReference) && attempt < orderNumberAttempts-1 {
			continue
		}
		return nil, err
	}

	// The order and its reservation are durable; a failed cart clear must not
	// unwind them, so it is logged for out-of-band cleanup instead.
	if err := s.carts.DeleteAll(ctx, customerID); err != nil {
		log.Printf("order %s: clearing cart for customer %s failed: %v", o.OrderNumber, customerID, err)
	}

	return o, nil
}

func (s *service) GetOrder(ctx context.Context, customerID, id string) (*Order, error) {
	o, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customerID != "" && o.CustomerID.String() != customerID {
		return nil, apperr.ErrNotFound
	}
	return o, nil
}

func (s *service) ListCustomerOrders(ctx context.Context, customerID, status string) ([]*Order, error) {
	return s.repo.ListOrdersByCustomer(ctx, customerID, status)
}

func (s *service) UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (*Order, error) {
	newStatus := Status(strings.ToLower(req.Status))
	switch newStatus {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered:
	case StatusCancelled:
		// Cancellation restores stock, so it always goes through the
		// cancellation transaction.
		return s.CancelOrder(ctx, "", id)
	default:
		return nil, apperr.Validation("invalid status %q", req.Status)
	}

	o, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(o.Status, newStatus) {
		return nil, &apperr.InvalidTransitionError{From: string(o.Status), To: string(newStatus)}
	}

	var deliveredAt *time.Time
	if newStatus == StatusDelivered {
		now := time.Now()
		deliveredAt = &now
	}

	if err := s.repo.UpdateStatus(ctx, id, o.Status, newStatus, deliveredAt); err != nil {
		return nil, err
	}
	o.Status = newStatus
	o.DeliveredAt = deliveredAt
	return o, nil
}

func (s *service) CancelOrder(ctx context.Context, customerID, id string) (*Order, error) {
	o, err := s.GetOrder(ctx, customerID, id)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusDelivered || o.Status == StatusCancelled {
		return nil, &apperr.InvalidTransitionError{From: string(o.Status), To: string(StatusCancelled)}
	}

	if err := s.repo.CancelOrder(ctx, o); err != nil {
		return nil, err
	}
	return s.repo.GetOrderByID(ctx, id)
}

func (s *service) MarkPaid(ctx context.Context, orderID string, paidAt time.Time) error {
	return s.repo.MarkPaid(ctx, orderID, paidAt)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func transitionAllowed(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// generateOrderNumber creates a human-readable order number:
// ORD-<time suffix>-<random disambiguator>.
func generateOrderNumber() string {
	ts := fmt.Sprintf("%d", time.Now().UnixMilli())
	return fmt.Sprintf("ORD-%s-%04d", ts[len(ts)-8:], rand.Intn(10000))
}

// round2 applies currency-minor-unit rounding. Called once per total at the
// end of checkout, never per line.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
