package order

import (
	"context"
	"time"
)

// Repository defines data access for orders. The create and cancel paths own
// the stock side effects so that order rows, item rows and stock mutations
// commit or roll back together.
type Repository interface {
	// CreateOrder persists the order, its items, and the conditional stock
	// decrement for every item inside a single transaction. A decrement whose
	// stock >= quantity condition fails aborts the whole transaction with an
	// InsufficientStockError. An order number collision surfaces as
	// ErrDuplicateReference so the caller can regenerate and retry.
	CreateOrder(ctx context.Context, o *Order) error

	// GetOrderByID retrieves an order with its items.
	GetOrderByID(ctx context.Context, id string) (*Order, error)

	// ListOrdersByCustomer returns a customer's orders newest first,
	// optionally filtered by status.
	ListOrdersByCustomer(ctx context.Context, customerID string, status string) ([]*Order, error)

	// UpdateStatus advances an order from the expected current status to a new
	// one; deliveredAt is stamped when the transition is to delivered. The
	// write is conditional on the stored status still being from, so two
	// concurrent updates cannot interleave into a backward transition.
	UpdateStatus(ctx context.Context, id string, from, to Status, deliveredAt *time.Time) error

	// CancelOrder restores stock for every item and marks the order cancelled
	// in a single transaction. The update is guarded against terminal states
	// so a concurrent double-cancel restocks only once.
	CancelOrder(ctx context.Context, o *Order) error

	// MarkPaid sets payment_status=paid and paid_at, promoting the order from
	// pending to processing without regressing a shipped or delivered order.
	MarkPaid(ctx context.Context, id string, paidAt time.Time) error
}
