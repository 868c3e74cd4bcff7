package payment

import "context"

// Repository defines data access for payments.
type Repository interface {
	// Create persists a new payment. A reference collision surfaces as
	// ErrDuplicateReference.
	Create(ctx context.Context, p *Payment) error

	GetByID(ctx context.Context, id string) (*Payment, error)
	GetByReference(ctx context.Context, reference string) (*Payment, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*Payment, error)

	// UpdateFromProvider writes the reconciler's view of the payment: status,
	// provider reference, channel, method, paid_at and the raw response. The
	// write is conditional on the stored status not being success; it returns
	// false when the condition fails, so a stale result can never overwrite a
	// terminal success.
	UpdateFromProvider(ctx context.Context, p *Payment) (bool, error)
}
