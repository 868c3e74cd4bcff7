package cart

import "context"

// Repository defines data access for cart lines. All lookups are scoped by
// customer; a line belonging to someone else behaves as missing.
type Repository interface {
	// UpsertLine inserts the line or, when a line with the same
	// (customer, product, size, color) already exists, adds the quantity to it.
	// Returns the stored line either way.
	UpsertLine(ctx context.Context, line *Line) (*Line, error)

	// ListByCustomer returns the customer's lines, most recently created first.
	ListByCustomer(ctx context.Context, customerID string) ([]*Line, error)

	UpdateQuantity(ctx context.Context, customerID, lineID string, quantity int) (*Line, error)
	DeleteLine(ctx context.Context, customerID, lineID string) error
	DeleteAll(ctx context.Context, customerID string) error
}
