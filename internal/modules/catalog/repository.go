package catalog

import "context"

// Repository defines data access for catalog products, including the atomic
// stock operations the checkout and cancellation flows depend on.
type Repository interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProductByID(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]*Product, error)

	// GetPriceAndStock reads the current price and stock for a product.
	GetPriceAndStock(ctx context.Context, id string) (price float64, stock int, err error)

	// DecrementStock subtracts qty conditioned on stock >= qty in a single
	// statement. Returns false when the condition fails.
	DecrementStock(ctx context.Context, id string, qty int) (bool, error)

	// IncrementStock adds qty back, used when an order is cancelled.
	IncrementStock(ctx context.Context, id string, qty int) error
}
