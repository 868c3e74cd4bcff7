package cart

import (
	"context"

	"github.com/example/storefront-backend/internal/shared/apperr"
	"github.com/google/uuid"
)

// ProductReader is the slice of the catalog the cart needs: it snapshots the
// current price when a line is added.
type ProductReader interface {
	GetPriceAndStock(ctx context.Context, id string) (price float64, stock int, err error)
}

// Service defines the cart business logic.
type Service interface {
	AddLine(ctx context.Context, customerID string, req AddLineRequest) (*Line, error)
	ListLines(ctx context.Context, customerID string) ([]*Line, error)
	UpdateLine(ctx context.Context, customerID, lineID string, req UpdateLineRequest) (*Line, error)
	RemoveLine(ctx context.Context, customerID, lineID string) error
	ClearAll(ctx context.Context, customerID string) error
}

type service struct {
	repo     Repository
	products ProductReader
}

// NewService creates a new cart service.
func NewService(repo Repository, products ProductReader) Service {
	return &service{repo: repo, products: products}
}

func (s *service) AddLine(ctx context.Context, customerID string, req AddLineRequest) (*Line, error) {
	if req.ProductID == "" {
		return nil, apperr.Validation("product_id is required")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, apperr.Validation("invalid product_id")
	}
	custID, err := uuid.Parse(customerID)
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}

	qty := 1
	if req.Quantity != nil {
		if *req.Quantity < 1 {
			return nil, apperr.Validation("quantity must be at least 1")
		}
		qty = *req.Quantity
	}

	price, _, err := s.products.GetPriceAndStock(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	return s.repo.UpsertLine(ctx, &Line{
		ID:         uuid.New(),
		CustomerID: custID,
		ProductID:  productID,
		Size:       req.Size,
		Color:      req.Color,
		Quantity:   qty,
		UnitPrice:  price,
	})
}

func (s *service) ListLines(ctx context.Context, customerID string) ([]*Line, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

func (s *service) UpdateLine(ctx context.Context, customerID, lineID string, req UpdateLineRequest) (*Line, error) {
	if req.Quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}
	return s.repo.UpdateQuantity(ctx, customerID, lineID, req.Quantity)
}

func (s *service) RemoveLine(ctx context.Context, customerID, lineID string) error {
	return s.repo.DeleteLine(ctx, customerID, lineID)
}

func (s *service) ClearAll(ctx context.Context, customerID string) error {
	return s.repo.DeleteAll(ctx, customerID)
}
