package catalog

import (
	"context"

	"github.com/example/storefront-backend/internal/shared/apperr"
	"github.com/google/uuid"
)

// Service defines the catalog business logic.
type Service interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]*Product, error)
	AdjustStock(ctx context.Context, id string, qty int) (*Product, error)
}

type service struct {
	repo Repository
}

// NewService creates a new catalog service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if req.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if req.Price <= 0 {
		return nil, apperr.Validation("price must be greater than 0")
	}
	if req.Stock < 0 {
		return nil, apperr.Validation("stock must not be negative")
	}

	p := &Product{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		IsActive:    true,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

func (s *service) ListProducts(ctx context.Context) ([]*Product, error) {
	return s.repo.ListProducts(ctx)
}

// AdjustStock applies a manual restock or removal. Removals go through the
// conditional decrement so the stock >= 0 invariant holds here too.
func (s *service) AdjustStock(ctx context.Context, id string, qty int) (*Product, error) {
	if qty == 0 {
		return nil, apperr.Validation("quantity must not be 0")
	}
	if qty > 0 {
		if err := s.repo.IncrementStock(ctx, id, qty); err != nil {
			return nil, err
		}
	} else {
		ok, err := s.repo.DecrementStock(ctx, id, -qty)
		if err != nil {
			return nil, err
		}
		if !ok {
			_, available, serr := s.repo.GetPriceAndStock(ctx, id)
			if serr != nil {
				return nil, serr
			}
			return nil, &apperr.InsufficientStockError{ProductID: id, Requested: -qty, Available: available}
		}
	}
	return s.repo.GetProductByID(ctx, id)
}
