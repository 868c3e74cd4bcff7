package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Product is a sellable item in the storefront catalog. Price and Stock are
// the authoritative values re-read at checkout time; cart lines only carry a
// display snapshot.
type Product struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateProductRequest is the payload for adding a product to the catalog.
type CreateProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// AdjustStockRequest is the payload for a manual stock adjustment.
type AdjustStockRequest struct {
	Quantity int `json:"quantity"` // positive restocks, negative removes
}
