package cart

import (
	"time"

	"github.com/google/uuid"
)

// Line is one product/variant entry pending purchase by a customer. UnitPrice
// is a display snapshot taken when the line was added; checkout re-reads the
// catalog for the authoritative price.
type Line struct {
	ID         uuid.UUID `json:"id"`
	CustomerID uuid.UUID `json:"customer_id"`
	ProductID  uuid.UUID `json:"product_id"`
	Size       string    `json:"size,omitempty"`
	Color      string    `json:"color,omitempty"`
	Quantity   int       `json:"quantity"`
	UnitPrice  float64   `json:"unit_price"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AddLineRequest is the payload for adding a product to the cart. A nil
// Quantity defaults to 1; an explicit quantity below 1 is rejected.
type AddLineRequest struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Quantity  *int   `json:"quantity,omitempty"`
}

// UpdateLineRequest changes the quantity of an existing line.
type UpdateLineRequest struct {
	Quantity int `json:"quantity"`
}
