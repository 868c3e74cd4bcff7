package order

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// PaymentStatus tracks how far payment has reconciled for an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Order is the durable record of a purchase. TotalAmount is computed once at
// checkout (subtotal + shipping fee + tax) and never recomputed; after
// creation only Status, PaymentStatus and the timestamps they gate change.
type Order struct {
	ID              uuid.UUID     `json:"id"`
	CustomerID      uuid.UUID     `json:"customer_id"`
	OrderNumber     string        `json:"order_number"`
	Status          Status        `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	Subtotal        float64       `json:"subtotal"`
	ShippingFee     float64       `json:"shipping_fee"`
	Tax             float64       `json:"tax"`
	TotalAmount     float64       `json:"total_amount"`
	ShippingAddress string        `json:"shipping_address"`
	BillingAddress  string        `json:"billing_address"`
	PaymentMethod   string        `json:"payment_method"`
	PhoneNumber     string        `json:"phone_number,omitempty"`
	Items           []*Item       `json:"items,omitempty"`
	PaidAt          *time.Time    `json:"paid_at,omitempty"`
	DeliveredAt     *time.Time    `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Item is a price-frozen snapshot of one cart line, immutable once created.
type Item struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Subtotal  float64   `json:"subtotal"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckoutRequest is the payload for converting the cart into an order.
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	BillingAddress  string `json:"billing_address,omitempty"`
	PaymentMethod   string `json:"payment_method"`
	PhoneNumber     string `json:"phone_number,omitempty"`
}

// UpdateStatusRequest is the payload for advancing an order's status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}
