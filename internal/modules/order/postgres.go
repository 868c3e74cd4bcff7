package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront-backend/internal/shared/apperr"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a new PostgreSQL order repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

// CreateOrder inserts the order, its items, and applies the conditional stock
// decrements inside one transaction. Any failed decrement rolls everything
// back, so no partial order or reservation is ever observable.
func (r *postgresRepo) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders
		  (id, customer_id, order_number, status, payment_status,
		   subtotal, shipping_fee, tax, total_amount,
		   shipping_address, billing_address, payment_method, phone_number)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		o.ID, o.CustomerID, o.OrderNumber, o.Status, o.PaymentStatus,
		o.Subtotal, o.ShippingFee, o.Tax, o.TotalAmount,
		o.ShippingAddress, o.BillingAddress, o.PaymentMethod, o.PhoneNumber)
	if err != nil {
		if isUniqueViolation(err, "orders_order_number_key") {
			return apperr.ErrDuplicateReference
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, subtotal, size, color)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			item.ID, o.ID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal, item.Size, item.Color)
		if err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}

	// Compare-and-decrement per item: the stock >= quantity condition decides
	// the race when two checkouts want the last unit.
	for _, item := range o.Items {
		res, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2`,
			item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var available int
			if err := tx.QueryRowContext(ctx,
				`SELECT stock FROM products WHERE id=$1`, item.ProductID).Scan(&available); err != nil {
				available = 0
			}
			return &apperr.InsufficientStockError{
				ProductID: item.ProductID.String(),
				Requested: item.Quantity,
				Available: available,
			}
		}
	}

	return tx.Commit()
}

func (r *postgresRepo) GetOrderByID(ctx context.Context, id string) (*Order, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	o, err := scanOrder(r.db.QueryRowContext(ctx, selectOrder+` WHERE id=$1`, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Items, err = r.listItems(ctx, o.ID)
	return o, err
}

func (r *postgresRepo) ListOrdersByCustomer(ctx context.Context, customerID string, status string) ([]*Order, error) {
	query := selectOrder + ` WHERE customer_id=$1`
	args := []interface{}{customerID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if orders == nil {
		orders = []*Order{}
	}
	return orders, rows.Err()
}

// UpdateStatus only writes while the stored status still matches from, so a
// concurrent update that already moved the order on makes this one a typed
// conflict instead of a silent regression.
func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, from, to Status, deliveredAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status=$3, delivered_at=COALESCE($4, delivered_at), updated_at=now()
		WHERE id=$1 AND status=$2`,
		id, from, to, deliveredAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &apperr.InvalidTransitionError{From: string(from), To: string(to)}
	}
	return nil
}

// CancelOrder re-credits stock for every item and stamps cancelled_at in one
// transaction. The status guard keeps a concurrent second cancel from
// restocking twice.
func (r *postgresRepo) CancelOrder(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status=$2, cancelled_at=now(), updated_at=now()
		WHERE id=$1 AND status NOT IN ($3, $4)`,
		o.ID, StatusCancelled, StatusDelivered, StatusCancelled)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &apperr.InvalidTransitionError{From: string(o.Status), To: string(StatusCancelled)}
	}

	for _, item := range o.Items {
		_, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
			item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}
	}

	return tx.Commit()
}

func (r *postgresRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status=$2, paid_at=$3,
		    status = CASE WHEN status=$4 THEN $5 ELSE status END,
		    updated_at=now()
		WHERE id=$1`,
		id, PaymentPaid, paidAt, StatusPending, StatusProcessing)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

const selectOrder = `
	SELECT id, customer_id, order_number, status, payment_status,
	       subtotal, shipping_fee, tax, total_amount,
	       shipping_address, billing_address, payment_method, phone_number,
	       paid_at, delivered_at, cancelled_at, created_at, updated_at
	FROM orders`

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanOrder(row rowScanner) (*Order, error) {
	o := &Order{}
	var paidAt, deliveredAt, cancelledAt sql.NullTime
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.OrderNumber, &o.Status, &o.PaymentStatus,
		&o.Subtotal, &o.ShippingFee, &o.Tax, &o.TotalAmount,
		&o.ShippingAddress, &o.BillingAddress, &o.PaymentMethod, &o.PhoneNumber,
		&paidAt, &deliveredAt, &cancelledAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	if deliveredAt.Valid {
		o.DeliveredAt = &deliveredAt.Time
	}
	if cancelledAt.Valid {
		o.CancelledAt = &cancelledAt.Time
	}
	return o, nil
}

func (r *postgresRepo) listItems(ctx context.Context, orderID uuid.UUID) ([]*Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal, size, color, created_at
		FROM order_items WHERE order_id=$1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item := &Item{}
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID,
			&item.Quantity, &item.UnitPrice, &item.Subtotal,
			&item.Size, &item.Color, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == constraint
	}
	return false
}
