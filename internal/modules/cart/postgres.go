package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/storefront-backend/internal/shared/apperr"
	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a new PostgreSQL cart repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const selectLine = `
	SELECT id, customer_id, product_id, size, color, quantity, unit_price, created_at, updated_at
	FROM cart_lines`

// UpsertLine relies on the unique (customer_id, product_id, size, color)
// index: a conflicting insert merges by summing quantities.
func (r *postgresRepo) UpsertLine(ctx context.Context, line *Line) (*Line, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO cart_lines (id, customer_id, product_id, size, color, quantity, unit_price)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (customer_id, product_id, size, color)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING id, customer_id, product_id, size, color, quantity, unit_price, created_at, updated_at`,
		line.ID, line.CustomerID, line.ProductID, line.Size, line.Color, line.Quantity, line.UnitPrice)
	return scanLine(row)
}

func (r *postgresRepo) ListByCustomer(ctx context.Context, customerID string) ([]*Line, error) {
	rows, err := r.db.QueryContext(ctx,
		selectLine+` WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []*Line
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if lines == nil {
		lines = []*Line{}
	}
	return lines, rows.Err()
}

func (r *postgresRepo) UpdateQuantity(ctx context.Context, customerID, lineID string, quantity int) (*Line, error) {
	uid, err := uuid.Parse(lineID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE cart_lines SET quantity=$3, updated_at=now()
		WHERE id=$2 AND customer_id=$1
		RETURNING id, customer_id, product_id, size, color, quantity, unit_price, created_at, updated_at`,
		customerID, uid, quantity)
	line, err := scanLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return line, err
}

func (r *postgresRepo) DeleteLine(ctx context.Context, customerID, lineID string) error {
	uid, err := uuid.Parse(lineID)
	if err != nil {
		return apperr.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE id=$2 AND customer_id=$1`, customerID, uid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteAll(ctx context.Context, customerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE customer_id=$1`, customerID)
	return err
}

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanLine(row rowScanner) (*Line, error) {
	line := &Line{}
	err := row.Scan(&line.ID, &line.CustomerID, &line.ProductID, &line.Size, &line.Color,
		&line.Quantity, &line.UnitPrice, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return line, nil
}
