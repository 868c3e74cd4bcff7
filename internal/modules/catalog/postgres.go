package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/storefront-backend/internal/shared/apperr"
	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a new PostgreSQL catalog repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) CreateProduct(ctx context.Context, p *Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, stock, image_url, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.ImageURL, p.IsActive)
	return err
}

func (r *postgresRepo) GetProductByID(ctx context.Context, id string) (*Product, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	p := &Product{}
	err = r.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, stock, image_url, is_active, created_at, updated_at
		FROM products WHERE id=$1`, uid).Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.ImageURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) ListProducts(ctx context.Context) ([]*Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, price, stock, image_url, is_active, created_at, updated_at
		FROM products WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p := &Product{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
			&p.ImageURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if products == nil {
		products = []*Product{}
	}
	return products, rows.Err()
}

func (r *postgresRepo) GetPriceAndStock(ctx context.Context, id string) (float64, int, error) {
	var price float64
	var stock int
	err := r.db.QueryRowContext(ctx,
		`SELECT price, stock FROM products WHERE id=$1 AND is_active`, id).
		Scan(&price, &stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, apperr.ErrNotFound
	}
	return price, stock, err
}

// DecrementStock is the compare-and-decrement two concurrent checkouts race
// on: the WHERE clause makes the last unit go to exactly one of them.
func (r *postgresRepo) DecrementStock(ctx context.Context, id string, qty int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now()
		 WHERE id = $1 AND stock >= $2`, id, qty)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *postgresRepo) IncrementStock(ctx context.Context, id string, qty int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, id, qty)
	return err
}
