package payment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/storefront-backend/internal/shared/apperr"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a new PostgreSQL payment repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Create(ctx context.Context, p *Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments
		  (id, order_id, customer_id, email, amount, currency, reference,
		   provider_reference, status, payment_method, channel)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.OrderID, p.CustomerID, p.Email, p.Amount, p.Currency, p.Reference,
		nilIfEmpty(p.ProviderReference), p.Status, nilIfEmpty(p.PaymentMethod), nilIfEmpty(p.Channel))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return apperr.ErrDuplicateReference
	}
	return err
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*Payment, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	return r.scan(r.db.QueryRowContext(ctx, selectPayment+` WHERE id=$1`, uid))
}

func (r *postgresRepo) GetByReference(ctx context.Context, reference string) (*Payment, error) {
	return r.scan(r.db.QueryRowContext(ctx, selectPayment+` WHERE reference=$1`, reference))
}

func (r *postgresRepo) ListByCustomer(ctx context.Context, customerID string) ([]*Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		selectPayment+` WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if payments == nil {
		payments = []*Payment{}
	}
	return payments, rows.Err()
}

// UpdateFromProvider is the compare-and-set half of the idempotence guard:
// the status <> success condition decides the race when a stale result and a
// terminal one arrive concurrently.
func (r *postgresRepo) UpdateFromProvider(ctx context.Context, p *Payment) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status=$2, provider_reference=COALESCE(NULLIF($3,''), provider_reference),
		    channel=COALESCE(NULLIF($4,''), channel),
		    payment_method=COALESCE(NULLIF($5,''), payment_method),
		    paid_at=COALESCE($6, paid_at),
		    provider_response=COALESCE($7, provider_response),
		    order_id=COALESCE($8, order_id),
		    updated_at=now()
		WHERE id=$1 AND status <> $9`,
		p.ID, p.Status, p.ProviderReference, p.Channel, p.PaymentMethod,
		p.PaidAt, nullableJSON(p.ProviderResponse), p.OrderID, StatusSuccess)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ── helpers ──────────────────────────────────────────────────────────────────

const selectPayment = `
	SELECT id, order_id, customer_id, email, amount, currency, reference,
	       provider_reference, status, payment_method, channel, paid_at,
	       provider_response, created_at, updated_at
	FROM payments`

type rowScanner interface{ Scan(dest ...interface{}) error }

func (r *postgresRepo) scan(row rowScanner) (*Payment, error) {
	p := &Payment{}
	var orderID sql.NullString
	var providerRef, method, channel sql.NullString
	var paidAt sql.NullTime
	var response []byte

	err := row.Scan(
		&p.ID, &orderID, &p.CustomerID, &p.Email, &p.Amount, &p.Currency, &p.Reference,
		&providerRef, &p.Status, &method, &channel, &paidAt,
		&response, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if orderID.Valid {
		id, err := uuid.Parse(orderID.String)
		if err == nil {
			p.OrderID = &id
		}
	}
	if providerRef.Valid {
		p.ProviderReference = providerRef.String
	}
	if method.Valid {
		p.PaymentMethod = method.String
	}
	if channel.Valid {
		p.Channel = channel.String
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	p.ProviderResponse = response
	return p, nil
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
