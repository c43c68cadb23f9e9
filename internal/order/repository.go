package order

import (
	"context"
	"database/sql"
	"errors"
)

type Repository interface {
	// GetByIDOrNumber matches either the order id or its human-readable number.
	GetByIDOrNumber(ctx context.Context, idOrNumber string) (*Order, error)
	UpdateStatus(ctx context.Context, orderID string, status OrderStatus) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByIDOrNumber(ctx context.Context, idOrNumber string) (*Order, error) {
	query := `
		SELECT id, order_number, user_id, total_amount, currency, status, created_at, updated_at
		FROM orders
		WHERE id::text = $1 OR order_number = $1
		LIMIT 1
	`

	var o Order
	err := r.db.QueryRowContext(ctx, query, idOrNumber).Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Total, &o.Currency, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID string, status OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = now() WHERE id::text = $2
	`, status, orderID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}
