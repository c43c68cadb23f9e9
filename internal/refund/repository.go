package refund

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var ErrRefundNotFound = errors.New("refund request not found")

type Repository interface {
	Save(ctx context.Context, r *Refund) error
	Update(ctx context.Context, r *Refund) error
	FindByID(ctx context.Context, id string) (*Refund, error)
	ListByPayment(ctx context.Context, paymentID string) ([]*Refund, error)
	// SumByStatus totals the refunds of a payment in any of statuses.
	SumByStatus(ctx context.Context, paymentID string, statuses ...Status) (decimal.Decimal, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const refundColumns = `id, reference, payment_id, order_id, amount, currency, reason, status,
		requested_by, processed_by, note, created_at, processed_at`

func (r *repository) Save(ctx context.Context, rf *Refund) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refund_requests (id, reference, payment_id, order_id, amount, currency, reason, status,
			requested_by, processed_by, note, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		rf.ID, rf.Reference, rf.PaymentID, rf.OrderID, rf.Amount, rf.Currency, rf.Reason, string(rf.Status),
		rf.RequestedBy, rf.ProcessedBy, rf.Note, rf.CreatedAt, rf.ProcessedAt,
	)
	return err
}

func (r *repository) Update(ctx context.Context, rf *Refund) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refund_requests
		SET status = $1, processed_by = $2, note = $3, processed_at = $4
		WHERE id = $5
	`, string(rf.Status), rf.ProcessedBy, rf.Note, rf.ProcessedAt, rf.ID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRefundNotFound
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*Refund, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+refundColumns+`
		FROM refund_requests WHERE id = $1
	`, id)

	rf, err := scanRefund(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRefundNotFound
	}
	return rf, err
}

func (r *repository) ListByPayment(ctx context.Context, paymentID string) ([]*Refund, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+refundColumns+`
		FROM refund_requests WHERE payment_id = $1
		ORDER BY created_at ASC
	`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refunds []*Refund
	for rows.Next() {
		rf, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, rf)
	}
	return refunds, rows.Err()
}

func (r *repository) SumByStatus(ctx context.Context, paymentID string, statuses ...Status) (decimal.Decimal, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM refund_requests
		WHERE payment_id = $1 AND status = ANY($2)
	`, paymentID, pq.Array(names)).Scan(&total)
	return total, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRefund(s scanner) (*Refund, error) {
	var (
		rf          Refund
		status      string
		processedAt sql.NullTime
	)

	err := s.Scan(
		&rf.ID, &rf.Reference, &rf.PaymentID, &rf.OrderID, &rf.Amount, &rf.Currency, &rf.Reason, &status,
		&rf.RequestedBy, &rf.ProcessedBy, &rf.Note, &rf.CreatedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	rf.Status = Status(status)
	if processedAt.Valid {
		t := processedAt.Time
		rf.ProcessedAt = &t
	}
	return &rf, nil
}
