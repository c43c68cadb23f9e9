package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Repository interface {
	SaveAttempt(ctx context.Context, a *Attempt) error
	// UpdateAttempt writes a only if the stored version still matches
	// a.Version, then bumps a.Version. Otherwise ErrConcurrentUpdate.
	UpdateAttempt(ctx context.Context, a *Attempt) error
	FindAttempt(ctx context.Context, paymentID string) (*Attempt, error)
	// FindAttemptByReference resolves a provider reference. Retries of one
	// order share a reference, so the newest Pending attempt wins, then the
	// newest of any status.
	FindAttemptByReference(ctx context.Context, method Method, ref string) (*Attempt, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const attemptColumns = `payment_id, order_id, user_id, amount, currency, method, status,
		transaction_id, provider_ref, error_message, version, created_at, completed_at`

func (r *repository) SaveAttempt(ctx context.Context, a *Attempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_attempts (payment_id, order_id, user_id, amount, currency, method, status,
			transaction_id, provider_ref, error_message, version, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		a.PaymentID, a.OrderID, a.UserID, a.Amount, a.Currency, string(a.Method), string(a.Status),
		a.TransactionID, a.ProviderRef, a.ErrorMessage, a.Version, a.CreatedAt, a.CompletedAt,
	)
	return err
}

func (r *repository) UpdateAttempt(ctx context.Context, a *Attempt) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payment_attempts
		SET status = $1, transaction_id = $2, provider_ref = $3, error_message = $4,
			completed_at = $5, version = version + 1
		WHERE payment_id = $6 AND version = $7
	`,
		string(a.Status), a.TransactionID, a.ProviderRef, a.ErrorMessage, a.CompletedAt,
		a.PaymentID, a.Version,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConcurrentUpdate
	}

	a.Version++
	return nil
}

func (r *repository) FindAttempt(ctx context.Context, paymentID string) (*Attempt, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+attemptColumns+`
		FROM payment_attempts WHERE payment_id = $1
	`, paymentID)
	return scanAttempt(row)
}

func (r *repository) FindAttemptByReference(ctx context.Context, method Method, ref string) (*Attempt, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+attemptColumns+`
		FROM payment_attempts WHERE method = $1 AND provider_ref = $2
		ORDER BY (status = $3) DESC, created_at DESC LIMIT 1
	`, string(method), ref, string(StatusPending))
	return scanAttempt(row)
}

func scanAttempt(row *sql.Row) (*Attempt, error) {
	var (
		a           Attempt
		method      string
		status      string
		completedAt sql.NullTime
	)

	err := row.Scan(
		&a.PaymentID, &a.OrderID, &a.UserID, &a.Amount, &a.Currency, &method, &status,
		&a.TransactionID, &a.ProviderRef, &a.ErrorMessage, &a.Version, &a.CreatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Method = Method(method)
	a.Status = Status(status)
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return &a, nil
}

func stamp(t time.Time) *time.Time {
	return &t
}
