package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_GetByIDOrNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	columns := []string{"id", "order_number", "user_id", "total_amount", "currency", "status", "created_at", "updated_at"}

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(columns).AddRow(
			"5b0a1f7e-0000-4000-8000-000000000001", "ORD-123", "u1", "250000.00", "VND", "PENDING", time.Now(), time.Now(),
		)
		mock.ExpectQuery(`SELECT id, order_number, .* FROM orders WHERE id::text = \$1 OR order_number = \$1`).
			WithArgs("ORD-123").
			WillReturnRows(rows)

		o, err := repo.GetByIDOrNumber(ctx, "ORD-123")
		require.NoError(t, err)
		assert.Equal(t, "ORD-123", o.OrderNumber)
		assert.Equal(t, "u1", o.UserID)
		assert.True(t, decimal.NewFromInt(250000).Equal(o.Total))
		assert.Equal(t, StatusPending, o.Status)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(columns))

		o, err := repo.GetByIDOrNumber(ctx, "missing")
		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.Nil(t, o)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders`).
			WillReturnError(errors.New("connection refused"))

		_, err := repo.GetByIDOrNumber(ctx, "ORD-123")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrOrderNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET status = \$1, updated_at = now\(\) WHERE id::text = \$2`).
			WithArgs(StatusPaid, "o-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateStatus(ctx, "o-1", StatusPaid))
	})

	t.Run("NoRows", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders`).
			WithArgs(StatusPaid, "o-2").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.UpdateStatus(ctx, "o-2", StatusPaid), ErrOrderNotFound)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders`).
			WillReturnError(errors.New("db error"))

		assert.Error(t, repo.UpdateStatus(ctx, "o-3", StatusPaid))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
