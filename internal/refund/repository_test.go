package refund

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refundRowColumns = []string{
	"id", "reference", "payment_id", "order_id", "amount", "currency", "reason", "status",
	"requested_by", "processed_by", "note", "created_at", "processed_at",
}

func TestRepository_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rf := &Refund{
		ID:          "rf-1",
		Reference:   "RF-20240102-030405-000-1234",
		PaymentID:   "pay-1",
		OrderID:     "ord-1",
		Amount:      decimal.NewFromInt(50000),
		Currency:    "VND",
		Reason:      "damaged",
		Status:      StatusPending,
		RequestedBy: "u1",
		CreatedAt:   created,
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO refund_requests`).
			WithArgs("rf-1", rf.Reference, "pay-1", "ord-1", rf.Amount, "VND", "damaged", "pending",
				"u1", "", "", created, nil).
			WillReturnResult(sqlmock.NewResult(1, 1))

		assert.NoError(t, repo.Save(context.Background(), rf))
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO refund_requests`).
			WillReturnError(errors.New("database error"))

		assert.Error(t, repo.Save(context.Background(), rf))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	processed := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	rf := &Refund{ID: "rf-1", Status: StatusApproved, ProcessedBy: "admin-1", ProcessedAt: &processed}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE refund_requests`).
			WithArgs("approved", "admin-1", "", &processed, "rf-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Update(context.Background(), rf))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectExec(`UPDATE refund_requests`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Update(context.Background(), rf), ErrRefundNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Found", func(t *testing.T) {
		rows := sqlmock.NewRows(refundRowColumns).
			AddRow("rf-1", "RF-1", "pay-1", "ord-1", "50000", "VND", "damaged", "approved",
				"u1", "admin-1", "", created, created.Add(time.Hour))
		mock.ExpectQuery(`SELECT .* FROM refund_requests WHERE id = \$1`).
			WithArgs("rf-1").
			WillReturnRows(rows)

		rf, err := repo.FindByID(context.Background(), "rf-1")
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, rf.Status)
		assert.True(t, decimal.NewFromInt(50000).Equal(rf.Amount))
		require.NotNil(t, rf.ProcessedAt)
		assert.Equal(t, created.Add(time.Hour), *rf.ProcessedAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM refund_requests WHERE id = \$1`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByID(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrRefundNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListByPayment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows(refundRowColumns).
		AddRow("rf-1", "RF-1", "pay-1", "ord-1", "10000", "VND", "a", "completed", "u1", "admin-1", "", created, created).
		AddRow("rf-2", "RF-2", "pay-1", "ord-1", "20000", "VND", "b", "pending", "u1", "", "", created.Add(time.Minute), nil)
	mock.ExpectQuery(`SELECT .* FROM refund_requests WHERE payment_id = \$1\s+ORDER BY created_at ASC`).
		WithArgs("pay-1").
		WillReturnRows(rows)

	refunds, err := repo.ListByPayment(context.Background(), "pay-1")
	require.NoError(t, err)
	require.Len(t, refunds, 2)
	assert.Equal(t, "rf-1", refunds[0].ID)
	assert.Equal(t, StatusPending, refunds[1].Status)
	assert.Nil(t, refunds[1].ProcessedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SumByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	t.Run("Total", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\)\s+FROM refund_requests\s+WHERE payment_id = \$1 AND status = ANY\(\$2\)`).
			WithArgs("pay-1", pq.Array([]string{"pending", "approved", "completed"})).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("75000"))

		total, err := repo.SumByStatus(context.Background(), "pay-1", activeStatuses...)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(75000).Equal(total))
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COALESCE`).
			WillReturnError(errors.New("db error"))

		_, err := repo.SumByStatus(context.Background(), "pay-1", StatusCompleted)
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
