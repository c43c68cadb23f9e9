package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPaid      OrderStatus = "PAID"
	StatusCanceled  OrderStatus = "CANCELED"
	StatusCompleted OrderStatus = "COMPLETED"
)

// Order is the slice of an order the payment flow needs.
type Order struct {
	ID          string
	OrderNumber string
	UserID      string
	Total       decimal.Decimal
	Currency    string
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
