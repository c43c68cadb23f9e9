package refund

import (
	"time"

	"payhub-be/internal/payment"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// CanTransitionTo follows pending -> approved|rejected, approved -> completed.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusApproved || target == StatusRejected
	case StatusApproved:
		return target == StatusCompleted
	}
	return false
}

// activeStatuses count against the refundable amount of a payment.
var activeStatuses = []Status{StatusPending, StatusApproved, StatusCompleted}

type Refund struct {
	ID          string          `json:"id"`
	Reference   string          `json:"reference"`
	PaymentID   string          `json:"payment_id"`
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Reason      string          `json:"reason"`
	Status      Status          `json:"status"`
	RequestedBy string          `json:"requested_by"`
	ProcessedBy string          `json:"processed_by,omitempty"`
	Note        string          `json:"note,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

type Request struct {
	PaymentID   string          `json:"payment_id" validate:"required"`
	OrderID     string          `json:"order_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason" validate:"required,max=500"`
	RequestedBy string          `json:"-" validate:"required"`
	Locale      string          `json:"locale,omitempty"`

	// RequestedByAdmin lifts the ownership check.
	RequestedByAdmin bool `json:"-"`
}

type Result struct {
	IsSuccess    bool              `json:"is_success"`
	Refund       *Refund           `json:"refund,omitempty"`
	Message      string            `json:"message,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	ErrorKind    payment.ErrorKind `json:"error_kind,omitempty"`
	Reason       payment.Reason    `json:"reason,omitempty"`
}

func (r *Result) HTTPStatus() int {
	res := payment.PaymentResult{IsSuccess: r.IsSuccess, ErrorKind: r.ErrorKind, Reason: r.Reason}
	return res.HTTPStatus()
}

func failure(kind payment.ErrorKind, message string) *Result {
	return &Result{IsSuccess: false, ErrorMessage: message, ErrorKind: kind}
}

func (r *Result) withReason(reason payment.Reason) *Result {
	r.Reason = reason
	return r
}
