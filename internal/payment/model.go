package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodBankRedirect Method = "bank_redirect"
	MethodWallet       Method = "wallet"
	MethodCard         Method = "card"
	MethodManual       Method = "manual"
)

const DefaultCurrency = "VND"

// PaymentRequest is the canonical, provider-neutral payment request.
// OrderNumber and PaymentID are filled in by the service before dispatch.
type PaymentRequest struct {
	OrderID         string          `json:"order_id" validate:"required,max=100"`
	UserID          string          `json:"user_id" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	PaymentMethod   Method          `json:"payment_method" validate:"required"`
	OrderInfo       string          `json:"order_info,omitempty"`
	ReturnURL       string          `json:"return_url,omitempty" validate:"omitempty,url"`
	NotifyURL       string          `json:"notify_url,omitempty" validate:"omitempty,url"`
	ClientIP        string          `json:"client_ip,omitempty"`
	PaymentMethodID string          `json:"payment_method_id,omitempty"`
	Locale          string          `json:"locale,omitempty"`

	OrderNumber string `json:"-"`
	PaymentID   string `json:"-"`
}

// Attempt is one dispatch of an order to a gateway.
type Attempt struct {
	PaymentID     string
	OrderID       string
	UserID        string
	Amount        decimal.Decimal
	Currency      string
	Method        Method
	Status        Status
	TransactionID string
	ProviderRef   string
	ErrorMessage  string
	Version       int
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// PaymentResult is returned by every payment operation, successful or not.
type PaymentResult struct {
	IsSuccess     bool      `json:"is_success"`
	PaymentID     string    `json:"payment_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	PaymentURL    string    `json:"payment_url,omitempty"`
	QRPayload     string    `json:"qr_payload,omitempty"`
	Status        Status    `json:"status"`
	Message       string    `json:"message,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	ErrorKind     ErrorKind `json:"error_kind,omitempty"`
	Reason        Reason    `json:"reason,omitempty"`

	ProviderRef string `json:"-"`
}

type QRCodeResult struct {
	IsSuccess        bool              `json:"is_success"`
	PaymentID        string            `json:"payment_id,omitempty"`
	QRCodeURL        string            `json:"qr_code_url,omitempty"`
	DeepLink         string            `json:"deep_link,omitempty"`
	PaymentURL       string            `json:"payment_url,omitempty"`
	OrderID          string            `json:"order_id,omitempty"`
	TransactionID    string            `json:"transaction_id,omitempty"`
	ExpiresAt        time.Time         `json:"expires_at"`
	ExpiresInSeconds int               `json:"expires_in_seconds"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Message          string            `json:"message,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	ErrorKind        ErrorKind         `json:"error_kind,omitempty"`

	ProviderRef string `json:"-"`
}

// Callback is an inbound provider notification, normalized.
//
// Fields holds the provider's signed key/value set when the provider
// signs its own format. When Fields and Payload are empty the compact
// form paymentId/status/transactionId is what was signed, with status
// taken verbatim from RawStatus.
type Callback struct {
	PaymentID     string
	Reference     string
	Method        Method
	TransactionID string
	Status        Status
	RawStatus     string
	Amount        *decimal.Decimal
	Signature     string
	Timestamp     string
	Message       string
	Fields        map[string]string
	Payload       []byte
}
