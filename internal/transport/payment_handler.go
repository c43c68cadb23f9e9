package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"payhub-be/internal/logger"
	"payhub-be/internal/payment"
	"payhub-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

type PaymentHandler struct {
	service payment.Service
}

func NewPaymentHandler(service payment.Service) *PaymentHandler {
	return &PaymentHandler{service: service}
}

type attemptResponse struct {
	PaymentID     string          `json:"payment_id"`
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Method        payment.Method  `json:"payment_method"`
	Status        payment.Status  `json:"status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

func toAttemptResponse(a *payment.Attempt) attemptResponse {
	return attemptResponse{
		PaymentID:     a.PaymentID,
		OrderID:       a.OrderID,
		Amount:        a.Amount,
		Currency:      a.Currency,
		Method:        a.Method,
		Status:        a.Status,
		TransactionID: a.TransactionID,
		ErrorMessage:  a.ErrorMessage,
		CreatedAt:     a.CreatedAt,
		CompletedAt:   a.CompletedAt,
	}
}

// Create handles POST /api/v1/payments.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePaymentRequest(w, r)
	if !ok {
		return
	}

	res := h.service.ProcessPayment(r.Context(), req)
	utils.WriteJSON(w, res.HTTPStatus(), res)
}

// CreateQR handles POST /api/v1/payments/qr.
func (h *PaymentHandler) CreateQR(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePaymentRequest(w, r)
	if !ok {
		return
	}

	res := h.service.GenerateQRCode(r.Context(), req)
	utils.WriteJSON(w, res.HTTPStatus(), res)
}

// Get handles GET /api/v1/payments/{paymentID}.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	paymentID := chi.URLParam(r, "paymentID")

	a, err := h.service.GetAttempt(r.Context(), paymentID, userID)
	if errors.Is(err, payment.ErrAttemptNotFound) {
		utils.WriteJSONError(w, "payment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.ForPayment(r.Context(), paymentID, "").Error("failed to load payment attempt", zap.Error(err))
		utils.WriteJSONError(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, toAttemptResponse(a))
}

// decodePaymentRequest reads the body and binds it to the caller. The user
// always comes from the token, never from the payload.
func decodePaymentRequest(w http.ResponseWriter, r *http.Request) (payment.PaymentRequest, bool) {
	var req payment.PaymentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return req, false
	}

	req.UserID, _ = utils.GetUserIDFromContext(r.Context())
	if req.ClientIP == "" {
		req.ClientIP = utils.ClientIP(r)
	}
	if req.Locale == "" {
		req.Locale = r.Header.Get("Accept-Language")
	}
	return req, true
}
