package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"payhub-be/internal/logger"
	"payhub-be/internal/payment"
	"payhub-be/internal/refund"
	"payhub-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RefundHandler struct {
	service refund.Service
}

func NewRefundHandler(service refund.Service) *RefundHandler {
	return &RefundHandler{service: service}
}

type rejectRequest struct {
	Note string `json:"note"`
}

// Create handles POST /api/v1/refunds.
func (h *RefundHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req refund.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	req.RequestedBy, _ = utils.GetUserIDFromContext(r.Context())
	req.RequestedByAdmin = utils.IsAdmin(r.Context())
	if req.Locale == "" {
		req.Locale = r.Header.Get("Accept-Language")
	}

	res := h.service.RequestRefund(r.Context(), req)
	if res.IsSuccess {
		utils.WriteJSON(w, http.StatusCreated, res)
		return
	}
	utils.WriteJSON(w, res.HTTPStatus(), res)
}

// ListByPayment handles GET /api/v1/payments/{paymentID}/refunds.
func (h *RefundHandler) ListByPayment(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	paymentID := chi.URLParam(r, "paymentID")

	refunds, err := h.service.ListByPayment(r.Context(), paymentID, userID, utils.IsAdmin(r.Context()))
	if errors.Is(err, payment.ErrAttemptNotFound) {
		utils.WriteJSONError(w, "payment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.ForPayment(r.Context(), paymentID, "").Error("failed to list refunds", zap.Error(err))
		utils.WriteJSONError(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if refunds == nil {
		refunds = []*refund.Refund{}
	}

	utils.WriteJSON(w, http.StatusOK, refunds)
}

func (h *RefundHandler) Approve(w http.ResponseWriter, r *http.Request) {
	adminID, _ := utils.GetUserIDFromContext(r.Context())
	res := h.service.Approve(r.Context(), chi.URLParam(r, "refundID"), adminID)
	utils.WriteJSON(w, res.HTTPStatus(), res)
}

func (h *RefundHandler) Reject(w http.ResponseWriter, r *http.Request) {
	// the note is optional, so is the body
	var req rejectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	adminID, _ := utils.GetUserIDFromContext(r.Context())
	res := h.service.Reject(r.Context(), chi.URLParam(r, "refundID"), adminID, req.Note)
	utils.WriteJSON(w, res.HTTPStatus(), res)
}

func (h *RefundHandler) Complete(w http.ResponseWriter, r *http.Request) {
	adminID, _ := utils.GetUserIDFromContext(r.Context())
	res := h.service.Complete(r.Context(), chi.URLParam(r, "refundID"), adminID)
	utils.WriteJSON(w, res.HTTPStatus(), res)
}
