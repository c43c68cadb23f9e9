package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"payhub-be/internal/logger"
	"payhub-be/internal/payment"
	"payhub-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	CardSignatureHeader = "Stripe-Signature"

	maxBodyBytes = 64 << 10
)

var validate = validator.New()

// bankIPNResponse is the acknowledgement format the bank redirect provider
// expects from the IPN endpoint.
type bankIPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

type compactCallbackRequest struct {
	Signature     string `json:"signature" validate:"required,hexadecimal"`
	Status        string `json:"status" validate:"required"`
	TransactionID string `json:"transaction_id"`
}

// Handler terminates provider callbacks and hands them to the reconciler.
type Handler struct {
	reconciler payment.Reconciler
}

func NewWebhookHandler(reconciler payment.Reconciler) *Handler {
	return &Handler{reconciler: reconciler}
}

// BankIPN handles the server-to-server notification of the bank redirect
// provider. The provider always gets HTTP 200; the outcome is in RspCode.
func (h *Handler) BankIPN(w http.ResponseWriter, r *http.Request) {
	ctx := utils.WithInternalRequest(r.Context())
	query := r.URL.Query()

	if query.Get("vnp_SecureHash") == "" {
		utils.WriteJSON(w, http.StatusOK, bankIPNResponse{RspCode: "97", Message: "Invalid signature"})
		return
	}

	res := h.reconciler.Reconcile(ctx, payment.BankRedirectCallback(query))
	utils.WriteJSON(w, http.StatusOK, bankAck(res))
}

func bankAck(res *payment.PaymentResult) bankIPNResponse {
	switch {
	case res.IsSuccess && res.Reason == "":
		return bankIPNResponse{RspCode: "00", Message: "Confirm Success"}
	case res.Reason == payment.ReasonDuplicate, res.Reason == payment.ReasonConflict:
		return bankIPNResponse{RspCode: "02", Message: "Order already confirmed"}
	case res.Reason == payment.ReasonNotFound:
		return bankIPNResponse{RspCode: "01", Message: "Order not found"}
	case res.Reason == payment.ReasonAmountMismatch:
		return bankIPNResponse{RspCode: "04", Message: "Invalid amount"}
	case res.Reason == payment.ReasonInvalidSignature:
		return bankIPNResponse{RspCode: "97", Message: "Invalid signature"}
	}
	return bankIPNResponse{RspCode: "99", Message: "Unknown error"}
}

// BankReturn handles the browser redirect back from the bank provider.
func (h *Handler) BankReturn(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("vnp_SecureHash") == "" {
		utils.WriteJSONError(w, "missing signature", http.StatusBadRequest)
		return
	}

	res := h.reconciler.Reconcile(r.Context(), payment.BankRedirectCallback(query))
	if res.Reason == payment.ReasonDuplicate {
		utils.WriteJSON(w, http.StatusOK, res)
		return
	}
	utils.WriteJSON(w, res.HTTPStatus(), res)
}

// WalletIPN handles the wallet provider's JSON notification. The provider
// expects 204 once the notification is accepted.
func (h *Handler) WalletIPN(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context())

	var ipn payment.WalletIPN
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&ipn); err != nil {
		log.Warn("invalid wallet ipn payload", zap.Error(err))
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	res := h.reconciler.Reconcile(utils.WithInternalRequest(r.Context()), payment.WalletCallback(ipn))
	if res.IsSuccess {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	utils.WriteJSON(w, res.HTTPStatus(), res)
}

// CardWebhook handles signed card network events. Events that carry no
// payment status are acknowledged and dropped.
func (h *Handler) CardWebhook(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	cb, err := payment.CardCallback(r.Header.Get(CardSignatureHeader), body)
	if err != nil {
		log.Warn("malformed card webhook", zap.Error(err))
		utils.WriteJSONError(w, "malformed webhook", http.StatusBadRequest)
		return
	}

	if cb.Status == payment.StatusUnknown {
		log.Debug("ignoring card event", zap.String("event", cb.Message))
		utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	res := h.reconciler.Reconcile(utils.WithInternalRequest(r.Context()), cb)
	if res.IsSuccess {
		utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	utils.WriteJSON(w, res.HTTPStatus(), res)
}

// CompactCallback handles POST /api/v1/payments/{paymentID}/callback.
func (h *Handler) CompactCallback(w http.ResponseWriter, r *http.Request) {
	paymentID := strings.TrimSpace(chi.URLParam(r, "paymentID"))
	if paymentID == "" {
		utils.WriteJSONError(w, "payment id is required", http.StatusBadRequest)
		return
	}

	var req compactCallbackRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			utils.WriteJSONError(w, "invalid field: "+verrs[0].Field(), http.StatusBadRequest)
			return
		}
		utils.WriteJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}

	res := h.reconciler.HandleCallback(utils.WithInternalRequest(r.Context()), paymentID, req.Signature, req.Status, req.TransactionID)
	utils.WriteJSON(w, res.HTTPStatus(), res)
}
