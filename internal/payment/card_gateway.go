package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"payhub-be/internal/config"
	"payhub-be/internal/logger"
	"payhub-be/internal/signature"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const cardIntentPath = "/v1/payment_intents"

type cardIntentRequest struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	Confirm       bool              `json:"confirm"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata"`
}

type cardIntent struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	ClientSecret string            `json:"client_secret"`
	Metadata     map[string]string `json:"metadata"`
	LastError    *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type cardErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

type cardEvent struct {
	Type string `json:"type"`
	Data struct {
		Object cardIntent `json:"object"`
	} `json:"data"`
}

type cardGateway struct {
	creds      config.Credentials
	httpClient *http.Client
}

// NewCardGateway returns the card-network REST gateway. It signs nothing
// locally; requests are authenticated with the bearer secret.
func NewCardGateway(creds config.Credentials, timeout time.Duration) Gateway {
	return &cardGateway{
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *cardGateway) Method() Method { return MethodCard }

func (g *cardGateway) Pay(ctx context.Context, req *PaymentRequest) *PaymentResult {
	log := logger.ForPayment(ctx, req.PaymentID, req.OrderID).With(zap.String("gateway", string(MethodCard)))

	pc, err := g.creds.Lookup(config.ProviderCard)
	if err != nil || pc.SecretKey == "" {
		log.Error("card gateway not configured", zap.Error(err))
		return failure(KindConfiguration, msg(req.Locale, msgMissingConfig))
	}

	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	body := cardIntentRequest{
		Amount:        CardMinorUnits(req.Amount),
		Currency:      strings.ToLower(currency),
		PaymentMethod: req.PaymentMethodID,
		Confirm:       req.PaymentMethodID != "",
		Description:   req.OrderInfo,
		Metadata: map[string]string{
			"payment_id": req.PaymentID,
			"order_id":   req.OrderID,
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Error("failed to marshal card request", zap.Error(err))
		return failure(KindUnexpected, msg(req.Locale, msgUnexpected))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.BaseURL+cardIntentPath, bytes.NewBuffer(jsonBody))
	if err != nil {
		log.Error("failed creating card request", zap.Error(err))
		return failure(KindConfiguration, msg(req.Locale, msgMissingConfig))
	}
	httpReq.Header.Set("Authorization", "Bearer "+pc.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.PaymentID)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		log.Error("card request failed", zap.Error(err))
		return failure(KindGateway, msg(req.Locale, msgGatewayFailed, err.Error()))
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("failed to read card response", zap.Error(err))
		return failure(KindGateway, msg(req.Locale, msgGatewayFailed, err.Error()))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb cardErrorBody
		detail := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if json.Unmarshal(bodyBytes, &eb) == nil && eb.Error.Message != "" {
			detail = eb.Error.Message
		}
		log.Error("card provider returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return failure(KindGateway, msg(req.Locale, msgGatewayFailed, detail))
	}

	var intent cardIntent
	if err := json.Unmarshal(bodyBytes, &intent); err != nil {
		log.Error("failed decoding card response", zap.Error(err))
		return failure(KindGateway, msg(req.Locale, msgGatewayFailed, "malformed response"))
	}

	log.Info("card payment intent created",
		zap.String("intent_id", intent.ID),
		zap.String("intent_status", intent.Status),
	)

	switch intent.Status {
	case "succeeded":
		return &PaymentResult{
			IsSuccess:     true,
			PaymentID:     req.PaymentID,
			TransactionID: intent.ID,
			Status:        StatusCompleted,
			Message:       msg(req.Locale, msgPaymentCompleted),
			ProviderRef:   intent.ID,
		}
	case "canceled":
		res := failure(KindGateway, msg(req.Locale, msgGatewayFailed, intent.Status))
		res.PaymentID = req.PaymentID
		res.TransactionID = intent.ID
		res.Status = StatusCancelled
		res.ProviderRef = intent.ID
		return res
	}

	detail := intent.Status
	if intent.LastError != nil && intent.LastError.Message != "" {
		detail = intent.LastError.Message
	}
	return &PaymentResult{
		IsSuccess:     false,
		PaymentID:     req.PaymentID,
		TransactionID: intent.ID,
		Status:        StatusPending,
		Message:       msg(req.Locale, msgPaymentPending),
		ErrorMessage:  detail,
		ProviderRef:   intent.ID,
	}
}

// VerifyCallback checks webhook signatures of the form t=<ts>,v1=<hex>
// over "<ts>.<body>", or the compact form when no body is present.
func (g *cardGateway) VerifyCallback(cb *Callback) error {
	pc, err := g.creds.Lookup(config.ProviderCard)
	if err != nil {
		return err
	}
	if pc.WebhookSecret == "" {
		return ErrMissingConfiguration
	}

	data := compactCanonical(cb)
	if len(cb.Payload) > 0 {
		data = cb.Timestamp + "." + string(cb.Payload)
	}

	if !signature.Verify(signature.HMACSHA256, data, pc.WebhookSecret, cb.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// CardMinorUnits converts amount to minor units (times 100, integer).
func CardMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Truncate(0).IntPart()
}

var ErrMalformedWebhook = errors.New("malformed card webhook")

// CardCallback parses a card webhook. header is the signature header value.
func CardCallback(header string, body []byte) (*Callback, error) {
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			if sig == "" {
				sig = v
			}
		}
	}
	if ts == "" || sig == "" {
		return nil, ErrMalformedWebhook
	}

	var ev cardEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}

	obj := ev.Data.Object
	cb := &Callback{
		PaymentID:     obj.Metadata["payment_id"],
		Reference:     obj.ID,
		Method:        MethodCard,
		TransactionID: obj.ID,
		Status:        cardEventStatus(ev.Type),
		Signature:     sig,
		Timestamp:     ts,
		Message:       ev.Type,
		Payload:       body,
	}
	return cb, nil
}

func cardEventStatus(eventType string) Status {
	switch eventType {
	case "payment_intent.succeeded":
		return StatusCompleted
	case "payment_intent.payment_failed":
		return StatusFailed
	case "payment_intent.canceled":
		return StatusCancelled
	case "payment_intent.processing", "payment_intent.requires_action":
		return StatusPending
	}
	return StatusUnknown
}
