package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"payhub-be/internal/config"
	"payhub-be/internal/signature"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCardGateway(creds config.Credentials, rt http.RoundTripper) *cardGateway {
	gw := NewCardGateway(creds, 5*time.Second).(*cardGateway)
	gw.httpClient.Transport = rt
	return gw
}

func cardRequest() *PaymentRequest {
	return &PaymentRequest{
		OrderID:         "ord-1",
		PaymentID:       "pay-1",
		UserID:          "u1",
		Amount:          decimal.RequireFromString("1000.50"),
		Currency:        "USD",
		PaymentMethod:   MethodCard,
		PaymentMethodID: "pm_card_visa",
	}
}

func TestCardMinorUnits(t *testing.T) {
	assert.Equal(t, int64(100050), CardMinorUnits(decimal.RequireFromString("1000.50")))
	assert.Equal(t, int64(1500), CardMinorUnits(decimal.NewFromInt(15)))
	assert.Equal(t, int64(199), CardMinorUnits(decimal.RequireFromString("1.999")))
}

func TestCardGateway_Pay(t *testing.T) {
	t.Run("Succeeded", func(t *testing.T) {
		var sent cardIntentRequest
		gw := newTestCardGateway(testCredentials(), MockRoundTripper(func(req *http.Request) *http.Response {
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "https://card.test/v1/payment_intents", req.URL.String())
			assert.Equal(t, "Bearer "+testCardSecret, req.Header.Get("Authorization"))
			assert.Equal(t, "pay-1", req.Header.Get("Idempotency-Key"))
			require.NoError(t, json.NewDecoder(req.Body).Decode(&sent))

			return jsonResponse(http.StatusOK, `{"id": "pi_123", "status": "succeeded"}`)
		}))

		res := gw.Pay(context.Background(), cardRequest())
		require.True(t, res.IsSuccess, res.ErrorMessage)
		assert.Equal(t, StatusCompleted, res.Status)
		assert.Equal(t, "pi_123", res.TransactionID)

		assert.Equal(t, int64(100050), sent.Amount)
		assert.Equal(t, "usd", sent.Currency)
		assert.True(t, sent.Confirm)
		assert.Equal(t, "pay-1", sent.Metadata["payment_id"])
	})

	t.Run("RequiresAction", func(t *testing.T) {
		gw := newTestCardGateway(testCredentials(), MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"id": "pi_124", "status": "requires_action"}`)
		}))

		res := gw.Pay(context.Background(), cardRequest())
		assert.False(t, res.IsSuccess)
		assert.Equal(t, StatusPending, res.Status)
		assert.Equal(t, "pi_124", res.ProviderRef)
	})

	t.Run("Canceled", func(t *testing.T) {
		gw := newTestCardGateway(testCredentials(), MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"id": "pi_125", "status": "canceled"}`)
		}))

		res := gw.Pay(context.Background(), cardRequest())
		assert.False(t, res.IsSuccess)
		assert.Equal(t, StatusCancelled, res.Status)
	})

	t.Run("Declined", func(t *testing.T) {
		gw := newTestCardGateway(testCredentials(), MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusPaymentRequired, `{"error": {"message": "Your card was declined.", "code": "card_declined"}}`)
		}))

		res := gw.Pay(context.Background(), cardRequest())
		assert.False(t, res.IsSuccess)
		assert.Equal(t, KindGateway, res.ErrorKind)
		assert.Contains(t, res.ErrorMessage, "Your card was declined.")
	})

	t.Run("NotConfigured", func(t *testing.T) {
		called := false
		gw := newTestCardGateway(config.Static{}, MockRoundTripper(func(req *http.Request) *http.Response {
			called = true
			return jsonResponse(http.StatusOK, `{}`)
		}))

		res := gw.Pay(context.Background(), cardRequest())
		assert.Equal(t, KindConfiguration, res.ErrorKind)
		assert.False(t, called)
	})
}

func TestCardGateway_VerifyCallback(t *testing.T) {
	gw := newTestCardGateway(testCredentials(), nil)
	body := []byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","status":"succeeded","metadata":{"payment_id":"pay-1"}}}}`)
	ts := "1700000000"
	header := "t=" + ts + ",v1=" + signature.SHA256(ts+"."+string(body), testWebhookSecret)

	t.Run("Valid", func(t *testing.T) {
		cb, err := CardCallback(header, body)
		require.NoError(t, err)
		assert.NoError(t, gw.VerifyCallback(cb))
		assert.Equal(t, "pay-1", cb.PaymentID)
		assert.Equal(t, "pi_123", cb.TransactionID)
		assert.Equal(t, StatusCompleted, cb.Status)
	})

	t.Run("TamperedBody", func(t *testing.T) {
		tampered := []byte(string(body[:len(body)-2]) + ` }}`)
		cb, err := CardCallback(header, tampered)
		require.NoError(t, err)
		assert.ErrorIs(t, gw.VerifyCallback(cb), ErrInvalidSignature)
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		_, err := CardCallback("v1=abc", body)
		assert.ErrorIs(t, err, ErrMalformedWebhook)
	})

	t.Run("MissingWebhookSecret", func(t *testing.T) {
		creds := testCredentials()
		pc := creds[config.ProviderCard]
		pc.WebhookSecret = ""
		creds[config.ProviderCard] = pc

		cb, err := CardCallback(header, body)
		require.NoError(t, err)
		assert.ErrorIs(t, newTestCardGateway(creds, nil).VerifyCallback(cb), ErrMissingConfiguration)
	})
}

func TestManualGateway(t *testing.T) {
	gw, err := NewManualGateway(1)
	require.NoError(t, err)

	res := gw.Pay(context.Background(), &PaymentRequest{PaymentID: "pay-1", OrderID: "ord-1"})
	assert.True(t, res.IsSuccess)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Regexp(t, `^MANUAL-\d+$`, res.TransactionID)

	assert.ErrorIs(t, gw.VerifyCallback(&Callback{}), ErrCallbackUnsupported)

	_, err = NewManualGateway(5000)
	assert.Error(t, err)
}
