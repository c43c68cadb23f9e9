package payment

import (
	"context"
	"net/url"
	"sort"
	"strings"
)

// Gateway is the provider-agnostic interface every payment adapter must
// implement. Adding a provider means adding an implementation, not a branch.
type Gateway interface {
	Method() Method
	// Pay builds and signs the provider request for req. It never returns
	// nil; failures are reported through the result.
	Pay(ctx context.Context, req *PaymentRequest) *PaymentResult
	// VerifyCallback re-derives the provider's canonical string for cb and
	// checks its signature. It returns ErrInvalidSignature on mismatch.
	VerifyCallback(cb *Callback) error
}

// QRGateway is implemented by gateways that can hand out a scannable code.
type QRGateway interface {
	Gateway
	GenerateQR(ctx context.Context, req *PaymentRequest) *QRCodeResult
}

// Registry maps payment method codes to their gateways.
type Registry map[Method]Gateway

func NewRegistry(gateways ...Gateway) Registry {
	r := make(Registry, len(gateways))
	for _, g := range gateways {
		r[g.Method()] = g
	}
	return r
}

// canonicalQuery drops empty values, sorts keys and joins key=value pairs
// with '&'. Values are query-escaped: unreserved bytes pass through, a
// space becomes '+', everything else becomes uppercase %XX.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// compactCanonical is the string signed for the compact callback form.
// The status is the one the sender wrote, before normalization.
func compactCanonical(cb *Callback) string {
	status := cb.RawStatus
	if status == "" {
		status = string(cb.Status)
	}
	return "paymentId=" + cb.PaymentID +
		"&status=" + status +
		"&transactionId=" + cb.TransactionID
}

// SignCompactCallback signs the compact callback form with fn. It is the
// counterpart of the compact-form check done by each gateway.
func SignCompactCallback(fn func(data, secret string) string, secret, paymentID string, status Status, transactionID string) string {
	return fn(compactCanonical(&Callback{PaymentID: paymentID, Status: status, TransactionID: transactionID}), secret)
}
