package payment

import (
	"context"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"payhub-be/internal/config"
	"payhub-be/internal/logger"
	"payhub-be/internal/signature"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	bankVersion      = "2.1.0"
	bankCommand      = "pay"
	bankOrderType    = "other"
	bankDateLayout   = "20060102150405"
	bankHashParam    = "vnp_SecureHash"
	bankHashType     = "vnp_SecureHashType"
	bankPayWindow    = 15 * time.Minute
	maxTxnRefLength  = 100
	maxOrderInfoLen  = 255
	loopbackLiteral  = "127.0.0.1"
	bankCodeSuccess  = "00"
	bankCodeCanceled = "24"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

type bankRedirectGateway struct {
	creds config.Credentials
	loc   *time.Location
	now   func() time.Time
}

// NewBankRedirectGateway returns the HMAC-SHA512 signed redirect gateway.
func NewBankRedirectGateway(creds config.Credentials) QRGateway {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		logger.L().Warn("failed to load Ho Chi Minh location, using fixed +07:00", zap.Error(err))
		loc = time.FixedZone("ICT", 7*60*60)
	}

	return &bankRedirectGateway{
		creds: creds,
		loc:   loc,
		now:   time.Now,
	}
}

func (g *bankRedirectGateway) Method() Method { return MethodBankRedirect }

func (g *bankRedirectGateway) Pay(ctx context.Context, req *PaymentRequest) *PaymentResult {
	log := logger.ForPayment(ctx, req.PaymentID, req.OrderID).With(zap.String("gateway", string(MethodBankRedirect)))

	pc, err := g.credentials()
	if err != nil {
		log.Error("bank redirect gateway not configured", zap.Error(err))
		return failure(KindConfiguration, msg(req.Locale, msgMissingConfig))
	}

	if req.ReturnURL == "" {
		return failure(KindValidation, msg(req.Locale, msgMissingReturnURL))
	}

	paymentURL, txnRef, _ := g.buildURL(pc, req, g.now())

	log.Info("bank redirect url built", zap.String("txn_ref", txnRef))

	return &PaymentResult{
		IsSuccess:     true,
		PaymentID:     req.PaymentID,
		TransactionID: txnRef,
		PaymentURL:    paymentURL,
		Status:        StatusPending,
		Message:       msg(req.Locale, msgPaymentCreated),
		ProviderRef:   txnRef,
	}
}

// GenerateQR returns the signed redirect URL; the provider has no QR image
// endpoint so the caller renders the URL as a QR code.
func (g *bankRedirectGateway) GenerateQR(ctx context.Context, req *PaymentRequest) *QRCodeResult {
	pc, err := g.credentials()
	if err != nil {
		logger.ForPayment(ctx, req.PaymentID, req.OrderID).Error("bank redirect gateway not configured", zap.Error(err))
		return qrFailure(KindConfiguration, msg(req.Locale, msgMissingConfig))
	}
	if req.ReturnURL == "" {
		return qrFailure(KindValidation, msg(req.Locale, msgMissingReturnURL))
	}

	paymentURL, txnRef, expires := g.buildURL(pc, req, g.now())

	return &QRCodeResult{
		IsSuccess:        true,
		PaymentID:        req.PaymentID,
		PaymentURL:       paymentURL,
		OrderID:          req.OrderID,
		TransactionID:    txnRef,
		ExpiresAt:        expires,
		ExpiresInSeconds: int(bankPayWindow.Seconds()),
		Metadata: map[string]string{
			"provider": string(MethodBankRedirect),
			"txn_ref":  txnRef,
		},
		Message:     msg(req.Locale, msgQRCreated),
		ProviderRef: txnRef,
	}
}

func (g *bankRedirectGateway) VerifyCallback(cb *Callback) error {
	pc, err := g.credentials()
	if err != nil {
		return err
	}

	data := compactCanonical(cb)
	if len(cb.Fields) > 0 {
		signed := make(map[string]string, len(cb.Fields))
		for k, v := range cb.Fields {
			if k == bankHashParam || k == bankHashType {
				continue
			}
			signed[k] = v
		}
		data = canonicalQuery(signed)
	}

	if !signature.Verify(signature.HMACSHA512, data, pc.SecretKey, cb.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

func (g *bankRedirectGateway) credentials() (config.ProviderConfig, error) {
	pc, err := g.creds.Lookup(config.ProviderBankRedirect)
	if err != nil {
		return pc, err
	}
	if pc.MerchantCode == "" || pc.SecretKey == "" {
		return pc, ErrMissingConfiguration
	}
	return pc, nil
}

func (g *bankRedirectGateway) buildURL(pc config.ProviderConfig, req *PaymentRequest, now time.Time) (string, string, time.Time) {
	created := now.In(g.loc)
	expires := created.Add(bankPayWindow)
	txnRef := transactionRef(req.OrderNumber, created)

	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	orderInfo := req.OrderInfo
	if orderInfo == "" {
		orderInfo = "Thanh toan don hang " + txnRef
	}

	params := map[string]string{
		"vnp_Version":    bankVersion,
		"vnp_Command":    bankCommand,
		"vnp_TmnCode":    pc.MerchantCode,
		"vnp_Amount":     BankAmount(req.Amount),
		"vnp_CurrCode":   currency,
		"vnp_TxnRef":     txnRef,
		"vnp_OrderInfo":  truncate(orderInfo, maxOrderInfoLen),
		"vnp_OrderType":  bankOrderType,
		"vnp_Locale":     bankLocale(req.Locale),
		"vnp_ReturnUrl":  req.ReturnURL,
		"vnp_IpAddr":     normalizeClientIP(req.ClientIP),
		"vnp_CreateDate": created.Format(bankDateLayout),
		"vnp_ExpireDate": expires.Format(bankDateLayout),
		"vnp_NotifyUrl":  req.NotifyURL,
	}

	query := canonicalQuery(params)
	hash := signature.SHA512(query, pc.SecretKey)

	return pc.BaseURL + "?" + query + "&" + bankHashParam + "=" + hash, txnRef, expires
}

// BankAmount converts amount to the provider's smallest unit: times 100,
// truncated, as an integer string.
func BankAmount(amount decimal.Decimal) string {
	return strconv.FormatInt(amount.Shift(2).Truncate(0).IntPart(), 10)
}

// transactionRef derives the provider reference from the order number.
// Without a usable number it falls back to a random id and a timestamp.
func transactionRef(orderNumber string, now time.Time) string {
	ref := nonAlnum.ReplaceAllString(orderNumber, "")
	if ref == "" {
		random := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
		ref = random + now.Format(bankDateLayout)
	}
	return truncate(ref, maxTxnRefLength)
}

func normalizeClientIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" || ip == "localhost" {
		return loopbackLiteral
	}
	if parsed := net.ParseIP(ip); parsed != nil && parsed.IsLoopback() {
		return loopbackLiteral
	}
	return ip
}

func bankLocale(locale string) string {
	if matchLocale(locale).String() == "en" {
		return "en"
	}
	return "vn"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// BankRedirectCallback normalizes the provider's return / IPN query string.
func BankRedirectCallback(q url.Values) *Callback {
	fields := make(map[string]string)
	for k := range q {
		if strings.HasPrefix(k, "vnp_") {
			fields[k] = q.Get(k)
		}
	}

	cb := &Callback{
		Reference:     q.Get("vnp_TxnRef"),
		Method:        MethodBankRedirect,
		TransactionID: q.Get("vnp_TransactionNo"),
		Status:        bankStatus(q.Get("vnp_ResponseCode"), q.Get("vnp_TransactionStatus")),
		Signature:     q.Get(bankHashParam),
		Message:       q.Get("vnp_ResponseCode"),
		Fields:        fields,
	}

	if raw := q.Get("vnp_Amount"); raw != "" {
		if minor, err := decimal.NewFromString(raw); err == nil {
			amount := minor.Shift(-2)
			cb.Amount = &amount
		}
	}
	return cb
}

func bankStatus(responseCode, transactionStatus string) Status {
	if responseCode == bankCodeSuccess && (transactionStatus == "" || transactionStatus == bankCodeSuccess) {
		return StatusCompleted
	}
	if responseCode == bankCodeCanceled {
		return StatusCancelled
	}
	if responseCode == "" {
		return StatusUnknown
	}
	return StatusFailed
}
