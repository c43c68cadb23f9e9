package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
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
	walletRequestTypeCapture = "captureWallet"
	walletRequestTypeQR      = "payWithMethod"
	walletQRWindow           = 15 * time.Minute
)

// WalletSignFields are the ten values signed on a create request, in the
// provider's fixed alphabetical order.
type WalletSignFields struct {
	AccessKey   string
	Amount      int64
	ExtraData   string
	IpnURL      string
	OrderID     string
	OrderInfo   string
	PartnerCode string
	RedirectURL string
	RequestID   string
	RequestType string
}

// WalletSignatureString builds the raw string the provider hashes. Values
// are inserted as-is, without URL encoding.
func WalletSignatureString(f WalletSignFields) string {
	return "accessKey=" + f.AccessKey +
		"&amount=" + strconv.FormatInt(f.Amount, 10) +
		"&extraData=" + f.ExtraData +
		"&ipnUrl=" + f.IpnURL +
		"&orderId=" + f.OrderID +
		"&orderInfo=" + f.OrderInfo +
		"&partnerCode=" + f.PartnerCode +
		"&redirectUrl=" + f.RedirectURL +
		"&requestId=" + f.RequestID +
		"&requestType=" + f.RequestType
}

// walletIPNKeys is the signed key order of an IPN; accessKey comes from config.
var walletIPNKeys = []string{
	"amount", "extraData", "message", "orderId", "orderInfo", "orderType",
	"partnerCode", "payType", "requestId", "responseTime", "resultCode", "transId",
}

type walletCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	PartnerName string `json:"partnerName,omitempty"`
	StoreID     string `json:"storeId,omitempty"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IpnURL      string `json:"ipnUrl"`
	Lang        string `json:"lang"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Signature   string `json:"signature"`
}

type walletCreateResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	ResponseTime int64  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   int    `json:"resultCode"`
	PayURL       string `json:"payUrl"`
	Deeplink     string `json:"deeplink"`
	QRCodeURL    string `json:"qrCodeUrl"`
}

// WalletIPN is the provider's instant payment notification body.
type WalletIPN struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

type walletGateway struct {
	creds      config.Credentials
	httpClient *http.Client
	now        func() time.Time
}

// NewWalletGateway returns the HMAC-SHA256 signed wallet gateway.
func NewWalletGateway(creds config.Credentials, timeout time.Duration) QRGateway {
	return &walletGateway{
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

func (g *walletGateway) Method() Method { return MethodWallet }

func (g *walletGateway) Pay(ctx context.Context, req *PaymentRequest) *PaymentResult {
	res, kind, errMsg := g.create(ctx, req, walletRequestTypeCapture)
	if kind != "" {
		return failure(kind, errMsg)
	}

	return &PaymentResult{
		IsSuccess:     true,
		PaymentID:     req.PaymentID,
		TransactionID: res.RequestID,
		PaymentURL:    res.PayURL,
		QRPayload:     res.QRCodeURL,
		Status:        StatusPending,
		Message:       msg(req.Locale, msgPaymentCreated),
		ProviderRef:   res.RequestID,
	}
}

func (g *walletGateway) GenerateQR(ctx context.Context, req *PaymentRequest) *QRCodeResult {
	res, kind, errMsg := g.create(ctx, req, walletRequestTypeQR)
	if kind != "" {
		return qrFailure(kind, errMsg)
	}

	return &QRCodeResult{
		IsSuccess:        true,
		PaymentID:        req.PaymentID,
		QRCodeURL:        res.QRCodeURL,
		DeepLink:         res.Deeplink,
		PaymentURL:       res.PayURL,
		OrderID:          req.OrderID,
		TransactionID:    res.RequestID,
		ExpiresAt:        g.now().Add(walletQRWindow),
		ExpiresInSeconds: int(walletQRWindow.Seconds()),
		Metadata: map[string]string{
			"provider":     string(MethodWallet),
			"request_id":   res.RequestID,
			"request_type": walletRequestTypeQR,
		},
		Message:     msg(req.Locale, msgQRCreated),
		ProviderRef: res.RequestID,
	}
}

func (g *walletGateway) create(ctx context.Context, req *PaymentRequest, requestType string) (*walletCreateResponse, ErrorKind, string) {
	log := logger.ForPayment(ctx, req.PaymentID, req.OrderID).With(
		zap.String("gateway", string(MethodWallet)),
		zap.String("request_type", requestType),
	)

	pc, err := g.credentials()
	if err != nil {
		log.Error("wallet gateway not configured", zap.Error(err))
		return nil, KindConfiguration, msg(req.Locale, msgMissingConfig)
	}

	orderInfo := req.OrderInfo
	if orderInfo == "" {
		orderInfo = "Thanh toan don hang " + req.OrderID
	}

	fields := WalletSignFields{
		AccessKey:   pc.AccessKey,
		Amount:      WalletAmount(req.Amount),
		ExtraData:   "",
		IpnURL:      req.NotifyURL,
		OrderID:     req.PaymentID,
		OrderInfo:   orderInfo,
		PartnerCode: pc.MerchantCode,
		RedirectURL: req.ReturnURL,
		RequestID:   uuid.New().String(),
		RequestType: requestType,
	}

	body := walletCreateRequest{
		PartnerCode: fields.PartnerCode,
		PartnerName: pc.PartnerName,
		StoreID:     pc.StoreID,
		RequestID:   fields.RequestID,
		Amount:      fields.Amount,
		OrderID:     fields.OrderID,
		OrderInfo:   fields.OrderInfo,
		RedirectURL: fields.RedirectURL,
		IpnURL:      fields.IpnURL,
		Lang:        matchLocale(req.Locale).String(),
		RequestType: fields.RequestType,
		ExtraData:   fields.ExtraData,
		Signature:   signature.SHA256(WalletSignatureString(fields), pc.SecretKey),
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Error("failed to marshal wallet request", zap.Error(err))
		return nil, KindUnexpected, msg(req.Locale, msgUnexpected)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.BaseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		log.Error("failed creating wallet request", zap.Error(err))
		return nil, KindConfiguration, msg(req.Locale, msgMissingConfig)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Info("sending payment request to wallet provider", zap.String("request_id", fields.RequestID))

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		log.Error("wallet request failed", zap.Error(err))
		return nil, KindGateway, msg(req.Locale, msgGatewayFailed, err.Error())
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("failed to read wallet response", zap.Error(err))
		return nil, KindGateway, msg(req.Locale, msgGatewayFailed, err.Error())
	}

	var res walletCreateResponse
	decodeErr := json.Unmarshal(bodyBytes, &res)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error("wallet provider returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		detail := res.Message
		if decodeErr != nil || detail == "" {
			detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
		} else {
			detail = walletMessage(req.Locale, res.ResultCode, res.Message)
		}
		return nil, KindGateway, msg(req.Locale, msgGatewayFailed, detail)
	}

	if decodeErr != nil {
		log.Error("failed decoding wallet response", zap.Error(decodeErr))
		return nil, KindGateway, msg(req.Locale, msgGatewayFailed, "malformed response")
	}

	if res.ResultCode != 0 {
		log.Warn("wallet provider rejected request",
			zap.Int("result_code", res.ResultCode),
			zap.String("provider_message", res.Message),
		)
		return nil, KindGateway, msg(req.Locale, msgGatewayFailed, walletMessage(req.Locale, res.ResultCode, res.Message))
	}

	if res.RequestID == "" {
		res.RequestID = fields.RequestID
	}

	log.Info("wallet payment created", zap.String("request_id", res.RequestID))
	return &res, "", ""
}

func (g *walletGateway) VerifyCallback(cb *Callback) error {
	pc, err := g.credentials()
	if err != nil {
		return err
	}

	data := compactCanonical(cb)
	if len(cb.Fields) > 0 {
		var b strings.Builder
		b.WriteString("accessKey=")
		b.WriteString(pc.AccessKey)
		for _, k := range walletIPNKeys {
			b.WriteByte('&')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(cb.Fields[k])
		}
		data = b.String()
	}

	if !signature.Verify(signature.HMACSHA256, data, pc.SecretKey, cb.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

func (g *walletGateway) credentials() (config.ProviderConfig, error) {
	pc, err := g.creds.Lookup(config.ProviderWallet)
	if err != nil {
		return pc, err
	}
	if pc.MerchantCode == "" || pc.AccessKey == "" || pc.SecretKey == "" {
		return pc, ErrMissingConfiguration
	}
	return pc, nil
}

// WalletAmount is the whole-unit integer amount the wallet provider expects.
func WalletAmount(amount decimal.Decimal) int64 {
	return amount.Truncate(0).IntPart()
}

// WalletCallback normalizes an IPN body.
func WalletCallback(ipn WalletIPN) *Callback {
	amount := decimal.NewFromInt(ipn.Amount)

	return &Callback{
		PaymentID:     ipn.OrderID,
		Method:        MethodWallet,
		TransactionID: strconv.FormatInt(ipn.TransID, 10),
		Status:        walletStatus(ipn.ResultCode),
		Amount:        &amount,
		Signature:     ipn.Signature,
		Message:       ipn.Message,
		Fields: map[string]string{
			"amount":       strconv.FormatInt(ipn.Amount, 10),
			"extraData":    ipn.ExtraData,
			"message":      ipn.Message,
			"orderId":      ipn.OrderID,
			"orderInfo":    ipn.OrderInfo,
			"orderType":    ipn.OrderType,
			"partnerCode":  ipn.PartnerCode,
			"payType":      ipn.PayType,
			"requestId":    ipn.RequestID,
			"responseTime": strconv.FormatInt(ipn.ResponseTime, 10),
			"resultCode":   strconv.Itoa(ipn.ResultCode),
			"transId":      strconv.FormatInt(ipn.TransID, 10),
		},
	}
}

func walletStatus(resultCode int) Status {
	switch resultCode {
	case 0, 9000:
		return StatusCompleted
	case 1000, 7000, 7002:
		return StatusPending
	case 1003, 1006:
		return StatusCancelled
	}
	return StatusFailed
}
