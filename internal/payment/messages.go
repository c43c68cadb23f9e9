package payment

import (
	"fmt"
	"strconv"

	"golang.org/x/text/language"
)

const (
	msgPaymentCreated     = "payment_created"
	msgPaymentCompleted   = "payment_completed"
	msgPaymentPending     = "payment_pending"
	msgQRCreated          = "qr_created"
	msgMethodNotSupported = "method_not_supported"
	msgQRNotSupported     = "qr_not_supported"
	msgInvalidRequest     = "invalid_request"
	msgInvalidAmount      = "invalid_amount"
	msgOrderNotFound      = "order_not_found"
	msgMissingConfig      = "missing_config"
	msgMissingReturnURL   = "missing_return_url"
	msgGatewayFailed      = "gateway_failed"
	msgUnexpected         = "unexpected"
	msgInvalidSignature   = "invalid_signature"
	msgAttemptNotFound    = "attempt_not_found"
	msgUnknownStatus      = "unknown_status"
	msgStatusConflict     = "status_conflict"
	msgAlreadyProcessed   = "already_processed"
	msgAmountMismatch     = "amount_mismatch"
	msgCallbackApplied    = "callback_applied"
	msgNotifyTitle        = "notify_title"
	msgNotifyBody         = "notify_body"
)

var supportedLocales = []language.Tag{language.Vietnamese, language.English}

var localeMatcher = language.NewMatcher(supportedLocales)

var catalog = map[language.Tag]map[string]string{
	language.Vietnamese: {
		msgPaymentCreated:     "Tạo yêu cầu thanh toán thành công",
		msgPaymentCompleted:   "Thanh toán thành công",
		msgPaymentPending:     "Giao dịch đang chờ xử lý",
		msgQRCreated:          "Tạo mã QR thanh toán thành công",
		msgMethodNotSupported: "Phương thức thanh toán không được hỗ trợ",
		msgQRNotSupported:     "Phương thức thanh toán không hỗ trợ mã QR",
		msgInvalidRequest:     "Yêu cầu thanh toán không hợp lệ: %s",
		msgInvalidAmount:      "Số tiền thanh toán phải lớn hơn 0",
		msgOrderNotFound:      "Không tìm thấy đơn hàng",
		msgMissingConfig:      "Cổng thanh toán chưa được cấu hình",
		msgMissingReturnURL:   "Thiếu địa chỉ trả về",
		msgGatewayFailed:      "Cổng thanh toán từ chối giao dịch: %s",
		msgUnexpected:         "Đã xảy ra lỗi khi xử lý thanh toán, vui lòng thử lại sau",
		msgInvalidSignature:   "Chữ ký không hợp lệ",
		msgAttemptNotFound:    "Không tìm thấy giao dịch",
		msgUnknownStatus:      "Trạng thái giao dịch không hợp lệ",
		msgStatusConflict:     "Trạng thái giao dịch xung đột với trạng thái hiện tại",
		msgAlreadyProcessed:   "Giao dịch đã được xử lý",
		msgAmountMismatch:     "Số tiền không khớp",
		msgCallbackApplied:    "Cập nhật trạng thái giao dịch thành công",
		msgNotifyTitle:        "Thanh toán thành công",
		msgNotifyBody:         "Đơn hàng %s đã được thanh toán %s %s",
	},
	language.English: {
		msgPaymentCreated:     "Payment request created",
		msgPaymentCompleted:   "Payment completed",
		msgPaymentPending:     "Payment is pending",
		msgQRCreated:          "Payment QR code created",
		msgMethodNotSupported: "Payment method not supported",
		msgQRNotSupported:     "Payment method does not support QR codes",
		msgInvalidRequest:     "Invalid payment request: %s",
		msgInvalidAmount:      "Amount must be greater than zero",
		msgOrderNotFound:      "Order not found",
		msgMissingConfig:      "Payment gateway is not configured",
		msgMissingReturnURL:   "Return URL is required",
		msgGatewayFailed:      "Payment gateway rejected the transaction: %s",
		msgUnexpected:         "Something went wrong while processing the payment, please try again later",
		msgInvalidSignature:   "Invalid signature",
		msgAttemptNotFound:    "Payment attempt not found",
		msgUnknownStatus:      "Unknown payment status",
		msgStatusConflict:     "Payment status conflicts with the recorded status",
		msgAlreadyProcessed:   "Payment already processed",
		msgAmountMismatch:     "Amount mismatch",
		msgCallbackApplied:    "Payment status updated",
		msgNotifyTitle:        "Payment successful",
		msgNotifyBody:         "Order %s has been paid: %s %s",
	},
}

// walletResultMessages localizes the wallet provider's result codes.
var walletResultMessages = map[language.Tag]map[int]string{
	language.Vietnamese: {
		1001: "Tài khoản ví không đủ số dư",
		1002: "Giao dịch bị từ chối bởi nhà phát hành",
		1004: "Số tiền vượt quá hạn mức thanh toán",
		1005: "Mã thanh toán đã hết hạn",
		1006: "Người dùng đã từ chối xác nhận thanh toán",
		11:   "Truy cập bị từ chối",
		13:   "Xác thực đối tác thất bại",
		22:   "Số tiền giao dịch không hợp lệ",
		41:   "Mã đơn hàng bị trùng",
		99:   "Lỗi không xác định",
	},
	language.English: {
		1001: "Insufficient wallet balance",
		1002: "Transaction rejected by the issuer",
		1004: "Amount exceeds the payment limit",
		1005: "Payment code expired",
		1006: "User declined the payment",
		11:   "Access denied",
		13:   "Merchant authentication failed",
		22:   "Invalid transaction amount",
		41:   "Duplicate order id",
		99:   "Unknown error",
	},
}

// matchLocale picks the closest supported locale; Vietnamese is the default.
// It accepts bare tags ("en") as well as Accept-Language values.
func matchLocale(locale string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return supportedLocales[0]
	}
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return supportedLocales[0]
	}
	return supportedLocales[idx]
}

func msg(locale, key string, args ...any) string {
	text, ok := catalog[matchLocale(locale)][key]
	if !ok {
		text = catalog[supportedLocales[0]][key]
	}
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

func walletMessage(locale string, code int, providerMessage string) string {
	if text, ok := walletResultMessages[matchLocale(locale)][code]; ok {
		return text
	}
	if providerMessage != "" {
		return providerMessage
	}
	return "result code " + strconv.Itoa(code)
}
