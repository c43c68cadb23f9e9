package refund

import (
	"fmt"

	"golang.org/x/text/language"
)

const (
	msgRequested       = "requested"
	msgApproved        = "approved"
	msgRejected        = "rejected"
	msgCompleted       = "completed"
	msgInvalidRequest  = "invalid_request"
	msgInvalidAmount   = "invalid_amount"
	msgPaymentNotFound = "payment_not_found"
	msgNotRefundable   = "not_refundable"
	msgExceedsAmount   = "exceeds_amount"
	msgRefundNotFound  = "refund_not_found"
	msgInvalidState    = "invalid_state"
	msgUnexpected      = "unexpected"
	msgUnsettled       = "unsettled"
	msgNotifyTitle     = "notify_title"
	msgNotifyBody      = "notify_body"
)

var supportedLocales = []language.Tag{language.Vietnamese, language.English}

var localeMatcher = language.NewMatcher(supportedLocales)

var catalog = map[language.Tag]map[string]string{
	language.Vietnamese: {
		msgRequested:       "Đã ghi nhận yêu cầu hoàn tiền",
		msgApproved:        "Yêu cầu hoàn tiền đã được duyệt",
		msgRejected:        "Yêu cầu hoàn tiền đã bị từ chối",
		msgCompleted:       "Hoàn tiền thành công",
		msgInvalidRequest:  "Yêu cầu hoàn tiền không hợp lệ: %s",
		msgInvalidAmount:   "Số tiền hoàn phải lớn hơn 0",
		msgPaymentNotFound: "Không tìm thấy giao dịch thanh toán",
		msgNotRefundable:   "Giao dịch chưa hoàn tất nên không thể hoàn tiền",
		msgExceedsAmount:   "Số tiền hoàn vượt quá số tiền còn có thể hoàn (%s)",
		msgRefundNotFound:  "Không tìm thấy yêu cầu hoàn tiền",
		msgInvalidState:    "Không thể chuyển yêu cầu hoàn tiền từ %s sang %s",
		msgUnexpected:      "Đã xảy ra lỗi khi xử lý hoàn tiền, vui lòng thử lại sau",
		msgUnsettled:       "Đã hoàn tiền nhưng chưa cập nhật được trạng thái thanh toán, vui lòng hoàn tất lại",
		msgNotifyTitle:     "Cập nhật hoàn tiền",
		msgNotifyBody:      "Yêu cầu hoàn tiền %s: %s",
	},
	language.English: {
		msgRequested:       "Refund request recorded",
		msgApproved:        "Refund request approved",
		msgRejected:        "Refund request rejected",
		msgCompleted:       "Refund completed",
		msgInvalidRequest:  "Invalid refund request: %s",
		msgInvalidAmount:   "Refund amount must be greater than zero",
		msgPaymentNotFound: "Payment not found",
		msgNotRefundable:   "Only completed payments can be refunded",
		msgExceedsAmount:   "Refund amount exceeds the refundable amount (%s)",
		msgRefundNotFound:  "Refund request not found",
		msgInvalidState:    "Cannot move refund from %s to %s",
		msgUnexpected:      "Something went wrong while processing the refund, please try again later",
		msgUnsettled:       "Refund completed but the payment could not be marked refunded, complete it again to retry",
		msgNotifyTitle:     "Refund update",
		msgNotifyBody:      "Refund %s: %s",
	},
}

func msg(locale, key string, args ...any) string {
	tag := supportedLocales[0]
	if tags, _, err := language.ParseAcceptLanguage(locale); err == nil && len(tags) > 0 {
		if _, idx, conf := localeMatcher.Match(tags...); conf != language.No {
			tag = supportedLocales[idx]
		}
	}

	text := catalog[tag][key]
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}
