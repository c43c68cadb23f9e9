package payment

import (
	"context"

	"payhub-be/internal/logger"

	"go.uber.org/zap"
)

// GenerateQRCode asks a QR-capable gateway for a scannable payment code.
// The attempt is recorded exactly like a regular payment.
func (s *service) GenerateQRCode(ctx context.Context, req PaymentRequest) (res *QRCodeResult) {
	log := logger.ForPayment(ctx, "", req.OrderID).With(zap.String("method", string(req.PaymentMethod)))

	defer func() {
		if r := recover(); r != nil {
			log.Error("unexpected qr generation failure", zap.Any("panic", r), zap.Stack("stack"))
			s.counters.Inc("qr_failed")
			res = qrFailure(KindUnexpected, msg(req.Locale, msgUnexpected))
		}
	}()

	gw, fail := s.prepare(ctx, &req)
	if fail != nil {
		s.counters.Inc("qr_rejected")
		return qrFailure(fail.ErrorKind, fail.ErrorMessage)
	}

	qr, ok := gw.(QRGateway)
	if !ok {
		s.counters.Inc("qr_rejected")
		return qrFailure(KindValidation, msg(req.Locale, msgQRNotSupported))
	}

	log = log.With(zap.String("payment_id", req.PaymentID))

	attempt := s.newAttempt(&req)
	if err := s.repo.SaveAttempt(ctx, attempt); err != nil {
		log.Error("failed to save payment attempt", zap.Error(err))
		return qrFailure(KindUnexpected, msg(req.Locale, msgUnexpected))
	}

	res = qr.GenerateQR(ctx, &req)
	if res == nil {
		log.Error("gateway returned no qr result")
		res = qrFailure(KindUnexpected, msg(req.Locale, msgUnexpected))
	}
	res.PaymentID = req.PaymentID

	status := StatusPending
	if !res.IsSuccess {
		status = StatusFailed
	}
	s.recordOutcome(ctx, attempt, res.IsSuccess, status, res.TransactionID, res.ProviderRef, res.ErrorMessage)

	if res.IsSuccess {
		s.counters.Inc("qr_generated")
		log.Info("payment qr generated", zap.Time("expires_at", res.ExpiresAt))
	} else {
		s.counters.Inc("qr_failed")
		log.Warn("payment qr generation failed",
			zap.String("error_kind", string(res.ErrorKind)),
			zap.String("error", res.ErrorMessage),
		)
	}

	return res
}
