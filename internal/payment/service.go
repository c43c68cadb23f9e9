package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"payhub-be/internal/logger"
	"payhub-be/internal/metrics"
	"payhub-be/internal/order"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the order collaborator as seen from the payment flow.
type OrderStore interface {
	FindOwned(ctx context.Context, idOrNumber, userID string) (*order.Order, error)
	MarkAsPaid(ctx context.Context, orderID string) error
}

// Notifier delivers user-facing notifications. Failures never fail a payment.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message, kind string) error
}

type Service interface {
	ProcessPayment(ctx context.Context, req PaymentRequest) *PaymentResult
	GenerateQRCode(ctx context.Context, req PaymentRequest) *QRCodeResult
	GetAttempt(ctx context.Context, paymentID, userID string) (*Attempt, error)
}

type service struct {
	repo     Repository
	orders   OrderStore
	gateways Registry
	validate *validator.Validate
	counters *metrics.Registry
	newID    func() string
	now      func() time.Time
}

func NewService(repo Repository, orders OrderStore, gateways Registry, counters *metrics.Registry) Service {
	return &service{
		repo:     repo,
		orders:   orders,
		gateways: gateways,
		validate: validator.New(),
		counters: counters,
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
	}
}

// ProcessPayment validates req, dispatches it to the gateway registered
// for its method and records the attempt. It never panics or returns nil.
func (s *service) ProcessPayment(ctx context.Context, req PaymentRequest) (res *PaymentResult) {
	log := logger.ForPayment(ctx, "", req.OrderID).With(zap.String("method", string(req.PaymentMethod)))

	defer func() {
		if r := recover(); r != nil {
			log.Error("unexpected payment failure", zap.Any("panic", r), zap.Stack("stack"))
			s.counters.Inc("payments_failed")
			res = failure(KindUnexpected, msg(req.Locale, msgUnexpected))
		}
	}()

	gw, fail := s.prepare(ctx, &req)
	if fail != nil {
		s.counters.Inc("payments_rejected")
		return fail
	}

	log = log.With(zap.String("payment_id", req.PaymentID))

	attempt := s.newAttempt(&req)
	if err := s.repo.SaveAttempt(ctx, attempt); err != nil {
		log.Error("failed to save payment attempt", zap.Error(err))
		return failure(KindUnexpected, msg(req.Locale, msgUnexpected))
	}

	res = gw.Pay(ctx, &req)
	if res == nil {
		log.Error("gateway returned no result")
		res = failure(KindUnexpected, msg(req.Locale, msgUnexpected))
	}
	res.PaymentID = req.PaymentID

	s.recordOutcome(ctx, attempt, res.IsSuccess, res.Status, res.TransactionID, res.ProviderRef, res.ErrorMessage)

	switch {
	case res.IsSuccess:
		s.counters.Inc("payments_dispatched")
		log.Info("payment dispatched", zap.String("status", string(res.Status)))
	case res.ErrorKind == "":
		s.counters.Inc("payments_pending")
		log.Info("payment awaiting provider confirmation", zap.String("detail", res.ErrorMessage))
	default:
		s.counters.Inc("payments_failed")
		log.Warn("payment dispatch failed",
			zap.String("error_kind", string(res.ErrorKind)),
			zap.String("error", res.ErrorMessage),
		)
	}

	return res
}

func (s *service) GetAttempt(ctx context.Context, paymentID, userID string) (*Attempt, error) {
	a, err := s.repo.FindAttempt(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// prepare validates req, resolves the order and the gateway, and fills
// in the fields the gateways need. A non-nil result means rejection.
func (s *service) prepare(ctx context.Context, req *PaymentRequest) (Gateway, *PaymentResult) {
	log := logger.ForPayment(ctx, "", req.OrderID)

	req.OrderID = strings.TrimSpace(req.OrderID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}

	if err := s.validate.Struct(req); err != nil {
		log.Info("payment request rejected", zap.Error(err))
		return nil, failure(KindValidation, msg(req.Locale, msgInvalidRequest, validationSummary(err)))
	}
	if !req.Amount.IsPositive() {
		return nil, failure(KindValidation, msg(req.Locale, msgInvalidAmount))
	}

	ord, err := s.orders.FindOwned(ctx, req.OrderID, req.UserID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) || errors.Is(err, order.ErrUnauthorized) {
			log.Info("order not found for requester", zap.String("user_id", req.UserID), zap.Error(err))
			return nil, failure(KindValidation, msg(req.Locale, msgOrderNotFound))
		}
		log.Error("order lookup failed", zap.Error(err))
		return nil, failure(KindUnexpected, msg(req.Locale, msgUnexpected))
	}

	gw, ok := s.gateways[req.PaymentMethod]
	if !ok {
		return nil, failure(KindValidation, msg(req.Locale, msgMethodNotSupported))
	}

	req.OrderID = ord.ID
	req.OrderNumber = ord.OrderNumber
	req.PaymentID = s.newID()
	return gw, nil
}

func (s *service) newAttempt(req *PaymentRequest) *Attempt {
	return &Attempt{
		PaymentID: req.PaymentID,
		OrderID:   req.OrderID,
		UserID:    req.UserID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Method:    req.PaymentMethod,
		Status:    StatusPending,
		CreatedAt: s.now(),
	}
}

// recordOutcome applies the dispatch outcome to the pending attempt.
func (s *service) recordOutcome(ctx context.Context, a *Attempt, ok bool, status Status, txID, ref, errMsg string) {
	switch {
	case ok && status == StatusCompleted:
		a.Status = StatusCompleted
		a.CompletedAt = stamp(s.now())
	case !ok && (status == StatusPending || status == StatusCancelled):
		a.Status = status
	case !ok:
		a.Status = StatusFailed
	}
	a.TransactionID = txID
	a.ProviderRef = ref
	a.ErrorMessage = errMsg

	log := logger.ForPayment(ctx, a.PaymentID, a.OrderID)
	if err := s.repo.UpdateAttempt(ctx, a); err != nil {
		log.Error("failed to record dispatch outcome", zap.Error(err))
		return
	}

	if a.Status == StatusCompleted {
		if err := s.orders.MarkAsPaid(ctx, a.OrderID); err != nil {
			log.Error("failed to mark order as paid", zap.Error(err))
		}
	}
}

func validationSummary(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
	}
	return strings.Join(fields, ", ")
}
