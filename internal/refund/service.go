package refund

import (
	"context"
	"errors"
	"strings"
	"time"

	"payhub-be/internal/logger"
	"payhub-be/internal/metrics"
	"payhub-be/internal/payment"
	"payhub-be/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	NotifyKindRequested = "refund_requested"
	NotifyKindApproved  = "refund_approved"
	NotifyKindRejected  = "refund_rejected"
	NotifyKindCompleted = "refund_completed"

	referencePrefix = "RF"
)

type AttemptStore interface {
	FindAttempt(ctx context.Context, paymentID string) (*payment.Attempt, error)
}

// Transitioner moves a fully refunded attempt to Refunded.
type Transitioner interface {
	Transition(ctx context.Context, paymentID string, target payment.Status) (*payment.Attempt, error)
}

type Service interface {
	RequestRefund(ctx context.Context, req Request) *Result
	Approve(ctx context.Context, id, adminID string) *Result
	Reject(ctx context.Context, id, adminID, note string) *Result
	Complete(ctx context.Context, id, adminID string) *Result
	ListByPayment(ctx context.Context, paymentID, userID string, admin bool) ([]*Refund, error)
}

type service struct {
	repo     Repository
	attempts AttemptStore
	payments Transitioner
	notifier payment.Notifier
	locks    *payment.KeyedMutex
	validate *validator.Validate
	counters *metrics.Registry
	now      func() time.Time
}

func NewService(repo Repository, attempts AttemptStore, payments Transitioner, notifier payment.Notifier, counters *metrics.Registry) Service {
	return &service{
		repo:     repo,
		attempts: attempts,
		payments: payments,
		notifier: notifier,
		locks:    payment.NewKeyedMutex(),
		validate: validator.New(),
		counters: counters,
		now:      time.Now,
	}
}

// RequestRefund records a pending refund. No provider refund API is called;
// the request is done once it is durably stored.
func (s *service) RequestRefund(ctx context.Context, req Request) *Result {
	log := logger.ForPayment(ctx, req.PaymentID, req.OrderID)

	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.Reason = strings.TrimSpace(req.Reason)

	if err := s.validate.Struct(req); err != nil {
		log.Info("refund request rejected", zap.Error(err))
		return failure(payment.KindValidation, msg(req.Locale, msgInvalidRequest, fieldSummary(err)))
	}
	if !req.Amount.IsPositive() {
		return failure(payment.KindValidation, msg(req.Locale, msgInvalidAmount))
	}

	// serialize per payment so two requests cannot both pass the bound check
	unlock := s.locks.Lock(req.PaymentID)
	defer unlock()

	a, err := s.attempts.FindAttempt(ctx, req.PaymentID)
	if errors.Is(err, payment.ErrAttemptNotFound) {
		return failure(payment.KindValidation, msg(req.Locale, msgPaymentNotFound)).withReason(payment.ReasonNotFound)
	}
	if err != nil {
		log.Error("failed to load payment attempt", zap.Error(err))
		return failure(payment.KindUnexpected, msg(req.Locale, msgUnexpected))
	}

	if a.OrderID != req.OrderID || (!req.RequestedByAdmin && a.UserID != req.RequestedBy) {
		log.Info("refund requested for payment of another order or user", zap.String("user_id", req.RequestedBy))
		return failure(payment.KindValidation, msg(req.Locale, msgPaymentNotFound)).withReason(payment.ReasonNotFound)
	}
	if a.Status != payment.StatusCompleted {
		return failure(payment.KindValidation, msg(req.Locale, msgNotRefundable))
	}

	committed, err := s.repo.SumByStatus(ctx, a.PaymentID, activeStatuses...)
	if err != nil {
		log.Error("failed to total refunds", zap.Error(err))
		return failure(payment.KindUnexpected, msg(req.Locale, msgUnexpected))
	}
	refundable := a.Amount.Sub(committed)
	if req.Amount.GreaterThan(refundable) {
		log.Info("refund exceeds refundable amount",
			zap.String("requested", req.Amount.String()),
			zap.String("refundable", refundable.String()),
		)
		return failure(payment.KindValidation, msg(req.Locale, msgExceedsAmount, refundable.String()))
	}

	rf := &Refund{
		ID:          uuid.New().String(),
		Reference:   utils.GenerateReference(referencePrefix),
		PaymentID:   a.PaymentID,
		OrderID:     a.OrderID,
		Amount:      req.Amount,
		Currency:    a.Currency,
		Reason:      req.Reason,
		Status:      StatusPending,
		RequestedBy: req.RequestedBy,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Save(ctx, rf); err != nil {
		log.Error("failed to save refund request", zap.Error(err))
		return failure(payment.KindUnexpected, msg(req.Locale, msgUnexpected))
	}

	s.counters.Inc("refunds_requested")
	log.Info("refund requested",
		zap.String("refund_id", rf.ID),
		zap.String("amount", rf.Amount.String()),
	)
	s.notify(ctx, a.UserID, rf, NotifyKindRequested, msgRequested)

	return &Result{IsSuccess: true, Refund: rf, Message: msg(req.Locale, msgRequested)}
}

func (s *service) Approve(ctx context.Context, id, adminID string) *Result {
	return s.move(ctx, id, adminID, "", StatusApproved)
}

func (s *service) Reject(ctx context.Context, id, adminID, note string) *Result {
	return s.move(ctx, id, adminID, note, StatusRejected)
}

// Complete marks an approved refund as paid out. Once completed refunds
// cover the whole payment, the payment itself becomes Refunded.
func (s *service) Complete(ctx context.Context, id, adminID string) *Result {
	return s.move(ctx, id, adminID, "", StatusCompleted)
}

func (s *service) ListByPayment(ctx context.Context, paymentID, userID string, admin bool) ([]*Refund, error) {
	if !admin {
		a, err := s.attempts.FindAttempt(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		if a.UserID != userID {
			return nil, payment.ErrAttemptNotFound
		}
	}
	return s.repo.ListByPayment(ctx, paymentID)
}

func (s *service) move(ctx context.Context, id, adminID, note string, target Status) *Result {
	log := logger.FromCtx(ctx).With(zap.String("refund_id", id), zap.String("target", string(target)))

	rf, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrRefundNotFound) {
		return failure(payment.KindValidation, msg("", msgRefundNotFound)).withReason(payment.ReasonNotFound)
	}
	if err != nil {
		log.Error("failed to load refund", zap.Error(err))
		return failure(payment.KindUnexpected, msg("", msgUnexpected))
	}

	unlock := s.locks.Lock(rf.PaymentID)
	defer unlock()

	// reload under the lock
	rf, err = s.repo.FindByID(ctx, id)
	if err != nil {
		log.Error("failed to reload refund", zap.Error(err))
		return failure(payment.KindUnexpected, msg("", msgUnexpected))
	}
	if target == StatusCompleted && rf.Status == StatusCompleted {
		return s.resettle(ctx, rf, log)
	}
	if !rf.Status.CanTransitionTo(target) {
		return failure(payment.KindValidation, msg("", msgInvalidState, rf.Status, target)).withReason(payment.ReasonConflict)
	}

	rf.Status = target
	rf.ProcessedBy = adminID
	rf.ProcessedAt = stamp(s.now())
	if note != "" {
		rf.Note = note
	}

	if err := s.repo.Update(ctx, rf); err != nil {
		log.Error("failed to update refund", zap.Error(err))
		return failure(payment.KindUnexpected, msg("", msgUnexpected))
	}

	s.counters.Inc("refunds_" + string(target))
	log.Info("refund updated", zap.String("admin_id", adminID))

	a, err := s.attempts.FindAttempt(ctx, rf.PaymentID)
	if err != nil {
		log.Error("failed to load payment attempt for refund", zap.Error(err))
		if target == StatusCompleted {
			return unsettled(rf)
		}
		return &Result{IsSuccess: true, Refund: rf, Message: msg("", resultKey(target))}
	}

	var settleErr error
	if target == StatusCompleted {
		settleErr = s.settle(ctx, a, log)
	}
	s.notify(ctx, a.UserID, rf, notifyKind(target), resultKey(target))

	if settleErr != nil {
		return unsettled(rf)
	}
	return &Result{IsSuccess: true, Refund: rf, Message: msg("", resultKey(target))}
}

// resettle retries the payment side of an already completed refund. The
// refund row is left as is.
func (s *service) resettle(ctx context.Context, rf *Refund, log *zap.Logger) *Result {
	a, err := s.attempts.FindAttempt(ctx, rf.PaymentID)
	if err != nil {
		log.Error("failed to load payment attempt for refund", zap.Error(err))
		return unsettled(rf)
	}
	if err := s.settle(ctx, a, log); err != nil {
		return unsettled(rf)
	}
	return &Result{IsSuccess: true, Refund: rf, Message: msg("", msgCompleted)}
}

// settle marks the payment Refunded once completed refunds reach its amount.
func (s *service) settle(ctx context.Context, a *payment.Attempt, log *zap.Logger) error {
	if a.Status == payment.StatusRefunded {
		return nil
	}

	refunded, err := s.repo.SumByStatus(ctx, a.PaymentID, StatusCompleted)
	if err != nil {
		log.Error("failed to total completed refunds", zap.Error(err))
		return err
	}
	if refunded.LessThan(a.Amount) {
		return nil
	}

	if _, err := s.payments.Transition(ctx, a.PaymentID, payment.StatusRefunded); err != nil {
		log.Error("failed to mark payment refunded", zap.String("payment_id", a.PaymentID), zap.Error(err))
		return err
	}
	log.Info("payment fully refunded", zap.String("payment_id", a.PaymentID))
	return nil
}

// unsettled reports a completed refund whose payment could not be marked
// Refunded. Completing it again retries the payment update.
func unsettled(rf *Refund) *Result {
	res := failure(payment.KindUnexpected, msg("", msgUnsettled))
	res.Refund = rf
	return res
}

func (s *service) notify(ctx context.Context, userID string, rf *Refund, kind, key string) {
	if s.notifier == nil {
		return
	}
	body := msg("", msgNotifyBody, rf.Reference, msg("", key))
	if err := s.notifier.Notify(ctx, userID, msg("", msgNotifyTitle), body, kind); err != nil {
		logger.FromCtx(ctx).Warn("failed to send refund notification", zap.String("refund_id", rf.ID), zap.Error(err))
	}
}

func notifyKind(target Status) string {
	switch target {
	case StatusApproved:
		return NotifyKindApproved
	case StatusRejected:
		return NotifyKindRejected
	}
	return NotifyKindCompleted
}

func resultKey(target Status) string {
	switch target {
	case StatusApproved:
		return msgApproved
	case StatusRejected:
		return msgRejected
	}
	return msgCompleted
}

func fieldSummary(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return strings.Join(fields, ", ")
}

func stamp(t time.Time) *time.Time {
	return &t
}
