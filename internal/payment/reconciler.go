package payment

import (
	"context"
	"errors"
	"time"

	"payhub-be/internal/config"
	"payhub-be/internal/logger"
	"payhub-be/internal/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	NotifyKindPaymentCompleted = "payment_completed"

	maxUpdateRetries = 3
)

type Reconciler interface {
	// HandleCallback applies a compact callback: the signature covers
	// paymentId, status and transactionId.
	HandleCallback(ctx context.Context, paymentID, sig, providerStatus, transactionID string) *PaymentResult
	// Reconcile verifies and applies a normalized provider callback.
	Reconcile(ctx context.Context, cb *Callback) *PaymentResult
	// Transition moves an attempt to target under the attempt lock. Moving
	// to the current status is a no-op; anything else that breaks the
	// status order returns ErrInvalidTransition.
	Transition(ctx context.Context, paymentID string, target Status) (*Attempt, error)
}

type reconciler struct {
	repo     Repository
	orders   OrderStore
	gateways Registry
	notifier Notifier
	locks    *KeyedMutex
	nonces   NonceStore
	counters *metrics.Registry
	now      func() time.Time
}

// NewReconciler builds the callback reconciler. A nil nonces store selects
// the transition policy: replays are recognized only by the recorded status.
func NewReconciler(
	repo Repository,
	orders OrderStore,
	gateways Registry,
	notifier Notifier,
	locks *KeyedMutex,
	nonces NonceStore,
	counters *metrics.Registry,
) Reconciler {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &reconciler{
		repo:     repo,
		orders:   orders,
		gateways: gateways,
		notifier: notifier,
		locks:    locks,
		nonces:   nonces,
		counters: counters,
		now:      time.Now,
	}
}

func (r *reconciler) HandleCallback(ctx context.Context, paymentID, sig, providerStatus, transactionID string) *PaymentResult {
	return r.Reconcile(ctx, &Callback{
		PaymentID:     paymentID,
		TransactionID: transactionID,
		Status:        ParseStatus(providerStatus),
		RawStatus:     providerStatus,
		Signature:     sig,
	})
}

func (r *reconciler) Reconcile(ctx context.Context, cb *Callback) (res *PaymentResult) {
	log := logger.ForPayment(ctx, cb.PaymentID, "").With(
		zap.String("reference", cb.Reference),
		zap.String("callback_status", string(cb.Status)),
	)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("unexpected callback failure", zap.Any("panic", rec), zap.Stack("stack"))
			res = failure(KindUnexpected, msg("", msgUnexpected))
		}
	}()

	a, fail := r.lookup(ctx, cb)
	if fail != nil {
		r.counters.Inc("callbacks_rejected")
		return fail
	}
	log = logger.ForPayment(ctx, a.PaymentID, a.OrderID).With(
		zap.String("method", string(a.Method)),
		zap.String("callback_status", string(cb.Status)),
	)

	if fail := r.verify(cb, a, log); fail != nil {
		return fail
	}

	if cb.Status == StatusUnknown {
		r.counters.Inc("callbacks_rejected")
		log.Warn("callback carries unknown status")
		return withStatus(failure(KindValidation, msg("", msgUnknownStatus)), a)
	}

	if cb.Amount != nil && !amountMatches(a, *cb.Amount) {
		r.counters.Inc("callbacks_rejected")
		log.Warn("callback amount mismatch",
			zap.String("expected", a.Amount.String()),
			zap.String("reported", cb.Amount.String()),
		)
		res := withStatus(failure(KindValidation, msg("", msgAmountMismatch)), a)
		res.Reason = ReasonAmountMismatch
		return res
	}

	if r.nonces != nil {
		key := callbackNonce(a.PaymentID, cb)
		first, err := r.nonces.Claim(ctx, key)
		if err != nil {
			log.Error("failed to claim callback nonce", zap.Error(err))
			return failure(KindUnexpected, msg("", msgUnexpected))
		}
		if !first {
			r.counters.Inc("callbacks_duplicate")
			log.Info("duplicate callback ignored")
			return duplicate(a)
		}
		// a conflicting or failed callback was not applied, so a replay is
		// evaluated again instead of being reported as a duplicate
		defer func() {
			if res != nil && (res.ErrorKind == KindUnexpected || res.Reason == ReasonConflict) {
				if err := r.nonces.Release(ctx, key); err != nil {
					log.Warn("failed to release callback nonce", zap.Error(err))
				}
			}
		}()
	}

	updated, applied, err := r.apply(ctx, a.PaymentID, cb.Status, cb.TransactionID, cb.Message)
	switch {
	case errors.Is(err, ErrInvalidTransition):
		r.counters.Inc("callbacks_conflict")
		log.Warn("callback conflicts with recorded status", zap.String("recorded_status", string(updated.Status)))
		res := withStatus(failure(KindValidation, msg("", msgStatusConflict)), updated)
		res.Reason = ReasonConflict
		return res
	case err != nil:
		log.Error("failed to apply callback", zap.Error(err))
		return failure(KindUnexpected, msg("", msgUnexpected))
	case !applied:
		r.counters.Inc("callbacks_duplicate")
		log.Info("callback already applied")
		return duplicate(updated)
	}

	r.counters.Inc("callbacks_accepted")
	log.Info("callback applied", zap.String("transaction_id", updated.TransactionID))

	if updated.Status == StatusCompleted {
		r.completed(ctx, updated, log)
	}

	return &PaymentResult{
		IsSuccess:     true,
		PaymentID:     updated.PaymentID,
		TransactionID: updated.TransactionID,
		Status:        updated.Status,
		Message:       msg("", msgCallbackApplied),
	}
}

func (r *reconciler) Transition(ctx context.Context, paymentID string, target Status) (*Attempt, error) {
	a, _, err := r.apply(ctx, paymentID, target, "", "")
	return a, err
}

func (r *reconciler) lookup(ctx context.Context, cb *Callback) (*Attempt, *PaymentResult) {
	var (
		a   *Attempt
		err error
	)
	switch {
	case cb.PaymentID != "":
		a, err = r.repo.FindAttempt(ctx, cb.PaymentID)
	case cb.Reference != "":
		a, err = r.repo.FindAttemptByReference(ctx, cb.Method, cb.Reference)
	default:
		err = ErrAttemptNotFound
	}

	if errors.Is(err, ErrAttemptNotFound) {
		logger.FromCtx(ctx).Warn("callback for unknown payment attempt",
			zap.String("payment_id", cb.PaymentID),
			zap.String("reference", cb.Reference),
		)
		res := failure(KindValidation, msg("", msgAttemptNotFound))
		res.Reason = ReasonNotFound
		return nil, res
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to load payment attempt", zap.Error(err))
		return nil, failure(KindUnexpected, msg("", msgUnexpected))
	}
	return a, nil
}

// verify checks cb against the gateway recorded on the attempt. Callbacks
// that name a different provider are treated as forged.
func (r *reconciler) verify(cb *Callback, a *Attempt, log *zap.Logger) *PaymentResult {
	gw, ok := r.gateways[a.Method]
	if !ok {
		log.Error("no gateway registered for attempt method")
		return withStatus(failure(KindConfiguration, msg("", msgMissingConfig)), a)
	}

	err := ErrInvalidSignature
	if cb.Method == "" || cb.Method == a.Method {
		err = gw.VerifyCallback(cb)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMissingConfiguration), errors.Is(err, config.ErrProviderNotConfigured):
		log.Error("cannot verify callback, provider not configured", zap.Error(err))
		return withStatus(failure(KindConfiguration, msg("", msgMissingConfig)), a)
	case errors.Is(err, ErrCallbackUnsupported):
		r.counters.Inc("callbacks_rejected")
		log.Warn("callback received for method without callbacks")
		return withStatus(failure(KindValidation, msg("", msgMethodNotSupported)), a)
	}

	r.counters.Inc("callbacks_rejected_signature")
	log.Warn("callback signature rejected",
		zap.Bool("security_event", true),
		zap.String("callback_method", string(cb.Method)),
		zap.Error(err),
	)
	res := withStatus(failure(KindSignature, msg("", msgInvalidSignature)), a)
	res.Reason = ReasonInvalidSignature
	return res
}

// apply performs the guarded status change. The returned attempt is the
// stored state after the call; applied is false for a no-op.
func (r *reconciler) apply(ctx context.Context, paymentID string, target Status, txID, message string) (*Attempt, bool, error) {
	unlock := r.locks.Lock(paymentID)
	defer unlock()

	for i := 0; ; i++ {
		a, err := r.repo.FindAttempt(ctx, paymentID)
		if err != nil {
			return nil, false, err
		}
		if a.Status == target {
			return a, false, nil
		}
		if !a.Status.CanTransitionTo(target) {
			return a, false, ErrInvalidTransition
		}

		a.Status = target
		if txID != "" {
			a.TransactionID = txID
		}
		if target == StatusFailed || target == StatusCancelled {
			a.ErrorMessage = message
		}
		if target.IsTerminal() && target != StatusRefunded {
			a.CompletedAt = stamp(r.now())
		}

		err = r.repo.UpdateAttempt(ctx, a)
		if errors.Is(err, ErrConcurrentUpdate) && i < maxUpdateRetries {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return a, true, nil
	}
}

// completed runs the side effects of a completed payment. Neither failure
// affects the callback outcome.
func (r *reconciler) completed(ctx context.Context, a *Attempt, log *zap.Logger) {
	if err := r.orders.MarkAsPaid(ctx, a.OrderID); err != nil {
		log.Error("failed to mark order as paid", zap.Error(err))
	}

	if r.notifier == nil {
		return
	}
	body := msg("", msgNotifyBody, a.OrderID, a.Amount.String(), a.Currency)
	if err := r.notifier.Notify(ctx, a.UserID, msg("", msgNotifyTitle), body, NotifyKindPaymentCompleted); err != nil {
		log.Warn("failed to send payment notification", zap.Error(err))
	}
}

// amountMatches compares at the precision the provider reports: whole
// units for the wallet, two decimals otherwise.
func amountMatches(a *Attempt, reported decimal.Decimal) bool {
	places := int32(2)
	if a.Method == MethodWallet {
		places = 0
	}
	return a.Amount.Truncate(places).Equal(reported.Truncate(places))
}

func withStatus(res *PaymentResult, a *Attempt) *PaymentResult {
	res.PaymentID = a.PaymentID
	res.Status = a.Status
	return res
}

func duplicate(a *Attempt) *PaymentResult {
	return &PaymentResult{
		IsSuccess:     true,
		PaymentID:     a.PaymentID,
		TransactionID: a.TransactionID,
		Status:        a.Status,
		Message:       msg("", msgAlreadyProcessed),
		Reason:        ReasonDuplicate,
	}
}
