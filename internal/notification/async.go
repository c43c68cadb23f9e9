package notification

import (
	"context"
	"sync"
	"time"

	"payhub-be/internal/logger"

	"go.uber.org/zap"
)

// Async delivers notifications in the background with bounded concurrency.
// Notify never blocks on delivery and always returns nil.
type Async struct {
	next    Notifier
	sem     chan struct{}
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, workers int, timeout time.Duration) *Async {
	if workers <= 0 {
		workers = 1
	}
	return &Async{
		next:    next,
		sem:     make(chan struct{}, workers),
		timeout: timeout,
	}
}

func (a *Async) Notify(ctx context.Context, userID, title, message, kind string) error {
	// keep request-scoped values, drop the request's cancellation
	ctx = context.WithoutCancel(ctx)
	log := logger.FromCtx(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		a.sem <- struct{}{}
		defer func() { <-a.sem }()

		sendCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		if err := a.next.Notify(sendCtx, userID, title, message, kind); err != nil {
			log.Warn("notification delivery failed",
				zap.String("user_id", userID),
				zap.String("kind", kind),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until every queued notification has been attempted.
func (a *Async) Wait() {
	a.wg.Wait()
}
