package transport

import (
	"context"
	"net/http"
	"time"

	"payhub-be/internal/logger"
	"payhub-be/internal/metrics"
	"payhub-be/internal/middleware"
	"payhub-be/internal/payment/webhook"
	"payhub-be/internal/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type RouterConfig struct {
	Payments *PaymentHandler
	Refunds  *RefundHandler
	Webhooks *webhook.Handler
	Tokens   middleware.TokenParser
	Limiter  *middleware.RateLimiter
	Metrics  *metrics.Registry
	DB       Pinger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(chimw.Recoverer)

	r.Get("/health", health(cfg.DB))
	r.Get("/metrics", cfg.Metrics.Handler())

	// provider callbacks are authenticated by their signatures
	r.Group(func(r chi.Router) {
		r.Use(cfg.Limiter.Middleware)

		r.Get("/webhooks/bank-redirect/ipn", cfg.Webhooks.BankIPN)
		r.Get("/payments/bank-redirect/return", cfg.Webhooks.BankReturn)
		r.Post("/webhooks/wallet/ipn", cfg.Webhooks.WalletIPN)
		r.Post("/webhooks/card", cfg.Webhooks.CardWebhook)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(cfg.Tokens))
		r.Use(cfg.Limiter.Middleware)

		r.Post("/payments/{paymentID}/callback", cfg.Webhooks.CompactCallback)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Post("/payments", cfg.Payments.Create)
			r.Post("/payments/qr", cfg.Payments.CreateQR)
			r.Get("/payments/{paymentID}", cfg.Payments.Get)
			r.Get("/payments/{paymentID}/refunds", cfg.Refunds.ListByPayment)
			r.Post("/refunds", cfg.Refunds.Create)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(utils.RoleAdmin))

			r.Post("/refunds/{refundID}/approve", cfg.Refunds.Approve)
			r.Post("/refunds/{refundID}/reject", cfg.Refunds.Reject)
			r.Post("/refunds/{refundID}/complete", cfg.Refunds.Complete)
		})
	})

	return r
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := db.PingContext(ctx); err != nil {
				logger.FromCtx(ctx).Warn("health check failed", zap.Error(err))
				utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "UNAVAILABLE"})
				return
			}
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	}
}
