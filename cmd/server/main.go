package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payhub-be/internal/auth"
	"payhub-be/internal/config"
	"payhub-be/internal/db"
	"payhub-be/internal/kv"
	"payhub-be/internal/logger"
	"payhub-be/internal/metrics"
	"payhub-be/internal/middleware"
	"payhub-be/internal/notification"
	"payhub-be/internal/order"
	"payhub-be/internal/payment"
	"payhub-be/internal/payment/webhook"
	"payhub-be/internal/refund"
	"payhub-be/internal/transport"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	policyTransition = "transition"
	policyNonce      = "nonce"

	memoryNonceCapacity = 100_000
	notifyTimeout       = 5 * time.Second
)

func main() {
	cfg := config.LoadConfig()

	log := logger.L()
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.L()

	database := db.InitDB(cfg)
	defer database.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		client, err := kv.NewRedisClient(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		rdb = client
		log.Info("redis connected", zap.String("addr", cfg.RedisAddr))
	}

	gateways, err := newGateways(cfg)
	if err != nil {
		return err
	}

	counters := metrics.NewRegistry()
	notifier := notification.NewAsync(newNotifier(rdb), cfg.NotifyWorkers, notifyTimeout)
	defer notifier.Wait()

	nonces, err := callbackNonces(cfg, rdb)
	if err != nil {
		return err
	}

	orders := order.NewService(order.NewRepository(database))
	attempts := payment.NewRepository(database)
	paymentSvc := payment.NewService(attempts, orders, gateways, counters)
	reconciler := payment.NewReconciler(attempts, orders, gateways, notifier, payment.NewKeyedMutex(), nonces, counters)
	refundSvc := refund.NewService(refund.NewRepository(database), attempts, reconciler, notifier, counters)

	limiter := middleware.NewRateLimiter(cfg.InternalSecret)
	go limiter.Run(ctx)

	router := transport.NewRouter(transport.RouterConfig{
		Payments: transport.NewPaymentHandler(paymentSvc),
		Refunds:  transport.NewRefundHandler(refundSvc),
		Webhooks: webhook.NewWebhookHandler(reconciler),
		Tokens:   auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Limiter:  limiter,
		Metrics:  counters,
		DB:       database,
	})

	srv := newServer(cfg, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("payment server listening",
			zap.String("addr", srv.Addr),
			zap.String("callback_policy", cfg.CallbackPolicy),
			zap.Bool("sandbox", cfg.Sandbox),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.PaymentTimeout + 15*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func newGateways(cfg *config.Config) (payment.Registry, error) {
	creds := config.NewProviderCache(config.EnvLoader(cfg.Sandbox), cfg.ProviderCacheTTL)

	manual, err := payment.NewManualGateway(cfg.ManualNodeID)
	if err != nil {
		return nil, err
	}

	return payment.NewRegistry(
		payment.NewBankRedirectGateway(creds),
		payment.NewWalletGateway(creds, cfg.PaymentTimeout),
		payment.NewCardGateway(creds, cfg.PaymentTimeout),
		manual,
	), nil
}

func newNotifier(rdb *redis.Client) notification.Notifier {
	if rdb == nil {
		return notification.LogNotifier{}
	}
	return notification.NewRedisNotifier(rdb)
}

// callbackNonces picks the replay policy. A nil store means replays are
// detected from the recorded status alone.
func callbackNonces(cfg *config.Config, rdb *redis.Client) (payment.NonceStore, error) {
	switch cfg.CallbackPolicy {
	case "", policyTransition:
		return nil, nil
	case policyNonce:
		if rdb != nil {
			return kv.NewNonceStore(rdb, cfg.NonceTTL), nil
		}
		logger.L().Warn("nonce policy without redis, replays are only tracked in this process")
		return payment.NewMemoryNonceStore(memoryNonceCapacity, cfg.NonceTTL), nil
	default:
		return nil, errors.New("unknown CALLBACK_POLICY " + cfg.CallbackPolicy)
	}
}
