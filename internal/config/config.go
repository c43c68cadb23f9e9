package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderBankRedirect = "bank_redirect"
	ProviderWallet       = "wallet"
	ProviderCard         = "card"
)

const (
	bankRedirectSandboxURL = "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"
	bankRedirectLiveURL    = "https://pay.vnpay.vn/vpcpay.html"
	walletSandboxURL       = "https://test-payment.momo.vn/v2/gateway/api/create"
	walletLiveURL          = "https://payment.momo.vn/v2/gateway/api/create"
	cardBaseURL            = "https://api.stripe.com"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	JWTSecret  string
	TokenTTL   time.Duration

	// InternalSecret admits trusted services into the internal rate tier.
	InternalSecret string

	RedisAddr     string
	RedisPassword string

	PaymentTimeout   time.Duration
	ProviderCacheTTL time.Duration
	CallbackPolicy   string
	NonceTTL         time.Duration
	Sandbox          bool
	ManualNodeID     int64

	NotifyWorkers   int
	ShutdownTimeout time.Duration
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:           os.Getenv("DB_HOST"),
		DBUser:           os.Getenv("DB_USER"),
		DBPassword:       os.Getenv("DB_PASSWORD"),
		DBName:           os.Getenv("DB_NAME"),
		DBPort:           os.Getenv("DB_PORT"),
		AppPort:          getEnv("APP_PORT", "8080"),
		AppEnv:           os.Getenv("APP_ENV"),
		JWTSecret:        os.Getenv("SECRET_KEY"),
		TokenTTL:         getDuration("TOKEN_TTL", 24*time.Hour),
		InternalSecret:   os.Getenv("INTERNAL_SECRET_KEY"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		PaymentTimeout:   getDuration("PAYMENT_TIMEOUT", 15*time.Second),
		ProviderCacheTTL: getDuration("PROVIDER_CACHE_TTL", 5*time.Minute),
		CallbackPolicy:   getEnv("CALLBACK_POLICY", "transition"),
		NonceTTL:         getDuration("CALLBACK_NONCE_TTL", 24*time.Hour),
		Sandbox:          getBool("PAYMENT_SANDBOX", true),
		ManualNodeID:     getInt("MANUAL_NODE_ID", 1),
		NotifyWorkers:    int(getInt("NOTIFY_WORKERS", 8)),
		ShutdownTimeout:  getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
