package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Success loading from env", func(t *testing.T) {
		t.Setenv("DB_HOST", "localhost")
		t.Setenv("DB_USER", "testuser")
		t.Setenv("DB_PASSWORD", "testpass")
		t.Setenv("DB_NAME", "testdb")
		t.Setenv("DB_PORT", "5432")
		t.Setenv("APP_PORT", "9090")
		t.Setenv("APP_ENV", "test")
		t.Setenv("PAYMENT_TIMEOUT", "10s")
		t.Setenv("CALLBACK_POLICY", "nonce")
		t.Setenv("PAYMENT_SANDBOX", "false")
		t.Setenv("NOTIFY_WORKERS", "3")
		t.Setenv("INTERNAL_SECRET_KEY", "svc")

		cfg := LoadConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, "localhost", cfg.DBHost)
		assert.Equal(t, "testuser", cfg.DBUser)
		assert.Equal(t, "9090", cfg.AppPort)
		assert.Equal(t, "test", cfg.AppEnv)
		assert.Equal(t, 10*time.Second, cfg.PaymentTimeout)
		assert.Equal(t, "nonce", cfg.CallbackPolicy)
		assert.False(t, cfg.Sandbox)
		assert.Equal(t, 3, cfg.NotifyWorkers)
		assert.Equal(t, "svc", cfg.InternalSecret)
	})

	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("DB_HOST", "localhost")
		t.Setenv("APP_PORT", "")
		t.Setenv("PAYMENT_TIMEOUT", "garbage")
		t.Setenv("CALLBACK_POLICY", "")
		t.Setenv("PAYMENT_SANDBOX", "")
		t.Setenv("MANUAL_NODE_ID", "not-a-number")

		cfg := LoadConfig()

		assert.Equal(t, "8080", cfg.AppPort)
		assert.Equal(t, 15*time.Second, cfg.PaymentTimeout)
		assert.Equal(t, "transition", cfg.CallbackPolicy)
		assert.True(t, cfg.Sandbox)
		assert.Equal(t, int64(1), cfg.ManualNodeID)
		assert.Equal(t, 24*time.Hour, cfg.NonceTTL)
	})
}

func TestProviderCache(t *testing.T) {
	calls := 0
	secret := "first"
	loader := func(provider string) (ProviderConfig, error) {
		calls++
		if provider == "missing" {
			return ProviderConfig{}, ErrProviderNotConfigured
		}
		return ProviderConfig{Provider: provider, SecretKey: secret}, nil
	}

	cache := NewProviderCache(loader, time.Minute)

	t.Run("CachesLookups", func(t *testing.T) {
		pc, err := cache.Lookup(ProviderWallet)
		require.NoError(t, err)
		assert.Equal(t, "first", pc.SecretKey)

		_, err = cache.Lookup(ProviderWallet)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("InvalidateReloads", func(t *testing.T) {
		secret = "rotated"
		cache.Invalidate(ProviderWallet)

		pc, err := cache.Lookup(ProviderWallet)
		require.NoError(t, err)
		assert.Equal(t, "rotated", pc.SecretKey)
		assert.Equal(t, 2, calls)
	})

	t.Run("LoaderErrorNotCached", func(t *testing.T) {
		_, err := cache.Lookup("missing")
		assert.True(t, errors.Is(err, ErrProviderNotConfigured))
		_, err = cache.Lookup("missing")
		assert.Error(t, err)
		assert.Equal(t, 4, calls)
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		short := NewProviderCache(loader, 10*time.Millisecond)
		before := calls
		_, _ = short.Lookup(ProviderCard)
		time.Sleep(30 * time.Millisecond)
		_, _ = short.Lookup(ProviderCard)
		assert.Equal(t, before+2, calls)
	})
}

func TestEnvLoader(t *testing.T) {
	t.Setenv("BANK_REDIRECT_TMN_CODE", "TMN01")
	t.Setenv("BANK_REDIRECT_HASH_SECRET", "hash")
	t.Setenv("BANK_REDIRECT_BASE_URL", "")
	t.Setenv("WALLET_ENDPOINT", "https://wallet.local/create")
	t.Setenv("CARD_BASE_URL", "https://card.local/")

	load := EnvLoader(true)

	bank, err := load(ProviderBankRedirect)
	require.NoError(t, err)
	assert.Equal(t, "TMN01", bank.MerchantCode)
	assert.Equal(t, bankRedirectSandboxURL, bank.BaseURL)

	wallet, err := load(ProviderWallet)
	require.NoError(t, err)
	assert.Equal(t, "https://wallet.local/create", wallet.BaseURL)

	card, err := load(ProviderCard)
	require.NoError(t, err)
	assert.Equal(t, "https://card.local", card.BaseURL)

	_, err = load("paypal")
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	live, err := EnvLoader(false)(ProviderBankRedirect)
	require.NoError(t, err)
	assert.Equal(t, bankRedirectLiveURL, live.BaseURL)
}
