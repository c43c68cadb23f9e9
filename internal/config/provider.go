package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var ErrProviderNotConfigured = errors.New("provider not configured")

// ProviderConfig holds the credentials of one payment provider.
//
// MerchantCode is the bank terminal code or the wallet partner code.
// AccessKey is only used by the wallet provider. SecretKey is the HMAC
// secret (bank, wallet) or the bearer secret (card).
type ProviderConfig struct {
	Provider      string
	MerchantCode  string
	AccessKey     string
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	StoreID       string
	PartnerName   string
	Sandbox       bool
}

// Credentials resolves provider credentials at call time.
type Credentials interface {
	Lookup(provider string) (ProviderConfig, error)
}

// Loader reads a provider's credentials from the backing source.
type Loader func(provider string) (ProviderConfig, error)

// ProviderCache is a TTL cache in front of a Loader. Entries expire on
// their own and can be dropped explicitly after a credential rotation.
type ProviderCache struct {
	load  Loader
	cache *expirable.LRU[string, ProviderConfig]
}

func NewProviderCache(load Loader, ttl time.Duration) *ProviderCache {
	return &ProviderCache{
		load:  load,
		cache: expirable.NewLRU[string, ProviderConfig](16, nil, ttl),
	}
}

func (c *ProviderCache) Lookup(provider string) (ProviderConfig, error) {
	if pc, ok := c.cache.Get(provider); ok {
		return pc, nil
	}

	pc, err := c.load(provider)
	if err != nil {
		return ProviderConfig{}, err
	}

	c.cache.Add(provider, pc)
	return pc, nil
}

func (c *ProviderCache) Invalidate(provider string) {
	c.cache.Remove(provider)
}

func (c *ProviderCache) Purge() {
	c.cache.Purge()
}

// Static serves fixed credentials. Useful for tests and one-off tools.
type Static map[string]ProviderConfig

func (s Static) Lookup(provider string) (ProviderConfig, error) {
	pc, ok := s[provider]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}
	return pc, nil
}

// EnvLoader reads provider credentials from the environment. Base URLs
// default to the sandbox or live endpoint depending on sandbox.
func EnvLoader(sandbox bool) Loader {
	return func(provider string) (ProviderConfig, error) {
		switch provider {
		case ProviderBankRedirect:
			return ProviderConfig{
				Provider:     provider,
				MerchantCode: os.Getenv("BANK_REDIRECT_TMN_CODE"),
				SecretKey:    os.Getenv("BANK_REDIRECT_HASH_SECRET"),
				BaseURL:      pick(os.Getenv("BANK_REDIRECT_BASE_URL"), sandbox, bankRedirectSandboxURL, bankRedirectLiveURL),
				Sandbox:      sandbox,
			}, nil
		case ProviderWallet:
			return ProviderConfig{
				Provider:     provider,
				MerchantCode: os.Getenv("WALLET_PARTNER_CODE"),
				AccessKey:    os.Getenv("WALLET_ACCESS_KEY"),
				SecretKey:    os.Getenv("WALLET_SECRET_KEY"),
				BaseURL:      pick(os.Getenv("WALLET_ENDPOINT"), sandbox, walletSandboxURL, walletLiveURL),
				StoreID:      os.Getenv("WALLET_STORE_ID"),
				PartnerName:  os.Getenv("WALLET_PARTNER_NAME"),
				Sandbox:      sandbox,
			}, nil
		case ProviderCard:
			return ProviderConfig{
				Provider:      provider,
				SecretKey:     os.Getenv("CARD_SECRET_KEY"),
				WebhookSecret: os.Getenv("CARD_WEBHOOK_SECRET"),
				BaseURL:       strings.TrimRight(pick(os.Getenv("CARD_BASE_URL"), sandbox, cardBaseURL, cardBaseURL), "/"),
				Sandbox:       sandbox,
			}, nil
		}
		return ProviderConfig{}, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}
}

func pick(explicit string, sandbox bool, sandboxURL, liveURL string) string {
	if explicit != "" {
		return explicit
	}
	if sandbox {
		return sandboxURL
	}
	return liveURL
}
