package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// NonceStore records processed callbacks so replays can be recognized.
type NonceStore interface {
	// Claim returns true the first time key is seen within the TTL.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key so a failed callback can be retried.
	Release(ctx context.Context, key string) error
}

// callbackNonce identifies a callback delivery by what it asserts.
func callbackNonce(paymentID string, cb *Callback) string {
	sum := sha256.Sum256([]byte(paymentID + "|" + cb.TransactionID + "|" + string(cb.Status) + "|" + cb.Signature))
	return "callback:" + hex.EncodeToString(sum[:])
}

// MemoryNonceStore keeps nonces in a bounded in-process LRU.
type MemoryNonceStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, struct{}]
}

func NewMemoryNonceStore(size int, ttl time.Duration) *MemoryNonceStore {
	return &MemoryNonceStore{cache: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func (s *MemoryNonceStore) Claim(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cache.Get(key); ok {
		return false, nil
	}
	s.cache.Add(key, struct{}{})
	return true, nil
}

func (s *MemoryNonceStore) Release(_ context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}
