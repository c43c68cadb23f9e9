package kv

import (
	"context"
	"fmt"
	"time"

	"payhub-be/internal/config"

	"github.com/go-redis/redis/v8"
)

func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0, // use default DB
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(pingCtx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// NonceStore keeps processed callback nonces in redis so replays are
// recognized across instances.
type NonceStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewNonceStore(client *redis.Client, ttl time.Duration) *NonceStore {
	return &NonceStore{client: client, ttl: ttl}
}

func (s *NonceStore) Claim(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, key, time.Now().Unix(), s.ttl).Result()
}

func (s *NonceStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
