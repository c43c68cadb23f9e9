package notification

import (
	"context"
	"encoding/json"
	"time"

	"payhub-be/internal/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const ChannelPrefix = "notifications:"

type Notifier interface {
	Notify(ctx context.Context, userID, title, message, kind string) error
}

type Message struct {
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Channel is the pub/sub channel a user's notifications are published on.
func Channel(userID string) string {
	return ChannelPrefix + userID
}

// RedisNotifier publishes notifications as JSON on the user's channel.
type RedisNotifier struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client, now: time.Now}
}

func (n *RedisNotifier) Notify(ctx context.Context, userID, title, message, kind string) error {
	payload, err := json.Marshal(Message{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Kind:      kind,
		CreatedAt: n.now().UTC(),
	})
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, Channel(userID), payload).Err()
}

// LogNotifier only logs. It is used when no redis is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, userID, title, message, kind string) error {
	logger.FromCtx(ctx).Info("notification",
		zap.String("user_id", userID),
		zap.String("title", title),
		zap.String("message", message),
		zap.String("kind", kind),
	)
	return nil
}
