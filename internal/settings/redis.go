package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisBackend stores the document as JSON under a single key
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend connects to Redis and checks the connection
func NewRedisBackend(cfg RedisConfig, logger *zap.Logger) (*RedisBackend, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.MaxConnections > 0 {
		opts.PoolSize = cfg.MaxConnections
	}
	opts.MinIdleConns = cfg.MinIdleConns

	b := &RedisBackend{
		client: redis.NewClient(opts),
		key:    cfg.Key,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.client.Ping(ctx).Err(); err != nil {
		b.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis settings backend initialized",
		zap.String("redis_url", maskURL(cfg.URL)),
		zap.String("key", cfg.Key),
	)
	return b, nil
}

func (b *RedisBackend) Load(ctx context.Context) (*Document, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if err == redis.Nil {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings from Redis: %w", err)
	}

	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse settings from Redis: %w", err)
	}
	return doc, nil
}

func (b *RedisBackend) Save(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write settings to Redis: %w", err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// maskURL hides the password of a connection URL for logging
func maskURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userinfo := url[:at]
	colon := strings.LastIndex(userinfo, ":")
	if colon < 0 || !strings.Contains(userinfo[:colon], "//") {
		return url
	}
	return userinfo[:colon+1] + "***" + url[at:]
}
