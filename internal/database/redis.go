package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"office-service/internal/config"
)

const redisPingTimeout = 5 * time.Second

// NewRedis initializes the Redis client used for realtime fanout.
func NewRedis(cfg *config.Config) (*redis.Client, error) {
	url := cfg.Redis.URL
	if url == "" {
		url = "redis://localhost:6379/0"
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
