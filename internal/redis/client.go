package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "gem:"

type Client struct {
	*redis.Client
}

func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// ClaimRateKey is the sliding-window key for one worker's claim calls.
func ClaimRateKey(worker string) string {
	return fmt.Sprintf("%sclaims:%s", keyPrefix, worker)
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
