package scansource

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

const DefaultRedisKey = "janus:scan:latest"

// RedisSource reads the slot from a single string key, for readers that
// publish over the network instead of to a local file.
type RedisSource struct {
	client redis.UniversalClient
	key    string
}

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func NewRedisSource(client redis.UniversalClient, key string) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{client: client, key: key}
}

func (s *RedisSource) Latest(ctx context.Context) (*types.Scan, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scan slot %s: %w", s.key, err)
	}
	return ParseSlot(raw)
}

func (s *RedisSource) Write(ctx context.Context, scan types.Scan) error {
	if err := s.client.Set(ctx, s.key, FormatSlot(scan), 0).Err(); err != nil {
		return fmt.Errorf("write scan slot %s: %w", s.key, err)
	}
	return nil
}
