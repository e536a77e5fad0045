package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyActiveUpload = "uploadtracker:active:"

// RedisStore keeps the active upload id in Redis, for deployments
// where several admin stations share one focused upload.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis with the given URL
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// SaveActive records uploadID as the focused upload
func (s *RedisStore) SaveActive(ctx context.Context, uploadID string) error {
	if err := s.client.Set(ctx, keyActiveUpload+DefaultSlot, uploadID, 0).Err(); err != nil {
		return fmt.Errorf("failed to save active upload: %w", err)
	}
	return nil
}

// LoadActive returns the persisted upload id, or "" when none is saved
func (s *RedisStore) LoadActive(ctx context.Context) (string, error) {
	uploadID, err := s.client.Get(ctx, keyActiveUpload+DefaultSlot).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load active upload: %w", err)
	}
	return uploadID, nil
}

// ClearActive removes the persisted upload id
func (s *RedisStore) ClearActive(ctx context.Context) error {
	if err := s.client.Del(ctx, keyActiveUpload+DefaultSlot).Err(); err != nil {
		return fmt.Errorf("failed to clear active upload: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
