// Package redis provides a Redis-backed cache.Store so several clients
// can share fetched UPS data.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"avaneesh/nut-go/pkg/cache"
	"github.com/redis/go-redis/v9"
)

// Config contains configuration options for the Redis store
type Config struct {
	// Client is the Redis client instance
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys
	// Default: "nut:cache:"
	KeyPrefix string

	// TTL expires entries after the given duration. Zero keeps them
	// until overwritten or deleted.
	TTL time.Duration
}

// Store implements cache.Store using Redis
type Store struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// storedRows represents the structure stored in Redis
type storedRows struct {
	Rows     cache.Rows `json:"rows"`
	CachedAt time.Time  `json:"cached_at"`
}

// New creates a new Redis-backed store
func New(config Config) (*Store, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	// Apply defaults
	if config.KeyPrefix == "" {
		config.KeyPrefix = "nut:cache:"
	}

	return &Store{
		client:    config.Client,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
	}, nil
}

// Get implements cache.Store.Get
func (s *Store) Get(ctx context.Context, key cache.Key) (cache.Rows, bool, error) {
	redisKey := s.buildKey(key)

	val, err := s.client.Get(ctx, redisKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Key doesn't exist
		}
		return nil, false, fmt.Errorf("failed to get key %s: %w", redisKey, err)
	}

	var stored storedRows
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached rows: %w", err)
	}
	return stored.Rows, true, nil
}

// Set implements cache.Store.Set
func (s *Store) Set(ctx context.Context, key cache.Key, rows cache.Rows) error {
	redisKey := s.buildKey(key)

	data, err := json.Marshal(storedRows{Rows: rows, CachedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}

	if err := s.client.Set(ctx, redisKey, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", redisKey, err)
	}
	return nil
}

// Delete implements cache.Store.Delete
func (s *Store) Delete(ctx context.Context, key cache.Key) error {
	redisKey := s.buildKey(key)
	if err := s.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", redisKey, err)
	}
	return nil
}

// Close closes the Redis client
func (s *Store) Close() error {
	return s.client.Close()
}

// buildKey constructs the Redis key from the cache key
func (s *Store) buildKey(key cache.Key) string {
	return s.keyPrefix + key.String()
}
