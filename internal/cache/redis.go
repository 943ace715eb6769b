package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"songrec/internal/logging"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// entry is the stored form of a cover URL.
type entry struct {
	URL        string    `json:"url"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// RedisStore shares resolved cover URLs between instances through Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to addr and pings it.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	logging.Info().Str("component", "redis").Str("addr", addr).Msg("cover cache connected")
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	var e entry
	ok, err := s.GetJSON(ctx, key, &e)
	if err != nil || !ok {
		return "", false, err
	}
	return e.URL, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.SetJSON(ctx, key, entry{URL: value, ResolvedAt: time.Now().UTC()}, s.ttl)
}

// =======================================================
//  JSON helpers
// =======================================================

// GetJSON reads key and decodes it into dest. A missing key is (false, nil).
func (s *RedisStore) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON encodes value and stores it under key; ttl <= 0 means no expiry.
func (s *RedisStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, key, b, ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
