package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingSeekPrefix = "telemetry:pending_seek:"

// RedisStore shares pending-seek flags across instances. TTL expiry is
// handled by Redis itself.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis using the given URL and verifies the
// connection before returning.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) SetPendingSeek(ctx context.Context, key string) error {
	if err := s.client.Set(ctx, pendingSeekPrefix+key, "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("set pending seek: %w", err)
	}
	return nil
}

func (s *RedisStore) ConsumePendingSeek(ctx context.Context, key string) (bool, error) {
	val, err := s.client.GetDel(ctx, pendingSeekPrefix+key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume pending seek: %w", err)
	}
	return val != "", nil
}

func (s *RedisStore) ClearPendingSeek(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, pendingSeekPrefix+key).Err(); err != nil {
		return fmt.Errorf("clear pending seek: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
