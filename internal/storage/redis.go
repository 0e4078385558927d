package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const violationKeyPrefix = "interview:violations:"

// RedisCounter хранит счетчики нарушений в Redis, чтобы они переживали рестарт и были общими для реплик
type RedisCounter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает клиента и проверяет соединение
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("addr cannot be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// NewRedisCounter - ttl ограничивает жизнь счетчика брошенной сессии
func NewRedisCounter(client *redis.Client, ttl time.Duration) *RedisCounter {
	return &RedisCounter{client: client, ttl: ttl}
}

func (r *RedisCounter) Incr(ctx context.Context, sessionID string) (int, error) {
	key := violationKeyPrefix + sessionID
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr violations: %w", err)
	}
	return int(incr.Val()), nil
}

func (r *RedisCounter) Count(ctx context.Context, sessionID string) (int, error) {
	n, err := r.client.Get(ctx, violationKeyPrefix+sessionID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get violations: %w", err)
	}
	return n, nil
}
