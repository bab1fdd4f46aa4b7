package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed window counter per client key.
type RateLimiter struct {
	RDB    *redis.Client
	Limit  int
	Window time.Duration
}

func (l *RateLimiter) Allow(ctx context.Context, client string) (bool, error) {
	if l.Limit <= 0 {
		return true, nil
	}
	key := fmt.Sprintf(KeyReserveRate, client)
	n, err := l.RDB.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.RDB.Expire(ctx, key, l.Window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(l.Limit), nil
}
