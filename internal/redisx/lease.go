package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Lease is a best-effort single-holder lock (SET NX PX).
type Lease struct {
	RDB   *redis.Client
	Key   string
	Owner string
}

func (l *Lease) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	return l.RDB.SetNX(ctx, l.Key, l.Owner, ttl).Result()
}

func (l *Lease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.RDB, []string{l.Key}, l.Owner).Err()
}
