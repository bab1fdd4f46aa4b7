package redisx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// setIfVersionScript writes the summary only while the order's version is
// still the one the caller read before loading the order.
var setIfVersionScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1]) or "0"
if v ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1`)

// StatusCache keeps customer facing order summaries. Keys include a hash of
// the phone number so a wrong phone never hits a cached entry.
//
// Every Invalidate bumps a per-order version. Readers take the version
// before loading the order and Set refuses to write once it has moved, so a
// summary loaded before a transition never lands after its invalidation.
type StatusCache struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewStatusCache(rdb *redis.Client) *StatusCache {
	return &StatusCache{RDB: rdb, TTL: TTLStatusCache}
}

func statusKey(orderID, phone string) string {
	sum := sha256.Sum256([]byte(phone))
	return fmt.Sprintf(KeyOrderStatus, orderID, hex.EncodeToString(sum[:8]))
}

func versionKey(orderID string) string { return fmt.Sprintf(KeyOrderStatusVersion, orderID) }

func (c *StatusCache) Get(ctx context.Context, orderID, phone string) ([]byte, bool, error) {
	b, err := c.RDB.Get(ctx, statusKey(orderID, phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Version returns the order's current cache version; a missing key is 0.
func (c *StatusCache) Version(ctx context.Context, orderID string) (int64, error) {
	v, err := c.RDB.Get(ctx, versionKey(orderID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Set stores b for at most ttl (ttl <= 0 falls back to the cache TTL) if the
// order's version still equals version. It reports whether b was stored.
func (c *StatusCache) Set(ctx context.Context, orderID, phone string, version int64, b []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 || ttl > c.TTL {
		ttl = c.TTL
	}
	n, err := setIfVersionScript.Run(ctx, c.RDB,
		[]string{versionKey(orderID), statusKey(orderID, phone)},
		strconv.FormatInt(version, 10), b, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Invalidate bumps the order's version and drops the cached summary.
func (c *StatusCache) Invalidate(ctx context.Context, orderID, phone string) error {
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, versionKey(orderID))
		p.Expire(ctx, versionKey(orderID), TTLStatusVersion)
		p.Del(ctx, statusKey(orderID, phone))
		return nil
	})
	return err
}
