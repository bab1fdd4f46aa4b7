package redisx

import "time"

const (
	// Cached order summary: order_status:{order_id}:{phone_hash} -> summary json
	KeyOrderStatus = "order_status:%s:%s"

	// Cache version, bumped on every invalidation: order_status_ver:{order_id}
	KeyOrderStatusVersion = "order_status_ver:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Sweeper lease, one holder across api instances
	KeySweeperLease = "lease:sweeper"

	// Reserve rate limit window: ratelimit:reserve:{client}
	KeyReserveRate = "ratelimit:reserve:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour

	// outlives any cached summary by far, so a version never resets under a reader
	TTLStatusVersion = 24 * time.Hour
)
