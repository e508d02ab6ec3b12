package redisx

import "time"

const (
	// Qikink bearer token, persisted across restarts:
	// qikink:token -> {"token": "...", "expiry": "..."}
	KeyQikinkToken = "qikink:token"

	// Cached tracking info: track:{qikink_order_id} -> {"tracking_link": "...", ...}
	KeyTrackOrder = "track:%s"

	// Dedup for event/webhook processing: dedup:{service}:{id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLTrackCache = 10 * time.Minute
	TTLDedup      = 48 * time.Hour
)
