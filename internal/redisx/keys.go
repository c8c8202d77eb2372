package redisx

import "time"

const (
	// Cached order snapshot: order:{id} -> full hydrated order JSON.
	// Populated by reads, invalidated on every committed mutation; the
	// database remains the source of truth.
	KeyOrder = "order:%d"
)

var TTLOrderCache = 5 * time.Minute
