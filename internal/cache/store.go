// Package cache abstracts the shared expiring key/value store used for
// rate-limit windows and cached ratings payloads. Entries are disposable
// accelerators; the remote authority stays the system of record.
package cache

import (
	"context"
	"time"
)

// Store is the minimal contract the gateway needs from any expiring store.
// Get must report a miss once ttl has elapsed since the Put, and Invalidate
// makes the next Get a miss regardless of remaining TTL.
//
// Implementations are not expected to be linearizable across nodes;
// read-then-write sequences built on top of this interface may interleave
// under concurrency and callers must tolerate that.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}
