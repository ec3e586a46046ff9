// Package store provides the key/value store with per-key expiration that
// holds OTP records, rate-limit counters and refresh-token metadata.
//
// Two backends implement TTLStore: RedisStore, shared between processes, and
// MemoryStore, a process-local fallback with the same semantics but no
// cross-process visibility. Open picks one at startup.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or has expired.
var ErrNotFound = errors.New("key not found")

// TTLStore is the storage capability the OTP subsystem depends on.
type TTLStore interface {
	// Set upserts value under key; it expires after ttl even if never read again.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Claim removes key and reports whether this call removed it. Of several
	// concurrent claimants exactly one sees true.
	Claim(ctx context.Context, key string) (bool, error)
	// Increment adds one to the integer at key and returns the new value.
	// ttl is applied only when the increment creates the key, so a running
	// window is never extended.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Backend names the implementation, for logs and health output.
	Backend() string
	Close() error
}

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)
