package db

import (
	"context"
	"time"
)

// Store is the Redis facade used by docqa: embedding cache and store-location locks.
type Store interface {
	Pinger
	KVStore
	Locker
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Locker provides a token-owned mutual exclusion key with expiry.
type Locker interface {
	// TryLock sets key to token if absent. Returns false when another token holds it.
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// Unlock deletes key only if it still holds token.
	Unlock(ctx context.Context, key, token string) error
	// Extend resets the expiry of key to ttl if it still holds token.
	Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
}
