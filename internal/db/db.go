package db

import (
	"context"
	"time"
)

// Store is the Redis facade combining all sub-interfaces.
//
//nolint:interfacebloat // consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	KVStore
	ListStore
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
	Del(ctx context.Context, key string) error
}

// ListStore provides bounded list operations (newest first).
type ListStore interface {
	// PushCapped prepends value and trims the list to the newest limit items.
	PushCapped(ctx context.Context, key string, value []byte, limit int) error
	// Range returns items [start, stop] inclusive; stop -1 means the end.
	Range(ctx context.Context, key string, start, stop int64) ([][]byte, error)
}
