// Package db defines the key-value backend behind the content-hash lookup.
package db

import (
	"context"
	"time"
)

// Store is the backend owned by the composition root.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Entry is one key-value pair of a batch write.
type Entry struct {
	Key   string
	Value []byte
}

// KVStore reads single keys and writes batches of them.
type KVStore interface {
	// Get returns ErrKeyNotFound for a missing or expired key.
	Get(ctx context.Context, key string) ([]byte, error)
	// SetMany writes all entries with one shared ttl. A non-positive ttl
	// never expires. Entries written before a failure stay written.
	SetMany(ctx context.Context, entries []Entry, ttl time.Duration) error
}
