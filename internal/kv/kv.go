// Package kv defines the flat asynchronous key/value primitive the table
// store is built on, with in-memory and SQLite-backed implementations.
package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv: store closed")

// Pair is a key/value pair for batched writes.
type Pair struct {
	Key   string
	Value string
}

// Result is one slot of a batched read. Found reports whether the key
// existed. Results preserve the order of the requested keys.
type Result struct {
	Key   string
	Value string
	Found bool
}

// Store is the durable string-keyed primitive. A batched MultiSet must be
// observed atomically by subsequent reads on the same store; the table
// store's write path depends on that guarantee.
type Store interface {
	// Get retrieves a value. A missing key is not an error.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores a value, overwriting any existing one.
	Set(ctx context.Context, key, value string) error

	// Delete removes a key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// MultiGet retrieves values for all keys in one batch, in input order.
	MultiGet(ctx context.Context, keys []string) ([]Result, error)

	// MultiSet stores all pairs so they become visible together.
	MultiSet(ctx context.Context, pairs []Pair) error

	// MultiRemove deletes all keys in one batch.
	MultiRemove(ctx context.Context, keys []string) error

	// Keys enumerates every key in the store. Order is not guaranteed.
	Keys(ctx context.Context) ([]string, error)

	// Close releases the store's resources.
	Close() error
}
