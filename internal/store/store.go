// Package store defines the persistence interface for the ledger engine.
// Values are opaque documents addressed by string keys. Implementations
// include SQLite (device-local), PostgreSQL (server), Redis (read-through
// cache) and in-memory (for testing).
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("store: key not found")

// Store is the persistence interface. Commit applies every write of a batch
// atomically: either all of them are durable or none is.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Commit applies all writes of b in one transaction.
	Commit(ctx context.Context, b *Batch) error
}

// Write is one staged mutation. A nil Value means remove.
type Write struct {
	Key   string
	Value []byte
}

// Batch stages writes for a single Commit. Later writes to the same key win.
type Batch struct {
	writes []Write
}

func NewBatch() *Batch {
	return &Batch{}
}

// Set stages value under key.
func (b *Batch) Set(key string, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	b.writes = append(b.writes, Write{Key: key, Value: v})
}

// Remove stages the deletion of key.
func (b *Batch) Remove(key string) {
	b.writes = append(b.writes, Write{Key: key})
}

// Writes returns the staged writes in order.
func (b *Batch) Writes() []Write {
	return b.writes
}

// Keys returns every key touched by the batch.
func (b *Batch) Keys() []string {
	keys := make([]string, 0, len(b.writes))
	for _, w := range b.writes {
		keys = append(keys, w.Key)
	}
	return keys
}

func (b *Batch) Len() int {
	return len(b.writes)
}
