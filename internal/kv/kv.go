// Package kv provides the durable key-value backends the record store
// persists into. Two production backends exist: a file-per-key directory
// store and a SQLite-backed store. Both support a multi-key commit so that
// writes touching more than one collection (cascade deletes, balance
// adjustments) land together or not at all.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store is a durable string-key, byte-value store.
type Store interface {
	// Get retrieves the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set durably writes a single key.
	Set(ctx context.Context, key string, value []byte) error

	// SetMulti durably writes all given keys as one commit. After a crash,
	// either every key holds its new value or every key holds its old one.
	SetMulti(ctx context.Context, values map[string][]byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
