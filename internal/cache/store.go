// Package cache provides the result cache for feed queries. The cache is an
// explicit collaborator passed into the components that need it, with a
// defined TTL and eviction policy; there is no process-wide singleton.
package cache

import "time"

// Store is the cache contract. Values are opaque bytes so backends stay
// interchangeable; callers do their own serialization. Both the in-memory
// and the SQLite implementation satisfy this interface.
type Store interface {
	// Get returns the cached value, or false if absent or expired.
	Get(key string) ([]byte, bool)

	// Set stores a value with the given TTL, evicting old entries when the
	// store is over capacity.
	Set(key string, value []byte, ttl time.Duration)

	// Delete removes a single entry.
	Delete(key string)

	// Purge removes expired entries and returns how many were dropped.
	Purge() (int64, error)

	// Backend returns the name of the cache backend ("memory" or "sqlite").
	Backend() string

	Close() error
}
