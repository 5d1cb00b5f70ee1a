// Package cache provides byte-oriented caches used for registry responses.
//
// # Backends
//
//   - [FileCache]: JSON entries on disk, the default for the CLI
//   - [MemoryCache]: an in-process LRU with per-entry expiry
//   - [RedisCache]: shared cache for server deployments
//   - [NullCache]: stores nothing, for tests and --no-cache
//
// All backends implement [Cache]. Keys are produced by a [Keyer] so that
// different data never collides:
//
//	k := cache.NewDefaultKeyer()
//	c.Set(ctx, k.HTTPKey("pypi", "requests"), body, time.Hour)
//
// # Retries
//
// [RetryWithBackoff] retries operations whose errors were wrapped with
// [Retryable], using exponential backoff.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Cache stores opaque byte values with an optional time-to-live.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A miss returns ok == false and a nil
	// error.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// HTTPKey is the key for a raw registry response.
	HTTPKey(namespace, key string) string

	// HistoryKey is the key for a decoded release history.
	HistoryKey(registry, name string) string
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// HTTPKey returns "http:<namespace>:<key>".
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return fmt.Sprintf("http:%s:%s", namespace, key)
}

// HistoryKey returns a hashed key for a package's release history.
func (DefaultKeyer) HistoryKey(registry, name string) string {
	return hashKey("history", registry, name)
}

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
