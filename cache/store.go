// Package cache defines the optional caching capability the result service
// accelerates its reads with, plus the invalidation coordinator that keeps
// the cached namespace coherent with the relational store. The relational
// store stays the single source of truth: the whole cache namespace can be
// flushed at any time with no data loss.
package cache

import "context"

// Store is the thin capability interface over the structured-document,
// sorted-set and hash store backing the cache. A nil Store is a valid
// deployment: every read then falls through to the relational store and
// every cache write is a no-op.
type Store interface {
	// GetJSON unmarshals the document at key into dest, reporting whether
	// the key existed.
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	// SetJSON marshals value and stores it at key, with no expiry.
	SetJSON(ctx context.Context, key string, value interface{}) error

	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRevRange(ctx context.Context, key string) ([]string, error)
	ZCard(ctx context.Context, key string) (int64, error)

	HSet(ctx context.Context, key, field, value string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HLen(ctx context.Context, key string) (int64, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)

	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}
