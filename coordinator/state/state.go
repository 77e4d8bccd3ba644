// Package state defines the key/value and queue primitives the coordinator
// core is built on, with pluggable backends. Implementations must provide
// per-key atomicity for SetNX, CompareAndDelete and the sorted-set updates;
// no cross-key transactionality is assumed.
package state

import (
	"context"
	"time"
)

// Store is the capability set the coordinator consumes: strings with TTL,
// atomic set-if-absent and compare-and-delete, hashes, sets, sorted sets and
// pattern key scans.
type Store interface {
	// Get returns the string value of key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes a string value. A ttl of zero means no expiration.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX sets key to value only if key is absent, returning whether the
	// write happened. The primitive behind exclusive lock acquisition.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// CompareAndDelete removes key only if its current value equals expect,
	// returning whether a delete happened. The primitive behind owner-only
	// lock release.
	CompareAndDelete(ctx context.Context, key, expect string) (bool, error)

	// Delete removes keys of any kind. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Expire sets or refreshes a key's TTL, returning whether the key exists.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// TTL reports a key's remaining TTL and whether the key exists. An
	// existing key without expiration reports a zero duration.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)

	// HSet merges fields into the hash at key.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// HGet returns a single hash field and whether it exists.
	HGet(ctx context.Context, key, field string) (string, bool, error)

	// HGetAll returns all fields of the hash at key; empty map if absent.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HDel removes fields from the hash at key.
	HDel(ctx context.Context, key string, fields ...string) error

	// SAdd adds members to the set at key.
	SAdd(ctx context.Context, key string, members ...string) error

	// SRem removes members from the set at key.
	SRem(ctx context.Context, key string, members ...string) error

	// SMembers returns all members of the set at key.
	SMembers(ctx context.Context, key string) ([]string, error)

	// SCard returns the cardinality of the set at key.
	SCard(ctx context.Context, key string) (int64, error)

	// ZAdd adds or updates a member of the sorted set at key.
	ZAdd(ctx context.Context, key, member string, score float64) error

	// ZRem removes members from the sorted set at key.
	ZRem(ctx context.Context, key string, members ...string) error

	// ZRange returns members by ascending (score, member) rank. Negative
	// stop counts from the end, -1 meaning the last member.
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ZRangeByScore returns members with min <= score <= max in ascending
	// order. Use -inf/+inf via math.Inf.
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)

	// ZScore returns a member's score and whether the member exists.
	ZScore(ctx context.Context, key, member string) (float64, bool, error)

	// ZCard returns the cardinality of the sorted set at key.
	ZCard(ctx context.Context, key string) (int64, error)

	// Keys returns all live keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Close releases backend resources.
	Close() error
}
