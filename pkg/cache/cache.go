// Package cache provides result caching for placement runs.
//
// A placement solve is deterministic given a snapshot, a seed, and the
// solver options, so the CLI caches the exported placement keyed by a hash
// of those inputs. Re-running an unchanged design skips the solve entirely.
// The library default is the NullCache; caching is an entry-point concern.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// TTLPlacement is how long cached placements stay valid.
const TTLPlacement = 30 * 24 * time.Hour

// Cache stores and retrieves byte blobs by key.
type Cache interface {
	// Get returns the cached data and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// PlacementKeyOpts are the solve parameters that distinguish cached
// placements of the same snapshot.
type PlacementKeyOpts struct {
	TargetOverflow float64 `json:"target_overflow"`
	MaxIterations  int     `json:"max_iterations"`
	Seed           int64   `json:"seed"`
	ScriptDigest   string  `json:"script_digest"`
}

// PlacementKey builds the cache key for a placement result.
func PlacementKey(snapshotHash string, opts PlacementKeyOpts) string {
	return hashKey("placement", snapshotHash, opts)
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
