// package store provides the persistence layer behind sync and enrichment.
//
// Everything the engine keeps is a JSON document under a namespaced key with
// an optional TTL: collection snapshots, cached master releases, and
// enrichment progress records. Three backends implement the same contract:
//   - sqlite: single-file local database, the default for CLI use
//   - redis: shared store for running against an existing Redis
//   - memory: throwaway store for tests and dry runs
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/thirtythreehz/crates/internal/shared"
)

// Store is the key-value contract the sync and enrichment engines write
// through. Values are marshalled to JSON by the backend; a zero ttl means
// the entry never expires.
type Store interface {
	// Get unmarshals the value at key into v, reporting whether a live
	// entry existed. Expired entries read as absent.
	Get(ctx context.Context, key string, v any) (bool, error)

	// Put stores v at key, replacing any previous value.
	Put(ctx context.Context, key string, v any, ttl time.Duration) error

	// PutIfAbsent stores v only when no live entry exists at key, reporting
	// whether it won. Backends make this atomic, which is what makes the
	// sync lease safe across processes.
	PutIfAbsent(ctx context.Context, key string, v any, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// Key namespaces. One collection snapshot and one progress record per owner,
// one cached master per master id.
func CollectionKey(ownerID string) string { return "collection:" + ownerID }
func MasterKey(masterID int64) string     { return fmt.Sprintf("master:%d", masterID) }
func ProgressKey(ownerID string) string   { return "enrichment:progress:" + ownerID }
func SyncLeaseKey(ownerID string) string  { return "sync:lease:" + ownerID }

// Open builds the backend named by the storage config.
func Open(ctx context.Context, cfg shared.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "sqlite", "":
		return NewSQLiteStore(cfg.Path, cfg.MaxOpenConns, cfg.MaxIdleConns)
	case "redis":
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}
