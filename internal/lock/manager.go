// Package lock implements short-lived mutual-exclusion locks over logical
// resource names, backed by the ephemeral store. Locks always expire; a
// crashed holder blocks a resource for at most one TTL.
package lock

import (
	"context"
	"errors"
	"log"
	"time"

	"taskboard/internal/ephemeral"
)

const keyPrefix = "lock:"

// releaseScript deletes the lock only if the caller still owns it, so a
// stale release can never clear a lock that has been re-acquired.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

type Manager struct {
	store ephemeral.Store
}

func NewManager(store ephemeral.Store) *Manager {
	return &Manager{store: store}
}

func key(resource string) string {
	return keyPrefix + resource
}

// Acquire attempts to take the lock for resource with the given owner token.
// It returns false when another unexpired lock exists. The check-and-set is
// atomic in Redis, so two concurrent acquires never both succeed.
//
// If the ephemeral store is unreachable, locking degrades to a no-op: the
// acquire is reported as successful and the condition is logged. Entity
// integrity is still protected by the durable store's transactions.
func (m *Manager) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error) {
	ok, err := m.store.SetNX(ctx, key(resource), owner, ttl)
	if err != nil {
		log.Printf("⚠️  Lock acquire degraded for %s: %v", resource, err)
		return true, nil
	}
	return ok, nil
}

// Release frees the lock if owner still holds it. Releasing an expired or
// re-acquired lock is a no-op, not an error.
func (m *Manager) Release(ctx context.Context, resource, owner string) {
	if _, err := m.store.Eval(ctx, releaseScript, []string{key(resource)}, owner); err != nil && !errors.Is(err, ephemeral.ErrNotFound) {
		log.Printf("⚠️  Lock release degraded for %s: %v", resource, err)
	}
}

// IsLocked reports whether an unexpired lock exists for resource.
func (m *Manager) IsLocked(ctx context.Context, resource string) (bool, error) {
	return m.store.Exists(ctx, key(resource))
}

// Owner returns the token currently holding resource, or "" if unlocked.
func (m *Manager) Owner(ctx context.Context, resource string) (string, error) {
	owner, err := m.store.Get(ctx, key(resource))
	if errors.Is(err, ephemeral.ErrNotFound) {
		return "", nil
	}
	return owner, err
}
