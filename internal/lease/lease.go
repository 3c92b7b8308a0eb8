// Package lease provides redis-backed mutual exclusion so only one
// worker synchronizes a given data source at a time.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another worker already holds the lease.
var ErrHeld = errors.New("lease held by another worker")

// Commands is the subset of the redis client used by the manager.
type Commands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Manager acquires per-source leases.
type Manager struct {
	client Commands
	ttl    time.Duration
	owner  string
}

// NewManager returns a lease manager. owner identifies this worker in the
// lease value, ttl bounds how long a crashed worker blocks a source.
func NewManager(client Commands, owner string, ttl time.Duration) *Manager {
	return &Manager{client: client, ttl: ttl, owner: owner}
}

func leaseKey(dataSource string) string {
	return fmt.Sprintf("chargesync:lease:%s", dataSource)
}

// Lease is a held lease. Release it when the sync run finishes.
type Lease struct {
	m   *Manager
	key string
}

// Acquire takes the lease for dataSource or returns ErrHeld.
func (m *Manager) Acquire(ctx context.Context, dataSource string) (*Lease, error) {
	key := leaseKey(dataSource)
	ok, err := m.client.SetNX(ctx, key, m.owner, m.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &Lease{m: m, key: key}, nil
}

// Extend refreshes the lease TTL. Long-running streams call this
// periodically to keep the lease while connected.
func (l *Lease) Extend(ctx context.Context) error {
	owner, err := l.m.client.Get(ctx, l.key).Result()
	if err != nil {
		return fmt.Errorf("extend lease %s: %w", l.key, err)
	}
	if owner != l.m.owner {
		return ErrHeld
	}
	return l.m.client.Expire(ctx, l.key, l.m.ttl).Err()
}

// Release frees the lease if this worker still owns it.
func (l *Lease) Release(ctx context.Context) error {
	owner, err := l.m.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if owner != l.m.owner {
		return nil
	}
	return l.m.client.Del(ctx, l.key).Err()
}
