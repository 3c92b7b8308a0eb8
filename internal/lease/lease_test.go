package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis implements the command subset against an in-memory map. TTLs are
// recorded but never enforced.
type fakeRedis struct {
	values  map[string]string
	ttls    map[string]time.Duration
	failing bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.failing {
		return redis.NewBoolResult(false, errors.New("connection refused"))
	}
	if _, exists := f.values[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.failing {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	value, exists := f.values[key]
	if !exists {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	deleted := int64(0)
	for _, key := range keys {
		if _, exists := f.values[key]; exists {
			delete(f.values, key)
			deleted++
		}
	}
	return redis.NewIntResult(deleted, nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if _, exists := f.values[key]; !exists {
		return redis.NewBoolResult(false, nil)
	}
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func newTestManager(client Commands, owner string) *Manager {
	return &Manager{client: client, ttl: 10 * time.Minute, owner: owner}
}

func TestAcquireAndRelease(t *testing.T) {
	client := newFakeRedis()
	m := newTestManager(client, "worker-1")

	held, err := m.Acquire(context.Background(), "nobil")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := client.values["chargesync:lease:nobil"]; got != "worker-1" {
		t.Errorf("lease value = %q", got)
	}
	if got := client.ttls["chargesync:lease:nobil"]; got != 10*time.Minute {
		t.Errorf("lease ttl = %v", got)
	}

	if err := held.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, exists := client.values["chargesync:lease:nobil"]; exists {
		t.Error("lease key still present after release")
	}
}

func TestAcquireHeldByOther(t *testing.T) {
	client := newFakeRedis()
	first := newTestManager(client, "worker-1")
	second := newTestManager(client, "worker-2")

	if _, err := first.Acquire(context.Background(), "nobil"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := second.Acquire(context.Background(), "nobil"); !errors.Is(err, ErrHeld) {
		t.Fatalf("second Acquire error = %v, want ErrHeld", err)
	}

	// A different source is independent.
	if _, err := second.Acquire(context.Background(), "monta"); err != nil {
		t.Errorf("Acquire of other source: %v", err)
	}
}

func TestReleaseLeavesForeignLease(t *testing.T) {
	client := newFakeRedis()
	m := newTestManager(client, "worker-1")

	held, err := m.Acquire(context.Background(), "nobil")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// The lease expired and another worker took it over.
	client.values["chargesync:lease:nobil"] = "worker-2"

	if err := held.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := client.values["chargesync:lease:nobil"]; got != "worker-2" {
		t.Errorf("Release removed a foreign lease, value = %q", got)
	}
}

func TestExtend(t *testing.T) {
	client := newFakeRedis()
	m := newTestManager(client, "worker-1")

	held, err := m.Acquire(context.Background(), "nobil")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	client.ttls["chargesync:lease:nobil"] = time.Second

	if err := held.Extend(context.Background()); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if got := client.ttls["chargesync:lease:nobil"]; got != 10*time.Minute {
		t.Errorf("ttl after extend = %v", got)
	}

	client.values["chargesync:lease:nobil"] = "worker-2"
	if err := held.Extend(context.Background()); !errors.Is(err, ErrHeld) {
		t.Errorf("Extend of foreign lease = %v, want ErrHeld", err)
	}
}

func TestAcquireBackendError(t *testing.T) {
	client := newFakeRedis()
	client.failing = true
	m := newTestManager(client, "worker-1")

	if _, err := m.Acquire(context.Background(), "nobil"); err == nil || errors.Is(err, ErrHeld) {
		t.Fatalf("Acquire error = %v, want backend error", err)
	}
}
