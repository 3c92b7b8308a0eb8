package jobs

import (
	"context"
	"errors"
	"iter"
	"slices"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargesync/internal/lease"
	"chargesync/internal/models"
	"chargesync/internal/repository"
	"chargesync/internal/sources"
	"chargesync/internal/sync"
)

// fakeLeaseRedis implements the lease command subset with a single lease
// slot. Extensions are signalled on a channel so tests can wait for them.
type fakeLeaseRedis struct {
	// heldBy simulates a foreign worker already holding the lease.
	heldBy string
	// owner is written once by SetNX before the extend loop starts.
	owner    string
	extended chan struct{}
}

func newFakeLeaseRedis() *fakeLeaseRedis {
	return &fakeLeaseRedis{extended: make(chan struct{}, 16)}
}

func (f *fakeLeaseRedis) SetNX(_ context.Context, _ string, value interface{}, _ time.Duration) *redis.BoolCmd {
	if f.heldBy != "" {
		return redis.NewBoolResult(false, nil)
	}
	f.owner = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLeaseRedis) Get(_ context.Context, _ string) *redis.StringCmd {
	if f.heldBy != "" {
		return redis.NewStringResult(f.heldBy, nil)
	}
	if f.owner == "" {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(f.owner, nil)
}

func (f *fakeLeaseRedis) Del(_ context.Context, _ ...string) *redis.IntCmd {
	return redis.NewIntResult(1, nil)
}

func (f *fakeLeaseRedis) Expire(_ context.Context, _ string, _ time.Duration) *redis.BoolCmd {
	select {
	case f.extended <- struct{}{}:
	default:
	}
	return redis.NewBoolResult(true, nil)
}

// fakeSyncer counts what it is fed. When waitFor is set, SyncSites blocks
// until the channel delivers, standing in for a long-running static sync.
type fakeSyncer struct {
	waitFor  <-chan struct{}
	sites    int
	statuses int
}

func (s *fakeSyncer) SyncSites(_ context.Context, _ string, records iter.Seq[models.SiteRecord], _ bool) (sync.SiteSyncResult, error) {
	for range records {
		s.sites++
	}
	if s.waitFor != nil {
		select {
		case <-s.waitFor:
		case <-time.After(5 * time.Second):
			return sync.SiteSyncResult{}, errors.New("lease was not extended during the sync")
		}
	}
	return sync.SiteSyncResult{SitesCreated: s.sites}, nil
}

func (s *fakeSyncer) SyncStatuses(_ context.Context, _, _ string, statuses iter.Seq[models.StatusEvent]) (int, error) {
	n := 0
	for range statuses {
		n++
	}
	s.statuses += n
	return n, nil
}

type fakeStates struct {
	touched []string
}

func (f *fakeStates) Get(context.Context, string) (*repository.UpdateState, error) {
	return nil, repository.ErrUpdateStateNotFound
}

func (f *fakeStates) Touch(_ context.Context, dataSource string, _ time.Time, _ bool) error {
	f.touched = append(f.touched, dataSource)
	return nil
}

type fakePurger struct{}

func (fakePurger) PurgeStatusesBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type staticFeed struct {
	records []models.SiteRecord
}

func (f staticFeed) FetchStatic(context.Context) (iter.Seq[models.SiteRecord], error) {
	return slices.Values(f.records), nil
}

type dynamicFeed struct {
	events []models.StatusEvent
}

func (f dynamicFeed) FetchDynamic(context.Context) (iter.Seq[models.StatusEvent], error) {
	return slices.Values(f.events), nil
}

func newTestRunner(t *testing.T, client lease.Commands, syncer *fakeSyncer, src *sources.Source) (*Runner, *fakeStates) {
	t.Helper()
	registry := sources.NewRegistry()
	if err := registry.Register(src); err != nil {
		t.Fatalf("Register: %v", err)
	}
	states := &fakeStates{}
	leases := lease.NewManager(client, "worker-1", time.Minute)
	return NewRunner(registry, syncer, leases, states, fakePurger{}, zap.NewNop()), states
}

func TestLoadSourceExtendsLease(t *testing.T) {
	client := newFakeLeaseRedis()
	// The sync does not finish until the lease has been extended at least
	// once, so a load path without extension fails the run.
	syncer := &fakeSyncer{waitFor: client.extended}
	r, _ := newTestRunner(t, client, syncer, &sources.Source{
		ID:     "stat",
		Static: staticFeed{records: []models.SiteRecord{{}}},
	})
	r.extendInterval = time.Millisecond

	if err := r.LoadSource(context.Background(), "stat"); err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
}

func TestLoadSourceHeldByOther(t *testing.T) {
	client := newFakeLeaseRedis()
	client.heldBy = "worker-2"
	syncer := &fakeSyncer{}
	r, _ := newTestRunner(t, client, syncer, &sources.Source{
		ID:     "stat",
		Static: staticFeed{records: []models.SiteRecord{{}}},
	})

	if err := r.LoadSource(context.Background(), "stat"); !errors.Is(err, lease.ErrHeld) {
		t.Fatalf("LoadSource error = %v, want ErrHeld", err)
	}
	if syncer.sites != 0 {
		t.Errorf("syncer ran %d site records despite a held lease", syncer.sites)
	}
}

func TestLoadSourceSyncsAndTouchesState(t *testing.T) {
	client := newFakeLeaseRedis()
	syncer := &fakeSyncer{}
	r, states := newTestRunner(t, client, syncer, &sources.Source{
		ID:      "stat",
		Static:  staticFeed{records: []models.SiteRecord{{}, {}}},
		Dynamic: dynamicFeed{events: []models.StatusEvent{{}, {}, {}}},
	})

	if err := r.LoadSource(context.Background(), "stat"); err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if syncer.sites != 2 || syncer.statuses != 3 {
		t.Errorf("synced %d sites, %d statuses; want 2, 3", syncer.sites, syncer.statuses)
	}
	if len(states.touched) != 1 || states.touched[0] != "stat" {
		t.Errorf("update state touched = %v, want one touch of stat", states.touched)
	}
}
