package sync

import (
	"context"
	"slices"
	"testing"
	"time"

	"chargesync/internal/models"
)

func event(siteKey, cpKey string, status models.ChargeStatus, at time.Time) models.StatusEvent {
	return models.StatusEvent{
		SiteKey:        siteKey,
		ChargepointKey: cpKey,
		Status:         models.RealtimeStatus{Status: status, Timestamp: at},
	}
}

func syncEvents(t *testing.T, s *Syncer, realtimeSource, chargepointSource string, events ...models.StatusEvent) int {
	t.Helper()
	created, err := s.SyncStatuses(context.Background(), realtimeSource, chargepointSource, slices.Values(events))
	if err != nil {
		t.Fatalf("SyncStatuses: %v", err)
	}
	return created
}

// seedChargepoint stores one site with one chargepoint and returns the
// chargepoint row ID.
func seedChargepoint(t *testing.T, store *fakeStore, s *Syncer, dataSource, siteKey string) int64 {
	t.Helper()
	rec := testRecord(siteKey)
	syncRecords(t, s, dataSource, false, rec)
	site := store.siteByKey(dataSource, siteKey)
	if site == nil {
		t.Fatalf("seed site %s missing", siteKey)
	}
	return store.chargepointsOf(site.ID)[0].ID
}

func TestSyncStatusesResolvesAndStores(t *testing.T) {
	store := newFakeStore()
	s := newTestSyncer(store, 100)
	cpID := seedChargepoint(t, store, s, "static", "a")

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	created := syncEvents(t, s, "realtime", "static", event("a", "a-1", models.StatusCharging, at))

	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	stored := store.statusesOf(cpID)
	if len(stored) != 1 {
		t.Fatalf("stored %d statuses, want 1", len(stored))
	}
	st := stored[0]
	if st.Status != models.StatusCharging || st.DataSource != "realtime" || !st.Timestamp.Equal(at) {
		t.Errorf("stored status %+v", st)
	}
}

func TestSyncStatusesDropsUnresolvable(t *testing.T) {
	store := newFakeStore()
	s := newTestSyncer(store, 100)
	seedChargepoint(t, store, s, "static", "a")

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	created := syncEvents(t, s, "realtime", "static",
		event("a", "no-such-cp", models.StatusAvailable, at),
		event("missing-site", "a-1", models.StatusAvailable, at),
	)

	if created != 0 {
		t.Fatalf("created = %d, want 0", created)
	}
	if len(store.statuses) != 0 {
		t.Errorf("stored %d statuses for unresolvable events", len(store.statuses))
	}
}

func TestSyncStatusesMonotonicAcrossCalls(t *testing.T) {
	store := newFakeStore()
	s := newTestSyncer(store, 100)
	cpID := seedChargepoint(t, store, s, "static", "a")

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	syncEvents(t, s, "realtime", "static", event("a", "a-1", models.StatusCharging, at))

	// Re-delivery and an older observation must both be dropped.
	created := syncEvents(t, s, "realtime", "static",
		event("a", "a-1", models.StatusCharging, at),
		event("a", "a-1", models.StatusAvailable, at.Add(-time.Minute)),
	)
	if created != 0 {
		t.Fatalf("created = %d, want 0", created)
	}

	created = syncEvents(t, s, "realtime", "static",
		event("a", "a-1", models.StatusAvailable, at.Add(time.Minute)))
	if created != 1 {
		t.Fatalf("created = %d, want 1 for newer timestamp", created)
	}
	if got := len(store.statusesOf(cpID)); got != 2 {
		t.Errorf("stored %d statuses, want 2", got)
	}
}

func TestSyncStatusesMonotonicWithinBatch(t *testing.T) {
	store := newFakeStore()
	s := newTestSyncer(store, 100)
	cpID := seedChargepoint(t, store, s, "static", "a")

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	created := syncEvents(t, s, "realtime", "static",
		event("a", "a-1", models.StatusCharging, at),
		event("a", "a-1", models.StatusCharging, at),
		event("a", "a-1", models.StatusAvailable, at.Add(-time.Second)),
		event("a", "a-1", models.StatusAvailable, at.Add(time.Second)),
	)

	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}
	if got := len(store.statusesOf(cpID)); got != 2 {
		t.Errorf("stored %d statuses, want 2", got)
	}
}

func TestSyncStatusesSourcesTrackedIndependently(t *testing.T) {
	store := newFakeStore()
	s := newTestSyncer(store, 100)
	cpID := seedChargepoint(t, store, s, "static", "a")

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	syncEvents(t, s, "feed-1", "static", event("a", "a-1", models.StatusCharging, at))

	// An older timestamp from a different realtime source is gated against
	// that source's own history, not feed-1's.
	created := syncEvents(t, s, "feed-2", "static",
		event("a", "a-1", models.StatusAvailable, at.Add(-time.Hour)))
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	if got := len(store.statusesOf(cpID)); got != 2 {
		t.Errorf("stored %d statuses, want 2", got)
	}
}

func TestSyncStatusesZeroTimestampDefaultsToNow(t *testing.T) {
	store := newFakeStore()
	s := newTestSyncer(store, 100)
	cpID := seedChargepoint(t, store, s, "static", "a")

	before := time.Now().UTC()
	created := syncEvents(t, s, "realtime", "static",
		event("a", "a-1", models.StatusAvailable, time.Time{}))
	after := time.Now().UTC()

	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	st := store.statusesOf(cpID)[0]
	if st.Timestamp.Before(before) || st.Timestamp.After(after) {
		t.Errorf("timestamp %v not in [%v, %v]", st.Timestamp, before, after)
	}
}

func TestSyncStatusesBatchSizeIndependence(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	run := func(batchSize int) int {
		store := newFakeStore()
		s := newTestSyncer(store, batchSize)
		seedChargepoint(t, store, s, "static", "a")

		events := make([]models.StatusEvent, 0, 50)
		for i := 0; i < 50; i++ {
			// Every second event repeats the previous timestamp.
			events = append(events, event("a", "a-1", models.StatusCharging, at.Add(time.Duration(i/2)*time.Minute)))
		}
		return syncEvents(t, s, "realtime", "static", events...)
	}

	want := run(100)
	if want != 25 {
		t.Fatalf("created = %d, want 25", want)
	}
	for _, batchSize := range []int{1, 3, 1000} {
		if got := run(batchSize); got != want {
			t.Errorf("batch size %d: created = %d, want %d", batchSize, got, want)
		}
	}
}
