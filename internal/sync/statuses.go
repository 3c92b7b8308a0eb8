package sync

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"chargesync/internal/models"
)

// statusKey addresses a chargepoint by upstream identifiers.
type statusKey struct {
	siteKey string
	cpKey   string
}

// SyncStatuses appends realtime status observations for one realtime data
// source, resolving each event against the chargepoints of the given static
// data source. Statuses are immutable once written; an event is inserted only
// if its timestamp is strictly greater than the latest stored status of the
// same chargepoint and realtime source, so re-delivery and out-of-order
// delivery are no-ops. Events for unknown sites or chargepoints are dropped
// with a warning; the chargepoint may simply not have been synced yet.
//
// Returns the number of statuses actually created.
func (s *Syncer) SyncStatuses(ctx context.Context, realtimeSource, chargepointSource string, statuses iter.Seq[models.StatusEvent]) (int, error) {
	created := 0
	prog := newProgress(s.log, "syncing statuses")
	for batch := range batches(statuses, s.batchSize) {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		err := s.store.InTx(ctx, func(q Queries) error {
			n, err := s.syncStatusBatch(ctx, q, realtimeSource, chargepointSource, batch)
			if err != nil {
				return err
			}
			created += n
			return nil
		})
		if err != nil {
			return created, fmt.Errorf("sync statuses batch: %w", err)
		}
		prog.Add(len(batch))
	}
	prog.Done()

	s.log.Info("status sync complete",
		zap.String("realtime_source", realtimeSource),
		zap.String("chargepoint_source", chargepointSource),
		zap.Int("statuses_created", created),
	)
	return created, nil
}

func (s *Syncer) syncStatusBatch(ctx context.Context, q Queries, realtimeSource, chargepointSource string, batch []models.StatusEvent) (int, error) {
	siteKeys := make([]string, 0, len(batch))
	seenSites := make(map[string]bool, len(batch))
	for _, ev := range batch {
		if !seenSites[ev.SiteKey] {
			seenSites[ev.SiteKey] = true
			siteKeys = append(siteKeys, ev.SiteKey)
		}
	}

	refs, err := q.ResolveChargepoints(ctx, chargepointSource, siteKeys)
	if err != nil {
		return 0, fmt.Errorf("resolve chargepoints: %w", err)
	}
	cpIDByKey := make(map[statusKey]int64, len(refs))
	cpIDs := make([]int64, 0, len(refs))
	for _, ref := range refs {
		cpIDByKey[statusKey{ref.SiteKey, ref.Key}] = ref.ID
		cpIDs = append(cpIDs, ref.ID)
	}

	// The monotonic-timestamp rule holds globally, so the latest stored
	// status must be consulted even for chargepoints last written in an
	// earlier batch (or an earlier sync).
	latest, err := q.LatestStatusTimestamps(ctx, realtimeSource, cpIDs)
	if err != nil {
		return 0, fmt.Errorf("fetch latest statuses: %w", err)
	}

	var toCreate []*models.RealtimeStatus
	for _, ev := range batch {
		cpID, ok := cpIDByKey[statusKey{ev.SiteKey, ev.ChargepointKey}]
		if !ok {
			s.log.Warn("chargepoint not found, ignoring status update",
				zap.String("chargepoint_source", chargepointSource),
				zap.String("site_key", ev.SiteKey),
				zap.String("chargepoint_key", ev.ChargepointKey),
			)
			continue
		}

		status := ev.Status
		status.ChargepointID = cpID
		status.DataSource = realtimeSource
		if status.Timestamp.IsZero() {
			status.Timestamp = time.Now().UTC()
		}

		if last, ok := latest[cpID]; ok && !status.Timestamp.After(last) {
			continue
		}
		latest[cpID] = status.Timestamp
		toCreate = append(toCreate, &status)
	}

	if len(toCreate) > 0 {
		if err := q.CreateStatuses(ctx, toCreate); err != nil {
			return 0, fmt.Errorf("create statuses: %w", err)
		}
	}
	return len(toCreate), nil
}
