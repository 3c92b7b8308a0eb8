// Package jobs drives full sync runs for configured sources: acquiring the
// per-source lease, invoking the source's fetchers and feeding the results
// through the sync engine.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"chargesync/internal/lease"
	"chargesync/internal/models"
	"chargesync/internal/repository"
	"chargesync/internal/sources"
	"chargesync/internal/sync"
)

// checkpointInterval throttles update-state writes and paces lease extension
// during long-running jobs. Must stay well below the lease TTL.
const checkpointInterval = time.Minute

// siteSyncer is the sync engine surface the runner drives.
type siteSyncer interface {
	SyncSites(ctx context.Context, dataSource string, sites iter.Seq[models.SiteRecord], deleteMissing bool) (sync.SiteSyncResult, error)
	SyncStatuses(ctx context.Context, realtimeSource, chargepointSource string, statuses iter.Seq[models.StatusEvent]) (int, error)
}

// updateStates persists per-source sync state.
type updateStates interface {
	Get(ctx context.Context, dataSource string) (*repository.UpdateState, error)
	Touch(ctx context.Context, dataSource string, at time.Time, push bool) error
}

// statusPurger removes aged realtime statuses.
type statusPurger interface {
	PurgeStatusesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Runner executes sync jobs against registered sources.
type Runner struct {
	registry *sources.Registry
	syncer   siteSyncer
	leases   *lease.Manager
	states   updateStates
	store    statusPurger
	logger   *zap.Logger

	extendInterval time.Duration
}

// NewRunner builds a job runner.
func NewRunner(registry *sources.Registry, syncer siteSyncer, leases *lease.Manager, states updateStates, store statusPurger, logger *zap.Logger) *Runner {
	return &Runner{
		registry: registry,
		syncer:   syncer,
		leases:   leases,
		states:   states,
		store:    store,
		logger:   logger,

		extendInterval: checkpointInterval,
	}
}

// Cleanup deletes realtime statuses older than retention, keeping the most
// recent status per chargepoint regardless of age.
func (r *Runner) Cleanup(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention)
	deleted, err := r.store.PurgeStatusesBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge statuses: %w", err)
	}
	r.logger.Info("status cleanup finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted))
	return nil
}

// LoadSource runs one full sync of a source: the static snapshot if the
// source has one, then a batch of realtime statuses if it has a dynamic
// feed. Returns lease.ErrHeld unchanged when another worker holds the
// source.
func (r *Runner) LoadSource(ctx context.Context, sourceID string) error {
	src, err := r.registry.Get(sourceID)
	if err != nil {
		return err
	}
	if src.Static == nil && src.Dynamic == nil {
		return fmt.Errorf("source %s has no fetchable feed", sourceID)
	}

	held, err := r.leases.Acquire(ctx, src.ID)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := held.Release(releaseCtx); err != nil {
			r.logger.Warn("failed to release lease", zap.String("data_source", src.ID), zap.Error(err))
		}
	}()

	// A full load of a large source can outlast the lease TTL; keep the
	// lease alive for the duration of the run, same as a stream does.
	extendCtx, stopExtend := context.WithCancel(ctx)
	defer stopExtend()
	go r.extendLoop(extendCtx, held, src.ID)

	start := time.Now()
	log := r.logger.With(zap.String("data_source", src.ID))

	switch state, err := r.states.Get(ctx, src.ID); {
	case errors.Is(err, repository.ErrUpdateStateNotFound):
		log.Info("first sync of this source")
	case err != nil:
		return fmt.Errorf("read update state %s: %w", src.ID, err)
	default:
		log.Info("starting sync", zap.Duration("since_last_update", time.Since(state.LastUpdate)))
	}

	if src.Static != nil {
		records, err := src.Static.FetchStatic(ctx)
		if err != nil {
			return fmt.Errorf("fetch static %s: %w", src.ID, err)
		}
		result, err := r.syncer.SyncSites(ctx, src.ID, records, src.DeleteMissing)
		if err != nil {
			return fmt.Errorf("sync sites %s: %w", src.ID, err)
		}
		log.Info("static sync finished",
			zap.Int("sites_created", result.SitesCreated),
			zap.Int("sites_deleted", result.SitesDeleted),
			zap.Int("records_skipped", result.RecordsSkipped))
	}

	if src.Dynamic != nil {
		statuses, err := src.Dynamic.FetchDynamic(ctx)
		if err != nil {
			return fmt.Errorf("fetch dynamic %s: %w", src.ID, err)
		}
		accepted, err := r.syncer.SyncStatuses(ctx, src.ID, src.ChargepointSource(), statuses)
		if err != nil {
			return fmt.Errorf("sync statuses %s: %w", src.ID, err)
		}
		log.Info("dynamic sync finished", zap.Int("statuses_accepted", accepted))
	}

	if err := r.states.Touch(ctx, src.ID, time.Now().UTC(), false); err != nil {
		return fmt.Errorf("touch update state %s: %w", src.ID, err)
	}
	log.Info("sync run complete", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// StreamSource connects to a source's realtime stream and stores each event
// as it arrives. Blocks until ctx is cancelled.
func (r *Runner) StreamSource(ctx context.Context, sourceID string) error {
	src, err := r.registry.Get(sourceID)
	if err != nil {
		return err
	}
	if src.Stream == nil {
		return fmt.Errorf("source %s has no realtime stream", sourceID)
	}

	held, err := r.leases.Acquire(ctx, src.ID)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := held.Release(releaseCtx); err != nil {
			r.logger.Warn("failed to release lease", zap.String("data_source", src.ID), zap.Error(err))
		}
	}()

	extendCtx, stopExtend := context.WithCancel(ctx)
	defer stopExtend()
	go r.extendLoop(extendCtx, held, src.ID)

	var lastCheckpoint time.Time
	chargepointSource := src.ChargepointSource()

	emit := func(event models.StatusEvent) error {
		accepted, err := r.syncer.SyncStatuses(ctx, src.ID, chargepointSource, oneEvent(event))
		if err != nil {
			return err
		}
		if accepted > 0 && time.Since(lastCheckpoint) >= checkpointInterval {
			lastCheckpoint = time.Now()
			if err := r.states.Touch(ctx, src.ID, time.Now().UTC(), true); err != nil {
				r.logger.Warn("failed to checkpoint stream", zap.String("data_source", src.ID), zap.Error(err))
			}
		}
		return nil
	}

	err = src.Stream.Stream(ctx, emit)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stream %s: %w", src.ID, err)
	}
	return nil
}

func (r *Runner) extendLoop(ctx context.Context, held *lease.Lease, dataSource string) {
	ticker := time.NewTicker(r.extendInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := held.Extend(ctx); err != nil {
				r.logger.Warn("failed to extend lease", zap.String("data_source", dataSource), zap.Error(err))
			}
		}
	}
}

func oneEvent(event models.StatusEvent) func(func(models.StatusEvent) bool) {
	return func(yield func(models.StatusEvent) bool) {
		yield(event)
	}
}
