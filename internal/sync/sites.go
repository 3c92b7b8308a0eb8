package sync

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"chargesync/internal/models"
)

// Syncer reconciles parsed upstream snapshots against the store.
type Syncer struct {
	store     Store
	log       *zap.Logger
	batchSize int
}

// NewSyncer returns a Syncer processing batchSize tuples per transaction
// (DefaultBatchSize when <= 0).
func NewSyncer(store Store, batchSize int, log *zap.Logger) *Syncer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Syncer{store: store, log: log, batchSize: batchSize}
}

// SiteSyncResult reports the observable outcome of one SyncSites call.
type SiteSyncResult struct {
	SitesCreated int
	SitesDeleted int
	// RecordsSkipped counts input records dropped by validation.
	RecordsSkipped int
}

// SyncSites makes the store exactly reflect the given snapshot of one data
// source: new sites are created, changed ones updated, and, when
// deleteMissing is true, sites absent from the snapshot are deleted together
// with their chargepoints and connectors. Chargepoints and connectors are
// reconciled as nested steps per site.
//
// The input is consumed in a single pass and processed in batches, each in
// its own transaction; a mid-sync failure leaves earlier batches committed.
// deleteMissing must be false for incremental feeds that only ever report a
// subset, since absence from a partial feed must not be misread as removal.
//
// Malformed records are skipped with a warning before any write of their
// batch. Duplicate site IDs within the snapshot are flagged; the last
// occurrence wins.
func (s *Syncer) SyncSites(ctx context.Context, dataSource string, sites iter.Seq[models.SiteRecord], deleteMissing bool) (SiteSyncResult, error) {
	var res SiteSyncResult

	// Every existing site is a deletion candidate until the snapshot
	// mentions it. Later batches observe earlier batches' matches only
	// through this set, never by re-querying.
	candidates, err := s.store.SiteIDs(ctx, dataSource)
	if err != nil {
		return res, fmt.Errorf("snapshot existing sites: %w", err)
	}

	prog := newProgress(s.log, "syncing sites")
	for batch := range batches(sites, s.batchSize) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		valid := s.validateRecords(dataSource, batch, &res)
		if len(valid) > 0 {
			err := s.store.InTx(ctx, func(q Queries) error {
				created, err := s.syncSiteBatch(ctx, q, dataSource, valid, candidates)
				if err != nil {
					return err
				}
				res.SitesCreated += created
				return nil
			})
			if err != nil {
				return res, fmt.Errorf("sync sites batch: %w", err)
			}
		}
		prog.Add(len(batch))
	}
	prog.Done()

	if deleteMissing && len(candidates) > 0 {
		ids := make([]int64, 0, len(candidates))
		for id := range candidates {
			ids = append(ids, id)
		}
		err := s.store.InTx(ctx, func(q Queries) error {
			return q.DeleteSites(ctx, ids)
		})
		if err != nil {
			return res, fmt.Errorf("delete missing sites: %w", err)
		}
		res.SitesDeleted = len(ids)
	}

	s.log.Info("site sync complete",
		zap.String("data_source", dataSource),
		zap.Int("sites_created", res.SitesCreated),
		zap.Int("sites_deleted", res.SitesDeleted),
		zap.Int("records_skipped", res.RecordsSkipped),
	)
	return res, nil
}

// validateRecords normalizes each record and drops malformed ones before the
// batch touches the store, so a batch is either applied whole or the
// offending record is cleanly absent from it.
func (s *Syncer) validateRecords(dataSource string, batch []models.SiteRecord, res *SiteSyncResult) []models.SiteRecord {
	valid := batch[:0:0]
	for i := range batch {
		rec := &batch[i]
		if err := s.prepareRecord(rec); err != nil {
			s.log.Warn("skipping malformed site record",
				zap.String("data_source", dataSource),
				zap.String("id_from_source", rec.Site.IDFromSource),
				zap.Error(err),
			)
			res.RecordsSkipped++
			continue
		}
		valid = append(valid, *rec)
	}
	return valid
}

// prepareRecord brings a record into stored form. EVSEIDs arrive with
// upstream-specific separators; normalizing here keeps the stored values
// separator-free and the attribute diff stable across raw re-syncs.
func (s *Syncer) prepareRecord(rec *models.SiteRecord) error {
	rec.Site.SiteEVSEID = models.NormalizeEVSEID(rec.Site.SiteEVSEID)
	if err := rec.Site.Validate(); err != nil {
		return err
	}
	for i := range rec.Chargepoints {
		cp := &rec.Chargepoints[i]
		cp.Chargepoint.EVSEID = models.NormalizeEVSEID(cp.Chargepoint.EVSEID)
		for j := range cp.Connectors {
			if err := cp.Connectors[j].Validate(); err != nil {
				return fmt.Errorf("chargepoint %s: %w", cp.Chargepoint.IDFromSource, err)
			}
		}
	}
	return nil
}

func (s *Syncer) syncSiteBatch(ctx context.Context, q Queries, dataSource string, batch []models.SiteRecord, candidates map[int64]struct{}) (int, error) {
	// Last occurrence wins on duplicate site keys; nested chargepoint data
	// follows the winning record.
	recordByKey := make(map[string]*models.SiteRecord, len(batch))
	incoming := make([]*models.Site, 0, len(batch))
	keys := make([]string, 0, len(batch))
	for i := range batch {
		rec := &batch[i]
		rec.Site.DataSource = dataSource
		if _, dup := recordByKey[rec.Site.IDFromSource]; !dup {
			keys = append(keys, rec.Site.IDFromSource)
		}
		recordByKey[rec.Site.IDFromSource] = rec
		incoming = append(incoming, &rec.Site)
	}

	existingList, err := q.SitesByKeys(ctx, dataSource, keys)
	if err != nil {
		return 0, fmt.Errorf("fetch sites: %w", err)
	}
	existing := make(map[string]*models.Site, len(existingList))
	for _, site := range existingList {
		existing[site.IDFromSource] = site
	}

	d := diffByKey(existing, incoming, func(site *models.Site) string { return site.IDFromSource })
	for _, key := range d.duplicates {
		s.log.Warn("site id appears more than once in input data",
			zap.String("data_source", dataSource),
			zap.String("id_from_source", key),
		)
	}

	if len(d.creates) > 0 {
		if err := q.CreateSites(ctx, d.creates); err != nil {
			return 0, fmt.Errorf("create sites: %w", err)
		}
	}
	if len(d.updates) > 0 {
		if err := q.UpdateSites(ctx, d.updates); err != nil {
			return 0, fmt.Errorf("update sites: %w", err)
		}
	}

	siteByKey := make(map[string]*models.Site, len(keys))
	for _, site := range d.creates {
		siteByKey[site.IDFromSource] = site
	}
	d.matched(func(site *models.Site) {
		siteByKey[site.IDFromSource] = site
		if _, ok := candidates[site.ID]; !ok {
			// Matched by an earlier batch already: the key occurs more than
			// once across the snapshot.
			s.log.Warn("site id appears more than once in input data",
				zap.String("data_source", dataSource),
				zap.String("id_from_source", site.IDFromSource),
			)
		}
		delete(candidates, site.ID)
	})

	if err := s.syncChargepointBatch(ctx, q, dataSource, keys, recordByKey, siteByKey); err != nil {
		return 0, err
	}
	return len(d.creates), nil
}

// cpKey identifies a chargepoint within its site scope.
type cpKey struct {
	siteID int64
	key    string
}

// connItem associates a resolved chargepoint with its incoming connector set.
type connItem struct {
	cp         *models.Chargepoint
	connectors []models.Connector
}

// syncChargepointBatch reconciles the chargepoints of every site in the batch
// at once: sites typically carry few chargepoints, so one fetch per batch
// beats one per site.
func (s *Syncer) syncChargepointBatch(ctx context.Context, q Queries, dataSource string, siteKeys []string, recordByKey map[string]*models.SiteRecord, siteByKey map[string]*models.Site) error {
	siteIDs := make([]int64, 0, len(siteKeys))
	for _, key := range siteKeys {
		siteIDs = append(siteIDs, siteByKey[key].ID)
	}

	existingList, err := q.ChargepointsBySites(ctx, siteIDs)
	if err != nil {
		return fmt.Errorf("fetch chargepoints: %w", err)
	}
	existing := make(map[cpKey]*models.Chargepoint, len(existingList))
	deleteSet := make(map[int64]struct{}, len(existingList))
	for _, cp := range existingList {
		existing[cpKey{cp.SiteID, cp.IDFromSource}] = cp
		deleteSet[cp.ID] = struct{}{}
	}

	var incoming []*models.Chargepoint
	connectorsByCPKey := make(map[cpKey][]models.Connector)
	for _, siteKey := range siteKeys {
		site := siteByKey[siteKey]
		rec := recordByKey[siteKey]
		for i := range rec.Chargepoints {
			cpRec := &rec.Chargepoints[i]
			cpRec.Chargepoint.SiteID = site.ID
			incoming = append(incoming, &cpRec.Chargepoint)
			connectorsByCPKey[cpKey{site.ID, cpRec.Chargepoint.IDFromSource}] = cpRec.Connectors
		}
	}

	d := diffByKey(existing, incoming, func(cp *models.Chargepoint) cpKey { return cpKey{cp.SiteID, cp.IDFromSource} })
	for _, key := range d.duplicates {
		s.log.Warn("chargepoint id appears more than once in input data",
			zap.String("data_source", dataSource),
			zap.String("id_from_source", key.key),
		)
	}

	if len(d.creates) > 0 {
		if err := q.CreateChargepoints(ctx, d.creates); err != nil {
			return fmt.Errorf("create chargepoints: %w", err)
		}
	}
	if len(d.updates) > 0 {
		if err := q.UpdateChargepoints(ctx, d.updates); err != nil {
			return fmt.Errorf("update chargepoints: %w", err)
		}
	}

	items := make([]connItem, 0, len(connectorsByCPKey))
	appendItem := func(cp *models.Chargepoint) {
		items = append(items, connItem{cp: cp, connectors: connectorsByCPKey[cpKey{cp.SiteID, cp.IDFromSource}]})
	}
	for _, cp := range d.creates {
		appendItem(cp)
	}
	d.matched(func(cp *models.Chargepoint) {
		delete(deleteSet, cp.ID)
		appendItem(cp)
	})

	if err := s.syncConnectorBatch(ctx, q, dataSource, siteIDs, items); err != nil {
		return err
	}

	// Chargepoints absent from the snapshot; their connectors were already
	// removed by the connector pass.
	if len(deleteSet) > 0 {
		ids := make([]int64, 0, len(deleteSet))
		for id := range deleteSet {
			ids = append(ids, id)
		}
		if err := q.DeleteChargepoints(ctx, ids); err != nil {
			return fmt.Errorf("delete chargepoints: %w", err)
		}
	}
	return nil
}

// syncConnectorBatch reconciles the connectors of every chargepoint in the
// batch. Chargepoints whose incoming connectors all carry IDs are diffed by
// identity key; the rest fall back to whole-set attribute comparison,
// replacing the stored set when it differs.
func (s *Syncer) syncConnectorBatch(ctx context.Context, q Queries, dataSource string, siteIDs []int64, items []connItem) error {
	existingList, err := q.ConnectorsBySites(ctx, siteIDs)
	if err != nil {
		return fmt.Errorf("fetch connectors: %w", err)
	}
	existingByCP := make(map[int64][]*models.Connector)
	deleteSet := make(map[int64]struct{}, len(existingList))
	for _, conn := range existingList {
		existingByCP[conn.ChargepointID] = append(existingByCP[conn.ChargepointID], conn)
		deleteSet[conn.ID] = struct{}{}
	}

	var creates, updates []*models.Connector
	for _, item := range items {
		incoming := make([]*models.Connector, len(item.connectors))
		for i := range item.connectors {
			conn := item.connectors[i]
			conn.ChargepointID = item.cp.ID
			incoming[i] = &conn
		}

		if allConnectorsKeyed(incoming) {
			scope := make(map[string]*models.Connector, len(existingByCP[item.cp.ID]))
			for _, ex := range existingByCP[item.cp.ID] {
				scope[ex.IDFromSource] = ex
			}
			d := diffByKey(scope, incoming, func(c *models.Connector) string { return c.IDFromSource })
			for _, key := range d.duplicates {
				s.log.Warn("connector id appears more than once in input data",
					zap.String("data_source", dataSource),
					zap.String("id_from_source", key),
				)
			}
			creates = append(creates, d.creates...)
			updates = append(updates, d.updates...)
			d.matched(func(c *models.Connector) {
				delete(deleteSet, c.ID)
			})
			continue
		}

		// Fallback identity: no per-connector diffing possible. Keep the
		// stored set when it matches as a multiset, replace it wholesale
		// otherwise (the unmatched rows stay in deleteSet).
		ex := existingByCP[item.cp.ID]
		if connectorSetsEqual(ex, incoming) {
			for _, conn := range ex {
				delete(deleteSet, conn.ID)
			}
			continue
		}
		creates = append(creates, incoming...)
	}

	if len(creates) > 0 {
		if err := q.CreateConnectors(ctx, creates); err != nil {
			return fmt.Errorf("create connectors: %w", err)
		}
	}
	if len(updates) > 0 {
		if err := q.UpdateConnectors(ctx, updates); err != nil {
			return fmt.Errorf("update connectors: %w", err)
		}
	}
	if len(deleteSet) > 0 {
		ids := make([]int64, 0, len(deleteSet))
		for id := range deleteSet {
			ids = append(ids, id)
		}
		if err := q.DeleteConnectors(ctx, ids); err != nil {
			return fmt.Errorf("delete connectors: %w", err)
		}
	}
	return nil
}
