// Package sync implements the reconciliation engine that keeps the persisted
// charging-station store in step with freshly fetched upstream snapshots. It
// diffs three nested entity levels (site, chargepoint, connector) against the
// database in fixed-size batches, each committed in its own transaction, and
// gates realtime status inserts on strictly increasing timestamps per
// chargepoint.
//
// The package is pure with respect to global state: it only touches the
// [Store] it is given. Parsers produce the input sequences; the job driver
// schedules calls and serializes syncs of the same data source.
package sync

import (
	"context"
	"time"

	"chargesync/internal/models"
)

// ChargepointRef resolves a (site id_from_source, chargepoint id_from_source)
// pair to a stored chargepoint row.
type ChargepointRef struct {
	ID      int64
	SiteKey string
	Key     string
}

// Queries is the bulk store contract the sync engine runs against. All reads
// fetch complete row sets for a key set in one round trip; all writes are
// bulk operations. Deleting a site cascades to its chargepoints and
// connectors, deleting a chargepoint cascades to its connectors.
//
// Implemented by [repository.Store] for Postgres and by the in-memory fake in
// the package tests.
type Queries interface {
	// SiteIDs returns the primary keys of all sites of a data source. Used to
	// seed the deletion candidate set before the first batch.
	SiteIDs(ctx context.Context, dataSource string) (map[int64]struct{}, error)
	SitesByKeys(ctx context.Context, dataSource string, keys []string) ([]*models.Site, error)
	CreateSites(ctx context.Context, sites []*models.Site) error
	UpdateSites(ctx context.Context, sites []*models.Site) error
	DeleteSites(ctx context.Context, ids []int64) error

	ChargepointsBySites(ctx context.Context, siteIDs []int64) ([]*models.Chargepoint, error)
	CreateChargepoints(ctx context.Context, cps []*models.Chargepoint) error
	UpdateChargepoints(ctx context.Context, cps []*models.Chargepoint) error
	DeleteChargepoints(ctx context.Context, ids []int64) error

	ConnectorsBySites(ctx context.Context, siteIDs []int64) ([]*models.Connector, error)
	CreateConnectors(ctx context.Context, conns []*models.Connector) error
	UpdateConnectors(ctx context.Context, conns []*models.Connector) error
	DeleteConnectors(ctx context.Context, ids []int64) error

	// ResolveChargepoints joins chargepoints against their sites, filtered to
	// the given static data source and site keys.
	ResolveChargepoints(ctx context.Context, dataSource string, siteKeys []string) ([]ChargepointRef, error)
	// LatestStatusTimestamps returns the most recent status timestamp per
	// chargepoint for one realtime data source.
	LatestStatusTimestamps(ctx context.Context, dataSource string, chargepointIDs []int64) (map[int64]time.Time, error)
	CreateStatuses(ctx context.Context, statuses []*models.RealtimeStatus) error
}

// Store adds transaction scoping to [Queries]. Each sync batch runs inside
// one InTx call; a failure rolls back only that batch.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
}
