package sync

import (
	"context"
	"fmt"
	"time"

	"chargesync/internal/models"
)

// fakeStore is an in-memory Store with the same cascade semantics as the
// Postgres schema: deleting a site removes its chargepoints and connectors,
// deleting a chargepoint removes its connectors. IDs are assigned
// sequentially on create.
type fakeStore struct {
	nextID       int64
	sites        map[int64]*models.Site
	chargepoints map[int64]*models.Chargepoint
	connectors   map[int64]*models.Connector
	statuses     []*models.RealtimeStatus

	txCount int
	failOn  string // method name that should return an error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sites:        make(map[int64]*models.Site),
		chargepoints: make(map[int64]*models.Chargepoint),
		connectors:   make(map[int64]*models.Connector),
	}
}

func (f *fakeStore) fail(method string) error {
	if f.failOn == method {
		return fmt.Errorf("%s: injected failure", method)
	}
	return nil
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	f.txCount++
	return fn(f)
}

// --- Sites ------------------------------------------------------------------

func (f *fakeStore) SiteIDs(_ context.Context, dataSource string) (map[int64]struct{}, error) {
	if err := f.fail("SiteIDs"); err != nil {
		return nil, err
	}
	ids := make(map[int64]struct{})
	for id, site := range f.sites {
		if site.DataSource == dataSource {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

func (f *fakeStore) SitesByKeys(_ context.Context, dataSource string, keys []string) ([]*models.Site, error) {
	if err := f.fail("SitesByKeys"); err != nil {
		return nil, err
	}
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}
	var result []*models.Site
	for _, site := range f.sites {
		if site.DataSource == dataSource && keySet[site.IDFromSource] {
			cp := *site
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (f *fakeStore) CreateSites(_ context.Context, sites []*models.Site) error {
	if err := f.fail("CreateSites"); err != nil {
		return err
	}
	for _, site := range sites {
		site.ID = f.id()
		cp := *site
		f.sites[site.ID] = &cp
	}
	return nil
}

func (f *fakeStore) UpdateSites(_ context.Context, sites []*models.Site) error {
	if err := f.fail("UpdateSites"); err != nil {
		return err
	}
	for _, site := range sites {
		if _, ok := f.sites[site.ID]; !ok {
			return fmt.Errorf("update of unknown site %d", site.ID)
		}
		cp := *site
		f.sites[site.ID] = &cp
	}
	return nil
}

func (f *fakeStore) DeleteSites(_ context.Context, ids []int64) error {
	if err := f.fail("DeleteSites"); err != nil {
		return err
	}
	for _, id := range ids {
		delete(f.sites, id)
		for cpID, cp := range f.chargepoints {
			if cp.SiteID == id {
				f.deleteChargepoint(cpID)
			}
		}
	}
	return nil
}

// --- Chargepoints -----------------------------------------------------------

func (f *fakeStore) ChargepointsBySites(_ context.Context, siteIDs []int64) ([]*models.Chargepoint, error) {
	if err := f.fail("ChargepointsBySites"); err != nil {
		return nil, err
	}
	idSet := make(map[int64]bool, len(siteIDs))
	for _, id := range siteIDs {
		idSet[id] = true
	}
	var result []*models.Chargepoint
	for _, cp := range f.chargepoints {
		if idSet[cp.SiteID] {
			c := *cp
			result = append(result, &c)
		}
	}
	return result, nil
}

func (f *fakeStore) CreateChargepoints(_ context.Context, cps []*models.Chargepoint) error {
	if err := f.fail("CreateChargepoints"); err != nil {
		return err
	}
	for _, cp := range cps {
		cp.ID = f.id()
		c := *cp
		f.chargepoints[cp.ID] = &c
	}
	return nil
}

func (f *fakeStore) UpdateChargepoints(_ context.Context, cps []*models.Chargepoint) error {
	if err := f.fail("UpdateChargepoints"); err != nil {
		return err
	}
	for _, cp := range cps {
		if _, ok := f.chargepoints[cp.ID]; !ok {
			return fmt.Errorf("update of unknown chargepoint %d", cp.ID)
		}
		c := *cp
		f.chargepoints[cp.ID] = &c
	}
	return nil
}

func (f *fakeStore) DeleteChargepoints(_ context.Context, ids []int64) error {
	if err := f.fail("DeleteChargepoints"); err != nil {
		return err
	}
	for _, id := range ids {
		f.deleteChargepoint(id)
	}
	return nil
}

func (f *fakeStore) deleteChargepoint(id int64) {
	delete(f.chargepoints, id)
	for connID, conn := range f.connectors {
		if conn.ChargepointID == id {
			delete(f.connectors, connID)
		}
	}
}

// --- Connectors -------------------------------------------------------------

func (f *fakeStore) ConnectorsBySites(_ context.Context, siteIDs []int64) ([]*models.Connector, error) {
	if err := f.fail("ConnectorsBySites"); err != nil {
		return nil, err
	}
	idSet := make(map[int64]bool, len(siteIDs))
	for _, id := range siteIDs {
		idSet[id] = true
	}
	var result []*models.Connector
	for _, conn := range f.connectors {
		cp, ok := f.chargepoints[conn.ChargepointID]
		if ok && idSet[cp.SiteID] {
			c := *conn
			result = append(result, &c)
		}
	}
	return result, nil
}

func (f *fakeStore) CreateConnectors(_ context.Context, conns []*models.Connector) error {
	if err := f.fail("CreateConnectors"); err != nil {
		return err
	}
	for _, conn := range conns {
		conn.ID = f.id()
		c := *conn
		f.connectors[conn.ID] = &c
	}
	return nil
}

func (f *fakeStore) UpdateConnectors(_ context.Context, conns []*models.Connector) error {
	if err := f.fail("UpdateConnectors"); err != nil {
		return err
	}
	for _, conn := range conns {
		if _, ok := f.connectors[conn.ID]; !ok {
			return fmt.Errorf("update of unknown connector %d", conn.ID)
		}
		c := *conn
		f.connectors[conn.ID] = &c
	}
	return nil
}

func (f *fakeStore) DeleteConnectors(_ context.Context, ids []int64) error {
	if err := f.fail("DeleteConnectors"); err != nil {
		return err
	}
	for _, id := range ids {
		delete(f.connectors, id)
	}
	return nil
}

// --- Statuses ---------------------------------------------------------------

func (f *fakeStore) ResolveChargepoints(_ context.Context, dataSource string, siteKeys []string) ([]ChargepointRef, error) {
	if err := f.fail("ResolveChargepoints"); err != nil {
		return nil, err
	}
	keySet := make(map[string]bool, len(siteKeys))
	for _, k := range siteKeys {
		keySet[k] = true
	}
	var refs []ChargepointRef
	for _, cp := range f.chargepoints {
		site, ok := f.sites[cp.SiteID]
		if !ok || site.DataSource != dataSource || !keySet[site.IDFromSource] {
			continue
		}
		refs = append(refs, ChargepointRef{ID: cp.ID, SiteKey: site.IDFromSource, Key: cp.IDFromSource})
	}
	return refs, nil
}

func (f *fakeStore) LatestStatusTimestamps(_ context.Context, dataSource string, chargepointIDs []int64) (map[int64]time.Time, error) {
	if err := f.fail("LatestStatusTimestamps"); err != nil {
		return nil, err
	}
	idSet := make(map[int64]bool, len(chargepointIDs))
	for _, id := range chargepointIDs {
		idSet[id] = true
	}
	latest := make(map[int64]time.Time)
	for _, st := range f.statuses {
		if st.DataSource != dataSource || !idSet[st.ChargepointID] {
			continue
		}
		if last, ok := latest[st.ChargepointID]; !ok || st.Timestamp.After(last) {
			latest[st.ChargepointID] = st.Timestamp
		}
	}
	return latest, nil
}

func (f *fakeStore) CreateStatuses(_ context.Context, statuses []*models.RealtimeStatus) error {
	if err := f.fail("CreateStatuses"); err != nil {
		return err
	}
	for _, st := range statuses {
		st.ID = f.id()
		c := *st
		f.statuses = append(f.statuses, &c)
	}
	return nil
}

// --- Test helpers -----------------------------------------------------------

func (f *fakeStore) siteByKey(dataSource, key string) *models.Site {
	for _, site := range f.sites {
		if site.DataSource == dataSource && site.IDFromSource == key {
			return site
		}
	}
	return nil
}

func (f *fakeStore) chargepointsOf(siteID int64) []*models.Chargepoint {
	var result []*models.Chargepoint
	for _, cp := range f.chargepoints {
		if cp.SiteID == siteID {
			result = append(result, cp)
		}
	}
	return result
}

func (f *fakeStore) connectorsOf(cpID int64) []*models.Connector {
	var result []*models.Connector
	for _, conn := range f.connectors {
		if conn.ChargepointID == cpID {
			result = append(result, conn)
		}
	}
	return result
}

func (f *fakeStore) statusesOf(cpID int64) []*models.RealtimeStatus {
	var result []*models.RealtimeStatus
	for _, st := range f.statuses {
		if st.ChargepointID == cpID {
			result = append(result, st)
		}
	}
	return result
}
