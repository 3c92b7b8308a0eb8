package repository

import (
	"context"
	"time"

	"chargesync/internal/models"
	"chargesync/internal/sync"
)

// ResolveChargepoints joins chargepoints against their sites, filtered to the
// given static data source and site key set.
func (q queries) ResolveChargepoints(ctx context.Context, dataSource string, siteKeys []string) ([]sync.ChargepointRef, error) {
	if len(siteKeys) == 0 {
		return nil, nil
	}
	const query = `
		SELECT cp.id, s.id_from_source, cp.id_from_source
		FROM chargepoints cp
		JOIN charging_sites s ON s.id = cp.site_id
		WHERE s.data_source = $1 AND s.id_from_source = ANY($2)
	`
	rows, err := q.h.QueryContext(ctx, query, dataSource, siteKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []sync.ChargepointRef
	for rows.Next() {
		var ref sync.ChargepointRef
		if err := rows.Scan(&ref.ID, &ref.SiteKey, &ref.Key); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// LatestStatusTimestamps returns the most recent status timestamp per
// chargepoint for one realtime data source, as one DISTINCT ON query.
func (q queries) LatestStatusTimestamps(ctx context.Context, dataSource string, chargepointIDs []int64) (map[int64]time.Time, error) {
	if len(chargepointIDs) == 0 {
		return map[int64]time.Time{}, nil
	}
	const query = `
		SELECT DISTINCT ON (chargepoint_id) chargepoint_id, observed_at
		FROM realtime_statuses
		WHERE data_source = $1 AND chargepoint_id = ANY($2)
		ORDER BY chargepoint_id, observed_at DESC
	`
	rows, err := q.h.QueryContext(ctx, query, dataSource, chargepointIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	latest := make(map[int64]time.Time)
	for rows.Next() {
		var id int64
		var ts time.Time
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, err
		}
		latest[id] = ts
	}
	return latest, rows.Err()
}

// CreateStatuses bulk-inserts realtime statuses. Statuses are append-only;
// there is no update or delete in the sync path.
func (q queries) CreateStatuses(ctx context.Context, statuses []*models.RealtimeStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	const cols = 4
	args := make([]any, 0, len(statuses)*cols)
	for _, st := range statuses {
		args = append(args, st.ChargepointID, st.DataSource, string(st.Status), st.Timestamp)
	}
	query := `INSERT INTO realtime_statuses (chargepoint_id, data_source, status, observed_at)
		VALUES ` + valuesClause(len(statuses), cols, nil)

	_, err := q.h.ExecContext(ctx, query, args...)
	return err
}

// PurgeStatusesBefore deletes statuses observed before the cutoff, always
// keeping the latest row per chargepoint so the current state survives the
// retention window. Returns the number of rows deleted.
func (s *Store) PurgeStatusesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		DELETE FROM realtime_statuses
		WHERE observed_at < $1
		  AND id NOT IN (
			SELECT DISTINCT ON (chargepoint_id) id
			FROM realtime_statuses
			ORDER BY chargepoint_id, observed_at DESC
		  )
	`
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
