package repository

import (
	"context"
	"fmt"

	"chargesync/internal/models"
)

// ChargepointsBySites bulk-fetches all chargepoints of a set of sites.
func (q queries) ChargepointsBySites(ctx context.Context, siteIDs []int64) ([]*models.Chargepoint, error) {
	if len(siteIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, site_id, id_from_source, evseid FROM chargepoints WHERE site_id = ANY($1)`
	rows, err := q.h.QueryContext(ctx, query, siteIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cps []*models.Chargepoint
	for rows.Next() {
		var cp models.Chargepoint
		if err := rows.Scan(&cp.ID, &cp.SiteID, &cp.IDFromSource, &cp.EVSEID); err != nil {
			return nil, err
		}
		cps = append(cps, &cp)
	}
	return cps, rows.Err()
}

// CreateChargepoints bulk-inserts chargepoints and fills their generated IDs.
func (q queries) CreateChargepoints(ctx context.Context, cps []*models.Chargepoint) error {
	if len(cps) == 0 {
		return nil
	}
	const cols = 3
	args := make([]any, 0, len(cps)*cols)
	for _, cp := range cps {
		args = append(args, cp.SiteID, cp.IDFromSource, cp.EVSEID)
	}
	query := `INSERT INTO chargepoints (site_id, id_from_source, evseid)
		VALUES ` + valuesClause(len(cps), cols, nil) + ` RETURNING id`

	rows, err := q.h.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= len(cps) {
			return fmt.Errorf("create chargepoints: more rows returned than inserted")
		}
		if err := rows.Scan(&cps[i].ID); err != nil {
			return err
		}
		i++
	}
	return rows.Err()
}

// UpdateChargepoints bulk-updates the non-identity columns of existing
// chargepoints.
func (q queries) UpdateChargepoints(ctx context.Context, cps []*models.Chargepoint) error {
	if len(cps) == 0 {
		return nil
	}
	const cols = 2
	casts := []string{"::bigint", "::text"}
	args := make([]any, 0, len(cps)*cols)
	for _, cp := range cps {
		args = append(args, cp.ID, cp.EVSEID)
	}
	query := `UPDATE chargepoints AS cp SET evseid = v.evseid
		FROM (VALUES ` + valuesClause(len(cps), cols, casts) + `) AS v(id, evseid)
		WHERE cp.id = v.id`

	_, err := q.h.ExecContext(ctx, query, args...)
	return err
}

// DeleteChargepoints deletes chargepoints by primary key; connectors cascade.
func (q queries) DeleteChargepoints(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `DELETE FROM chargepoints WHERE id = ANY($1)`
	_, err := q.h.ExecContext(ctx, query, ids)
	return err
}
