package repository

import (
	"context"
	"fmt"

	"chargesync/internal/models"
)

// ConnectorsBySites bulk-fetches all connectors under a set of sites.
func (q queries) ConnectorsBySites(ctx context.Context, siteIDs []int64) ([]*models.Connector, error) {
	if len(siteIDs) == 0 {
		return nil, nil
	}
	const query = `
		SELECT c.id, c.chargepoint_id, c.id_from_source, c.connector_type, c.connector_format, c.max_power
		FROM connectors c
		JOIN chargepoints cp ON cp.id = c.chargepoint_id
		WHERE cp.site_id = ANY($1)
	`
	rows, err := q.h.QueryContext(ctx, query, siteIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []*models.Connector
	for rows.Next() {
		var c models.Connector
		if err := rows.Scan(&c.ID, &c.ChargepointID, &c.IDFromSource, &c.Type, &c.Format, &c.MaxPower); err != nil {
			return nil, err
		}
		conns = append(conns, &c)
	}
	return conns, rows.Err()
}

// CreateConnectors bulk-inserts connectors and fills their generated IDs.
func (q queries) CreateConnectors(ctx context.Context, conns []*models.Connector) error {
	if len(conns) == 0 {
		return nil
	}
	const cols = 5
	args := make([]any, 0, len(conns)*cols)
	for _, c := range conns {
		args = append(args, c.ChargepointID, c.IDFromSource, string(c.Type), string(c.Format), c.MaxPower)
	}
	query := `INSERT INTO connectors (chargepoint_id, id_from_source, connector_type, connector_format, max_power)
		VALUES ` + valuesClause(len(conns), cols, nil) + ` RETURNING id`

	rows, err := q.h.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= len(conns) {
			return fmt.Errorf("create connectors: more rows returned than inserted")
		}
		if err := rows.Scan(&conns[i].ID); err != nil {
			return err
		}
		i++
	}
	return rows.Err()
}

// UpdateConnectors bulk-updates the non-identity columns of existing
// connectors.
func (q queries) UpdateConnectors(ctx context.Context, conns []*models.Connector) error {
	if len(conns) == 0 {
		return nil
	}
	const cols = 4
	casts := []string{"::bigint", "::text", "::text", "::double precision"}
	args := make([]any, 0, len(conns)*cols)
	for _, c := range conns {
		args = append(args, c.ID, string(c.Type), string(c.Format), c.MaxPower)
	}
	query := `UPDATE connectors AS c SET
			connector_type = v.connector_type, connector_format = v.connector_format, max_power = v.max_power
		FROM (VALUES ` + valuesClause(len(conns), cols, casts) + `) AS v(id, connector_type, connector_format, max_power)
		WHERE c.id = v.id`

	_, err := q.h.ExecContext(ctx, query, args...)
	return err
}

// DeleteConnectors deletes connectors by primary key.
func (q queries) DeleteConnectors(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `DELETE FROM connectors WHERE id = ANY($1)`
	_, err := q.h.ExecContext(ctx, query, ids)
	return err
}
