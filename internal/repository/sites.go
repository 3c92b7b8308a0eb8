package repository

import (
	"context"
	"fmt"

	"chargesync/internal/models"
)

const siteColumns = `id, data_source, id_from_source, name, latitude, longitude, site_evseid,
	street, zipcode, city, country, network, operator, opening_hours, license_attribution`

func scanSite(scan func(dest ...any) error) (*models.Site, error) {
	var s models.Site
	err := scan(
		&s.ID, &s.DataSource, &s.IDFromSource, &s.Name, &s.Latitude, &s.Longitude, &s.SiteEVSEID,
		&s.Street, &s.Zipcode, &s.City, &s.Country, &s.Network, &s.Operator, &s.OpeningHours, &s.LicenseAttribution,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SiteIDs returns the primary keys of all sites belonging to a data source.
func (q queries) SiteIDs(ctx context.Context, dataSource string) (map[int64]struct{}, error) {
	const query = `SELECT id FROM charging_sites WHERE data_source = $1`
	rows, err := q.h.QueryContext(ctx, query, dataSource)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// SitesByKeys bulk-fetches the sites of one data source matching a key set.
func (q queries) SitesByKeys(ctx context.Context, dataSource string, keys []string) ([]*models.Site, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	query := `SELECT ` + siteColumns + ` FROM charging_sites WHERE data_source = $1 AND id_from_source = ANY($2)`
	rows, err := q.h.QueryContext(ctx, query, dataSource, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*models.Site
	for rows.Next() {
		site, err := scanSite(rows.Scan)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// CreateSites bulk-inserts sites and fills their generated IDs.
func (q queries) CreateSites(ctx context.Context, sites []*models.Site) error {
	if len(sites) == 0 {
		return nil
	}
	const cols = 14
	args := make([]any, 0, len(sites)*cols)
	for _, s := range sites {
		args = append(args,
			s.DataSource, s.IDFromSource, s.Name, s.Latitude, s.Longitude, s.SiteEVSEID,
			s.Street, s.Zipcode, s.City, s.Country, s.Network, s.Operator, s.OpeningHours, s.LicenseAttribution,
		)
	}
	query := `INSERT INTO charging_sites (data_source, id_from_source, name, latitude, longitude, site_evseid,
		street, zipcode, city, country, network, operator, opening_hours, license_attribution)
		VALUES ` + valuesClause(len(sites), cols, nil) + ` RETURNING id`

	rows, err := q.h.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= len(sites) {
			return fmt.Errorf("create sites: more rows returned than inserted")
		}
		if err := rows.Scan(&sites[i].ID); err != nil {
			return err
		}
		i++
	}
	return rows.Err()
}

// UpdateSites bulk-updates the non-identity columns of existing sites.
func (q queries) UpdateSites(ctx context.Context, sites []*models.Site) error {
	if len(sites) == 0 {
		return nil
	}
	const cols = 13
	casts := []string{"::bigint", "::text", "::double precision", "::double precision", "::text",
		"::text", "::text", "::text", "::text", "::text", "::text", "::text", "::text"}
	args := make([]any, 0, len(sites)*cols)
	for _, s := range sites {
		args = append(args,
			s.ID, s.Name, s.Latitude, s.Longitude, s.SiteEVSEID,
			s.Street, s.Zipcode, s.City, s.Country, s.Network, s.Operator, s.OpeningHours, s.LicenseAttribution,
		)
	}
	query := `UPDATE charging_sites AS s SET
			name = v.name, latitude = v.latitude, longitude = v.longitude, site_evseid = v.site_evseid,
			street = v.street, zipcode = v.zipcode, city = v.city, country = v.country,
			network = v.network, operator = v.operator, opening_hours = v.opening_hours,
			license_attribution = v.license_attribution
		FROM (VALUES ` + valuesClause(len(sites), cols, casts) + `) AS v(id, name, latitude, longitude, site_evseid,
			street, zipcode, city, country, network, operator, opening_hours, license_attribution)
		WHERE s.id = v.id`

	_, err := q.h.ExecContext(ctx, query, args...)
	return err
}

// DeleteSites deletes sites by primary key; chargepoints and connectors
// cascade.
func (q queries) DeleteSites(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `DELETE FROM charging_sites WHERE id = ANY($1)`
	_, err := q.h.ExecContext(ctx, query, ids)
	return err
}
