package models

import "fmt"

// Site is one physical charging location as reported by a single upstream
// data source. The same physical location reported by two sources produces
// two rows; cross-source matching is a separate aggregation concern.
//
// Identity within the store is (DataSource, IDFromSource).
type Site struct {
	ID           int64
	DataSource   string
	IDFromSource string

	Name      string
	Latitude  float64
	Longitude float64

	// SiteEVSEID is the normalized station-level EVSEID, if the upstream
	// provides one. May be empty.
	SiteEVSEID string

	Street  string
	Zipcode string
	City    string
	Country string

	Network  string
	Operator string

	OpeningHours       string
	LicenseAttribution string
}

// AttributesEqual reports whether the non-identity fields of both sites are
// identical. ID, DataSource and IDFromSource are ignored.
func (s *Site) AttributesEqual(o *Site) bool {
	return s.Name == o.Name &&
		s.Latitude == o.Latitude &&
		s.Longitude == o.Longitude &&
		s.SiteEVSEID == o.SiteEVSEID &&
		s.Street == o.Street &&
		s.Zipcode == o.Zipcode &&
		s.City == o.City &&
		s.Country == o.Country &&
		s.Network == o.Network &&
		s.Operator == o.Operator &&
		s.OpeningHours == o.OpeningHours &&
		s.LicenseAttribution == o.LicenseAttribution
}

// AdoptAttributes overwrites the non-identity fields with the values from the
// incoming site, keeping ID, DataSource and IDFromSource.
func (s *Site) AdoptAttributes(incoming *Site) {
	s.Name = incoming.Name
	s.Latitude = incoming.Latitude
	s.Longitude = incoming.Longitude
	s.SiteEVSEID = incoming.SiteEVSEID
	s.Street = incoming.Street
	s.Zipcode = incoming.Zipcode
	s.City = incoming.City
	s.Country = incoming.Country
	s.Network = incoming.Network
	s.Operator = incoming.Operator
	s.OpeningHours = incoming.OpeningHours
	s.LicenseAttribution = incoming.LicenseAttribution
}

// Validate checks the fields a site row cannot be stored without.
func (s *Site) Validate() error {
	if s.IDFromSource == "" {
		return fmt.Errorf("site: missing id_from_source")
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("site %s: latitude %v out of range", s.IDFromSource, s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("site %s: longitude %v out of range", s.IDFromSource, s.Longitude)
	}
	return nil
}
