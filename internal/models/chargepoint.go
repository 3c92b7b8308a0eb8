package models

// Chargepoint is a single EVSE belonging to a Site. Identity within the store
// is (SiteID, IDFromSource); IDFromSource may be a fallback key generated by
// a parser when the upstream has no stable EVSE identifiers.
type Chargepoint struct {
	ID           int64
	SiteID       int64
	IDFromSource string

	// EVSEID is the normalized international identifier (see NormalizeEVSEID).
	// May be empty when the upstream does not report one.
	EVSEID string
}

// AttributesEqual reports whether the non-identity fields are identical.
func (c *Chargepoint) AttributesEqual(o *Chargepoint) bool {
	return c.EVSEID == o.EVSEID
}

// AdoptAttributes overwrites the non-identity fields with the incoming
// values, keeping ID, SiteID and IDFromSource.
func (c *Chargepoint) AdoptAttributes(incoming *Chargepoint) {
	c.EVSEID = incoming.EVSEID
}
