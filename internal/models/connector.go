package models

import "fmt"

// ConnectorType is the physical plug standard of a connector.
type ConnectorType string

const (
	ConnectorType1    ConnectorType = "Type 1"
	ConnectorCCSType1 ConnectorType = "CCS Type 1"
	ConnectorType2    ConnectorType = "Type 2"
	ConnectorCCSType2 ConnectorType = "CCS Type 2"
	ConnectorType3A   ConnectorType = "Type 3A"
	ConnectorType3C   ConnectorType = "Type 3C"
	ConnectorCHAdeMO  ConnectorType = "CHAdeMO"

	ConnectorSchuko ConnectorType = "Schuko"

	ConnectorNACS                ConnectorType = "NACS"
	ConnectorTeslaSuperchargerEU ConnectorType = "Tesla Supercharger EU"
	ConnectorTeslaRoadsterHPC    ConnectorType = "Tesla Roadster HPC"

	ConnectorCEESingle16 ConnectorType = "iec60309x2single16"
	ConnectorCEEThree16  ConnectorType = "iec60309x2three16"
	ConnectorCEEThree32  ConnectorType = "iec60309x2three32"
	ConnectorCEEThree64  ConnectorType = "iec60309x2three64"

	ConnectorOther ConnectorType = "other"
)

// ConnectorFormat distinguishes a fixed cable from a plain socket.
type ConnectorFormat string

const (
	FormatSocket ConnectorFormat = "socket"
	FormatCable  ConnectorFormat = "cable"
)

// Connector is one physical plug on a Chargepoint. Many upstreams do not
// assign stable connector IDs, so IDFromSource may be empty; in that case the
// sync engine falls back to attribute-set identity for the whole connector
// set of the chargepoint.
type Connector struct {
	ID            int64
	ChargepointID int64
	IDFromSource  string

	Type     ConnectorType
	Format   ConnectorFormat
	MaxPower float64 // watts
}

// ConnectorAttrs is the comparable attribute set of a connector, excluding
// the row ID and the owning chargepoint. Used as a multiset element by the
// fallback identity comparison.
type ConnectorAttrs struct {
	IDFromSource string
	Type         ConnectorType
	Format       ConnectorFormat
	MaxPower     float64
}

// Attrs extracts the comparable attribute set.
func (c *Connector) Attrs() ConnectorAttrs {
	return ConnectorAttrs{
		IDFromSource: c.IDFromSource,
		Type:         c.Type,
		Format:       c.Format,
		MaxPower:     c.MaxPower,
	}
}

// AttributesEqual reports whether the non-identity fields are identical.
// IDFromSource is part of the identity key here and therefore ignored.
func (c *Connector) AttributesEqual(o *Connector) bool {
	return c.Type == o.Type && c.Format == o.Format && c.MaxPower == o.MaxPower
}

// AdoptAttributes overwrites the non-identity fields with the incoming
// values, keeping ID, ChargepointID and IDFromSource.
func (c *Connector) AdoptAttributes(incoming *Connector) {
	c.Type = incoming.Type
	c.Format = incoming.Format
	c.MaxPower = incoming.MaxPower
}

// Validate checks the fields a connector row cannot be stored without.
func (c *Connector) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("connector %s: missing connector type", c.IDFromSource)
	}
	if c.MaxPower < 0 {
		return fmt.Errorf("connector %s: negative max power %v", c.IDFromSource, c.MaxPower)
	}
	return nil
}
