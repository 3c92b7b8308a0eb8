package models

import "time"

// ChargeStatus is the operational state of an EVSE, as defined in OCPI.
type ChargeStatus string

const (
	// StatusAvailable: the EVSE is able to start a new charging session.
	StatusAvailable ChargeStatus = "AVAILABLE"
	// StatusBlocked: the EVSE is not accessible because of a physical
	// barrier, i.e. a car.
	StatusBlocked ChargeStatus = "BLOCKED"
	// StatusCharging: the EVSE is in use.
	StatusCharging ChargeStatus = "CHARGING"
	// StatusInoperative: the EVSE is not yet active or no longer available.
	StatusInoperative ChargeStatus = "INOPERATIVE"
	// StatusOutOfOrder: the EVSE is currently out of order.
	StatusOutOfOrder ChargeStatus = "OUTOFORDER"
	// StatusPlanned: the EVSE is planned, will be operating soon.
	StatusPlanned ChargeStatus = "PLANNED"
	// StatusRemoved: the EVSE is discontinued/removed.
	StatusRemoved ChargeStatus = "REMOVED"
	// StatusReserved: the EVSE is reserved for a particular EV driver.
	StatusReserved ChargeStatus = "RESERVED"
	// StatusUnknown: no status information available (also used when offline).
	StatusUnknown ChargeStatus = "UNKNOWN"
)

var knownStatuses = map[ChargeStatus]struct{}{
	StatusAvailable:   {},
	StatusBlocked:     {},
	StatusCharging:    {},
	StatusInoperative: {},
	StatusOutOfOrder:  {},
	StatusPlanned:     {},
	StatusRemoved:     {},
	StatusReserved:    {},
	StatusUnknown:     {},
}

// ParseChargeStatus maps a raw status string to a known ChargeStatus,
// defaulting to StatusUnknown for anything unrecognized.
func ParseChargeStatus(raw string) ChargeStatus {
	s := ChargeStatus(raw)
	if _, ok := knownStatuses[s]; ok {
		return s
	}
	return StatusUnknown
}

// RealtimeStatus is one timestamped observation of a chargepoint's
// operational state. Rows are append-only and never updated; per
// (chargepoint, data source) only strictly increasing timestamps are kept.
// DataSource is the realtime feed that produced the observation, which may
// differ from the static data source that owns the chargepoint.
type RealtimeStatus struct {
	ID            int64
	ChargepointID int64
	DataSource    string
	Status        ChargeStatus
	Timestamp     time.Time
}
