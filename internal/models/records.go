package models

// SiteRecord is one parsed site with its nested chargepoints and connectors,
// as produced by a data-source parser for static sync.
type SiteRecord struct {
	Site         Site
	Chargepoints []ChargepointRecord
}

// ChargepointRecord is one parsed chargepoint with its connectors.
type ChargepointRecord struct {
	Chargepoint Chargepoint
	Connectors  []Connector
}

// StatusEvent is one parsed realtime observation, addressed by the upstream
// identifiers of the site and chargepoint it belongs to. Resolution against
// the static store happens during status sync.
type StatusEvent struct {
	SiteKey        string
	ChargepointKey string
	Status         RealtimeStatus
}
