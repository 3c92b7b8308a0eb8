package sync

import "chargesync/internal/models"

// allConnectorsKeyed reports whether every connector in the set carries a
// non-empty id_from_source, which is the precondition for identity-keyed
// connector diffing.
func allConnectorsKeyed(conns []*models.Connector) bool {
	for _, c := range conns {
		if c.IDFromSource == "" {
			return false
		}
	}
	return true
}

// connectorSetsEqual compares two connector sets as attribute multisets,
// ignoring row IDs and ownership. This is the fallback identity for
// chargepoints whose upstream assigns no stable connector IDs: when the
// multisets are equal the stored set is kept untouched, otherwise the whole
// set is replaced.
func connectorSetsEqual(existing, incoming []*models.Connector) bool {
	if len(existing) != len(incoming) {
		return false
	}
	counts := make(map[models.ConnectorAttrs]int, len(existing))
	for _, c := range existing {
		counts[c.Attrs()]++
	}
	for _, c := range incoming {
		attrs := c.Attrs()
		counts[attrs]--
		if counts[attrs] < 0 {
			return false
		}
	}
	return true
}
