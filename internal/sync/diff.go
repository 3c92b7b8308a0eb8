package sync

// attributed is satisfied by the entity pointer types: equality and
// overwrite of the non-identity attribute set.
type attributed[E any] interface {
	AttributesEqual(E) bool
	AdoptAttributes(E)
}

// diffResult classifies the incoming entities of one scope against the
// existing rows of the same scope.
//
// creates holds incoming entities with no matching identity key. updates
// holds existing rows whose attributes were overwritten with incoming values.
// unchanged holds existing rows whose attributes already matched; no write is
// needed for them, but they still count as matched for deletion bookkeeping.
// duplicates lists identity keys that occurred more than once in the incoming
// sequence, once per extra occurrence.
type diffResult[K comparable, E any] struct {
	creates    []E
	updates    []E
	unchanged  []E
	duplicates []K
}

// diffByKey runs identity-keyed diffing for one scope. existing must contain
// the complete persisted row set of the scope, indexed by identity key.
// Deletion of unmatched existing rows is decided by the caller from what
// diffByKey did not match.
//
// A repeated incoming key indicates a data-source defect (the same ID emitted
// twice); the last occurrence wins and the key is reported in duplicates.
func diffByKey[K comparable, E attributed[E]](existing map[K]E, incoming []E, keyOf func(E) K) diffResult[K, E] {
	var res diffResult[K, E]

	latest := make(map[K]E, len(incoming))
	order := make([]K, 0, len(incoming))
	for _, in := range incoming {
		k := keyOf(in)
		if _, seen := latest[k]; seen {
			res.duplicates = append(res.duplicates, k)
		} else {
			order = append(order, k)
		}
		latest[k] = in
	}

	for _, k := range order {
		in := latest[k]
		ex, ok := existing[k]
		switch {
		case !ok:
			res.creates = append(res.creates, in)
		case ex.AttributesEqual(in):
			res.unchanged = append(res.unchanged, ex)
		default:
			ex.AdoptAttributes(in)
			res.updates = append(res.updates, ex)
		}
	}
	return res
}

// matched iterates the existing rows the diff matched (updated or unchanged).
func (r diffResult[K, E]) matched(fn func(E)) {
	for _, e := range r.updates {
		fn(e)
	}
	for _, e := range r.unchanged {
		fn(e)
	}
}
