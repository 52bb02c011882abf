// Package filter holds the per-request search constraints and the canonical
// inclusion policy every backend must reproduce: OR within a dimension, AND
// across dimensions, absent dimension matches everything.
package filter

// Filter is the set of optional constraints for one search request.
// A nil or empty slice means "no constraint on this dimension", not
// "match nothing".
type Filter struct {
	CollectionIDs []string
	Tags          []string
	BackendIDs    []string
}

// IsEmpty reports whether no metadata constraint is set. BackendIDs is not a
// metadata constraint; it only narrows which backends are queried.
func (f Filter) IsEmpty() bool {
	return len(f.CollectionIDs) == 0 && len(f.Tags) == 0
}

// AllowsBackend reports whether the backend id passes the BackendIDs
// constraint. Unknown ids in BackendIDs are harmless: they simply never
// match a configured backend.
func (f Filter) AllowsBackend(id string) bool {
	if len(f.BackendIDs) == 0 {
		return true
	}
	for _, b := range f.BackendIDs {
		if b == id {
			return true
		}
	}
	return false
}

// Matches is the in-memory form of the predicate: the record's collection
// must equal one of CollectionIDs (when set) and the record must carry at
// least one of Tags (when set). Backends that compile the filter to a native
// query fragment must make the same inclusion decision.
func (f Filter) Matches(collection string, tags []string) bool {
	if len(f.CollectionIDs) > 0 && !contains(f.CollectionIDs, collection) {
		return false
	}
	if len(f.Tags) > 0 && !overlaps(tags, f.Tags) {
		return false
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func overlaps(have, want []string) bool {
	for _, t := range have {
		if contains(want, t) {
			return true
		}
	}
	return false
}
