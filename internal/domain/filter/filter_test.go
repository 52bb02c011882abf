package filter

import "testing"

func TestMatches_NoConstraints(t *testing.T) {
	f := Filter{}
	if !f.Matches("anything", nil) {
		t.Error("empty filter must match everything")
	}
	if !f.Matches("", []string{"a"}) {
		t.Error("empty filter must match records without a collection")
	}
}

func TestMatches_CollectionOR(t *testing.T) {
	f := Filter{CollectionIDs: []string{"apollo", "gemini"}}
	if !f.Matches("gemini", nil) {
		t.Error("record in one of the requested collections must match")
	}
	if f.Matches("mercury", nil) {
		t.Error("record in a different collection must not match")
	}
	if f.Matches("", nil) {
		t.Error("record without a collection must not match a collection filter")
	}
}

func TestMatches_TagsAnyOf(t *testing.T) {
	f := Filter{Tags: []string{"guidance", "telemetry"}}
	// OR semantics: a single overlapping tag is enough.
	if !f.Matches("", []string{"guidance"}) {
		t.Error("record with one requested tag must match")
	}
	if f.Matches("", []string{"reentry"}) {
		t.Error("record with no requested tag must not match")
	}
	if f.Matches("", nil) {
		t.Error("untagged record must not match a tag filter")
	}
}

func TestMatches_BothDimensionsANDed(t *testing.T) {
	f := Filter{CollectionIDs: []string{"apollo"}, Tags: []string{"guidance"}}
	if !f.Matches("apollo", []string{"guidance", "agc"}) {
		t.Error("record satisfying both dimensions must match")
	}
	if f.Matches("apollo", []string{"reentry"}) {
		t.Error("collection match alone must not satisfy an ANDed filter")
	}
	if f.Matches("gemini", []string{"guidance"}) {
		t.Error("tag match alone must not satisfy an ANDed filter")
	}
}

func TestAllowsBackend(t *testing.T) {
	if !(Filter{}).AllowsBackend("pgvector-1") {
		t.Error("no backend constraint must allow every backend")
	}
	f := Filter{BackendIDs: []string{"redis-1"}}
	if f.AllowsBackend("pgvector-1") {
		t.Error("backend outside the constraint must be excluded")
	}
	if !f.AllowsBackend("redis-1") {
		t.Error("listed backend must be allowed")
	}
}
