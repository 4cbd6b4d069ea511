package core

import "testing"

func TestValidTag(t *testing.T) {
	for _, tag := range []MemoryTag{TagBond, TagConflict, TagSecret, TagTrauma, TagGrowth, TagPromise, TagGeneral} {
		if !ValidTag(tag) {
			t.Errorf("ValidTag(%q) = false, want true", tag)
		}
	}
	if ValidTag(MemoryTag("bogus")) {
		t.Error("ValidTag(bogus) = true, want false")
	}
}

func TestMemoryRecordExpiry(t *testing.T) {
	permanent := MemoryRecord{}
	if !permanent.Permanent() {
		t.Error("nil ExpireAfterTurn should be permanent")
	}
	if permanent.Expired(1_000_000) {
		t.Error("permanent record should never expire")
	}

	horizon := 15
	rec := MemoryRecord{ExpireAfterTurn: &horizon}
	if rec.Permanent() {
		t.Error("record with horizon is not permanent")
	}
	if rec.Expired(14) {
		t.Error("not yet expired at turn 14")
	}
	if !rec.Expired(15) {
		t.Error("expired at exactly the horizon")
	}
}

func TestValidScope(t *testing.T) {
	for _, scope := range []EventScope{ScopeLocal, ScopeRegional, ScopeGlobal} {
		if !ValidScope(scope) {
			t.Errorf("ValidScope(%q) = false, want true", scope)
		}
	}
	if ValidScope(EventScope("galactic")) {
		t.Error("ValidScope(galactic) = true, want false")
	}
}
