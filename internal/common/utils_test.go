package common

import "testing"

func TestHasAny(t *testing.T) {
	if !HasAny("database is locked", "busy", "locked") {
		t.Fatal("expected match on 'locked'")
	}
	if HasAny("constraint failed", "busy", "locked") {
		t.Fatal("unexpected match")
	}
	if HasAny("anything", "") {
		t.Fatal("empty substring must not match")
	}
}
