package risk

import "testing"

func TestAllow(t *testing.T) {
	limits := Limits{MaxNotionalPerTrade: 1000}
	if !limits.Allow(999) || !limits.Allow(1000) {
		t.Fatal("expected notional at or under the cap to pass")
	}
	if limits.Allow(1000.01) {
		t.Fatal("expected notional over the cap to be rejected")
	}
}

func TestAllowUnlimited(t *testing.T) {
	if !(Limits{}).Allow(1e12) {
		t.Fatal("expected zero limit to disable the check")
	}
}
