package shop

import "testing"

func TestStatusTransitions(t *testing.T) {
	terminals := []Status{StatusPaid, StatusExpired, StatusOutOfStock}

	for _, to := range terminals {
		if !CanTransition(StatusPending, to) {
			t.Errorf("PENDING -> %s should be allowed", to)
		}
	}

	// Terminal states never move again, not even back to PENDING.
	for _, from := range terminals {
		for _, to := range append(terminals, StatusPending) {
			if CanTransition(from, to) {
				t.Errorf("%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("PENDING reported terminal")
	}
	for _, s := range []Status{StatusPaid, StatusExpired, StatusOutOfStock} {
		if !s.Terminal() {
			t.Errorf("%s not reported terminal", s)
		}
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{KindFixed, KindStars, KindSteam} {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if Kind("SUBSCRIPTION").Valid() {
		t.Error("unknown kind accepted")
	}
}
