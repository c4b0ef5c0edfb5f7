package booking

import "testing"

func TestNormalizeStatusSynonyms(t *testing.T) {
	cases := []struct {
		raw  string
		want Status
	}{
		{"pending", StatusAwaitingConfirmation},
		{"Waiting_Confirmation", StatusAwaitingConfirmation},
		{"awaiting confirmation", StatusAwaitingConfirmation},
		{"canceled", StatusCancelled},
		{"cancelled_by_business", StatusCancelledBySalon},
		{"no-show", StatusNoShow},
		{"confirmed", StatusConfirmed},
		{"approved", StatusBooked},
		{"", StatusBooked},
		{"some_legacy_value", StatusBooked},
	}
	for _, tc := range cases {
		if got := NormalizeStatus(tc.raw); got != tc.want {
			t.Fatalf("NormalizeStatus(%q)=%s want %s", tc.raw, got, tc.want)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusCancelled, StatusCancelledBySalon, StatusNoShow, StatusExpired}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusBooked, StatusAwaitingConfirmation, StatusConfirmed} {
		if s.IsTerminal() {
			t.Fatalf("expected %s to be active", s)
		}
	}
}

func TestStartTimeUnparseable(t *testing.T) {
	b := Booking{StartAt: "not-a-date"}
	if !b.StartTime().IsZero() {
		t.Fatal("expected zero time for unparseable startAt")
	}
}
