package messaging

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+972501234567", "+972501234567"},
		{"0501234567", "+972501234567"},
		{"050-123-4567", "+972501234567"},
		{"050 123 4567", "+972501234567"},
		{"972501234567", "+972501234567"},
		{"whatsapp:+972501234567", "+972501234567"},
		{"00972501234567", "+972501234567"},
		{"+1 (555) 123-4567", "+15551234567"},
		{"", ""},
		{"hello", ""},
		{"12", ""},
	}
	for _, tc := range cases {
		if got := NormalizeE164(tc.in, "972"); got != tc.want {
			t.Fatalf("NormalizeE164(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeE164Idempotent(t *testing.T) {
	inputs := []string{"+972501234567", "0501234567", "+1 (555) 123-4567", "050 123 4567"}
	for _, in := range inputs {
		once := NormalizeE164(in, "972")
		if once == "" {
			t.Fatalf("expected %q to normalize", in)
		}
		if twice := NormalizeE164(once, "972"); twice != once {
			t.Fatalf("normalize not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}

func TestNormalizeE164TooLong(t *testing.T) {
	if got := NormalizeE164("+1234567890123456", "972"); got != "" {
		t.Fatalf("expected overlong number to be rejected, got %q", got)
	}
}
