package inbound

import "testing"

func TestDetectorIntents(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		body   string
		intent Intent
		ok     bool
	}{
		{"yes", IntentConfirm, true},
		{"  YES!  ", IntentConfirm, true},
		{"Confirm", IntentConfirm, true},
		{"ok", IntentConfirm, true},
		{"כן", IntentConfirm, true},
		{"מאשרת", IntentConfirm, true},
		{"אישור", IntentConfirm, true},
		{"no", IntentCancel, true},
		{"CANCEL", IntentCancel, true},
		{"לא", IntentCancel, true},
		{"ביטול", IntentCancel, true},
		{"לבטל", IntentCancel, true},
		{"maybe later", "", false},
		{"yes please reschedule me", "", false},
		{"", "", false},
		{"2", "", false},
	}
	for _, tt := range tests {
		intent, ok := d.Detect(tt.body)
		if ok != tt.ok || intent != tt.intent {
			t.Errorf("Detect(%q) = (%q, %v), want (%q, %v)", tt.body, intent, ok, tt.intent, tt.ok)
		}
	}
}

func TestDetectorSelection(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		body string
		n    int
		ok   bool
	}{
		{"1", 1, true},
		{" 3 ", 3, true},
		{"12", 12, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"1.5", 0, false},
		{"one", 0, false},
		{"1a", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		n, ok := d.Selection(tt.body)
		if ok != tt.ok || n != tt.n {
			t.Errorf("Selection(%q) = (%d, %v), want (%d, %v)", tt.body, n, ok, tt.n, tt.ok)
		}
	}
}

func TestDetectorNilSafe(t *testing.T) {
	var d *Detector
	if _, ok := d.Detect("yes"); ok {
		t.Fatal("nil detector must not match")
	}
	if _, ok := d.Selection("1"); ok {
		t.Fatal("nil detector must not match")
	}
}
