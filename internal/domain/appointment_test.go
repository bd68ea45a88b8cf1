package domain

import (
	"testing"
	"time"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		offset time.Duration
		want   bool
	}{
		{0, true},
		{29 * time.Minute, true},
		{-29 * time.Minute, true},
		{30 * time.Minute, false},
		{-30 * time.Minute, false},
		{29*time.Minute + 59*time.Second, true},
		{2 * time.Hour, false},
	}
	for _, tc := range cases {
		if got := Overlaps(base, base.Add(tc.offset)); got != tc.want {
			t.Errorf("Overlaps(+%s) = %v, want %v", tc.offset, got, tc.want)
		}
		if got := Overlaps(base.Add(tc.offset), base); got != tc.want {
			t.Errorf("Overlaps is not symmetric for %s", tc.offset)
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"doctor", "DOCTOR", " Doctor "} {
		if role, ok := ParseRole(raw); !ok || role != RoleDoctor {
			t.Errorf("ParseRole(%q) = %q, %v", raw, role, ok)
		}
	}
	if _, ok := ParseRole("ADMIN"); ok {
		t.Errorf("ADMIN must not parse")
	}
	if Role("NURSE").CanBook() {
		t.Errorf("unknown roles cannot book")
	}
}

func TestParseAppointmentStatus(t *testing.T) {
	if st, ok := ParseAppointmentStatus("canceled"); !ok || st != AppointmentStatusCanceled {
		t.Fatalf("got %q, %v", st, ok)
	}
	if _, ok := ParseAppointmentStatus("cancelled"); ok {
		t.Fatalf("british spelling is not a status")
	}
}
