package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	got := clock.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	clock := NewMockClock(start)

	if got := clock.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	clock.Advance(90 * time.Second)
	if got := clock.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Errorf("after Advance, Now() = %v", got)
	}

	later := start.Add(24 * time.Hour)
	clock.Set(later)
	if got := clock.Now(); !got.Equal(later) {
		t.Errorf("after Set, Now() = %v, want %v", got, later)
	}
}

func TestMockClock_AutoAdvance(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.AutoAdvance(time.Second)

	first := clock.Now()
	second := clock.Now()

	if !first.Equal(start) {
		t.Errorf("first reading = %v, want %v", first, start)
	}
	if got := second.Sub(first); got != time.Second {
		t.Errorf("readings %v apart, want 1s", got)
	}
}

var _ Clock = RealClock{}
var _ Clock = (*MockClock)(nil)

func TestLoadZone(t *testing.T) {
	for _, name := range []string{"", "Local"} {
		loc, err := LoadZone(name)
		if err != nil || loc != time.Local {
			t.Errorf("LoadZone(%q) = %v, %v; want Local", name, loc, err)
		}
	}

	loc, err := LoadZone("UTC")
	if err != nil || loc.String() != "UTC" {
		t.Errorf("LoadZone(UTC) = %v, %v", loc, err)
	}

	if _, err := LoadZone("Mars/Olympus_Mons"); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestInZone(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	east := time.FixedZone("UTC+2", 2*60*60)

	clock := InZone(NewMockClock(start), east)
	got := clock.Now()
	if !got.Equal(start) {
		t.Errorf("Now() = %v, want the same instant as %v", got, start)
	}
	if got.Format(time.DateTime) != "2025-06-01 14:00:00" {
		t.Errorf("wall clock = %s, want 2025-06-01 14:00:00", got.Format(time.DateTime))
	}

	mock := NewMockClock(start)
	if InZone(mock, nil) != Clock(mock) {
		t.Error("InZone with nil location should return the clock unchanged")
	}
}
