package pipeline

import (
	"testing"
	"time"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func TestCurrentWindowBeforeBoundary(t *testing.T) {
	t.Parallel()
	loc := mustLocation(t, "America/Los_Angeles")

	// 4am local is before the 6am boundary, so the window ends yesterday 6am.
	now := time.Date(2026, 7, 15, 4, 0, 0, 0, loc)
	window := CurrentWindow(now, loc, 6)

	wantEnd := time.Date(2026, 7, 14, 6, 0, 0, 0, loc).UTC()
	if !window.End.Equal(wantEnd) {
		t.Fatalf("window end: want %v, got %v", wantEnd, window.End)
	}
	if !window.Start.Equal(wantEnd.AddDate(0, 0, -1)) {
		t.Fatalf("window start: want %v, got %v", wantEnd.AddDate(0, 0, -1), window.Start)
	}
}

func TestCurrentWindowAfterBoundary(t *testing.T) {
	t.Parallel()
	loc := mustLocation(t, "America/Los_Angeles")

	now := time.Date(2026, 7, 15, 9, 30, 0, 0, loc)
	window := CurrentWindow(now, loc, 6)

	wantEnd := time.Date(2026, 7, 15, 6, 0, 0, 0, loc).UTC()
	if !window.End.Equal(wantEnd) {
		t.Fatalf("window end: want %v, got %v", wantEnd, window.End)
	}
}

func TestWindowFromSpringForwardIs23Hours(t *testing.T) {
	t.Parallel()
	loc := mustLocation(t, "America/Los_Angeles")

	// DST begins 2026-03-08 in the US; the 6am→6am window loses an hour.
	window := WindowFrom(time.Date(2026, 3, 7, 0, 0, 0, 0, loc), loc, 6)
	if got := window.End.Sub(window.Start); got != 23*time.Hour {
		t.Fatalf("expected 23h window across spring forward, got %v", got)
	}
}

func TestWindowFromFallBackIs25Hours(t *testing.T) {
	t.Parallel()
	loc := mustLocation(t, "America/Los_Angeles")

	// DST ends 2026-11-01; the window gains an hour.
	window := WindowFrom(time.Date(2026, 10, 31, 0, 0, 0, 0, loc), loc, 6)
	if got := window.End.Sub(window.Start); got != 25*time.Hour {
		t.Fatalf("expected 25h window across fall back, got %v", got)
	}
}

func TestISOWeek(t *testing.T) {
	t.Parallel()

	// 2026-01-01 falls in ISO week 2026-W01.
	if got := ISOWeek(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)); got != "2026-W01" {
		t.Fatalf("unexpected ISO week: %q", got)
	}
	// 2027-01-01 is a Friday in ISO week 2026-W53.
	if got := ISOWeek(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)); got != "2026-W53" {
		t.Fatalf("unexpected ISO week: %q", got)
	}
}
