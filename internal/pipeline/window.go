package pipeline

import (
	"fmt"
	"time"
)

// Window is the closed-open [Start, End) interval assigned to one run, held
// in UTC. The boundary is an operator-local hour, so DST transitions can
// produce 23- or 25-hour windows.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return fmt.Sprintf("%s → %s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// CurrentWindow computes the window ending at the most recent local boundary
// hour at or before now.
func CurrentWindow(now time.Time, loc *time.Location, boundaryHour int) Window {
	local := now.In(loc)

	end := time.Date(local.Year(), local.Month(), local.Day(), boundaryHour, 0, 0, 0, loc)
	if end.After(local) {
		end = end.AddDate(0, 0, -1)
	}
	start := end.AddDate(0, 0, -1)

	return Window{Start: start.UTC(), End: end.UTC()}
}

// WindowFrom builds the one-day window starting at the boundary hour of the
// given local date.
func WindowFrom(startDate time.Time, loc *time.Location, boundaryHour int) Window {
	local := startDate.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), boundaryHour, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return Window{Start: start.UTC(), End: end.UTC()}
}

// ISOWeek formats the ISO week key used by the weekly baseline table.
func ISOWeek(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}
