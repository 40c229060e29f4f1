package fixtures

import (
	"sync"
	"time"

	"github.com/scmhub/calendar"
)

// Session phase labels matching what the live backend reports.
const (
	PhasePre    = "PRE"
	PhaseRTH    = "RTH"
	PhaseAfter  = "AFTER"
	PhaseClosed = "CLOSED"
)

var (
	calOnce sync.Once
	nyseCal *calendar.Calendar
	nyseLoc *time.Location
)

// marketCalendar loads the XNYS calendar once. When the calendar
// cannot be loaded the location falls back to America/New_York and
// business days degrade to Mon-Fri.
func marketCalendar() (*calendar.Calendar, *time.Location) {
	calOnce.Do(func() {
		nyseCal = calendar.GetCalendar("xnys")
		if nyseCal != nil {
			nyseLoc = nyseCal.Loc
			return
		}
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		nyseLoc = loc
	})
	return nyseCal, nyseLoc
}

func isBusinessDay(t time.Time) bool {
	cal, loc := marketCalendar()
	t = t.In(loc)
	if cal != nil {
		return cal.IsBusinessDay(t)
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// PhaseAt derives the session phase for an instant, locally and
// offline: pre-market 04:00-09:30, regular session 09:30-16:00,
// after-hours 16:00-20:00, Eastern time, business days only.
func PhaseAt(t time.Time) string {
	_, loc := marketCalendar()
	t = t.In(loc)
	if !isBusinessDay(t) {
		return PhaseClosed
	}
	mins := t.Hour()*60 + t.Minute()
	switch {
	case mins < 4*60:
		return PhaseClosed
	case mins < 9*60+30:
		return PhasePre
	case mins < 16*60:
		return PhaseRTH
	case mins < 20*60:
		return PhaseAfter
	default:
		return PhaseClosed
	}
}

// nextSessionOpen walks forward to the next business day's 09:30.
func nextSessionOpen(t time.Time) time.Time {
	_, loc := marketCalendar()
	t = t.In(loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 9, 30, 0, 0, loc)
	if !t.Before(day) || !isBusinessDay(day) {
		day = day.AddDate(0, 0, 1)
		for !isBusinessDay(day) {
			day = day.AddDate(0, 0, 1)
		}
	}
	return day
}

// nextSessionClose returns today's 16:00 when the session is still
// open, otherwise the close following the next open.
func nextSessionClose(t time.Time) time.Time {
	_, loc := marketCalendar()
	t = t.In(loc)
	if PhaseAt(t) == PhaseRTH {
		return time.Date(t.Year(), t.Month(), t.Day(), 16, 0, 0, 0, loc)
	}
	open := nextSessionOpen(t)
	return time.Date(open.Year(), open.Month(), open.Day(), 16, 0, 0, 0, loc)
}
