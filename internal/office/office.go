// Package office evaluates instants against the static weekly schedule.
// All checks are pure functions of the instant and configuration; they are
// recomputed on every call so arm-time and fire-time validation never see
// cached state.
package office

import (
	"fmt"
	"regexp"
	"time"
)

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

var reHHMM = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseClock parses an "HH:MM" wall time (24h).
func ParseClock(raw string) (Clock, error) {
	m := reHHMM.FindStringSubmatch(raw)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid clock time %q (use HH:MM)", raw)
	}
	hh := 0
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if hh > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", raw)
	}
	return Clock(hh*60 + mm), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Schedule is the office weekly schedule: weekday open/close bounds, a
// cutoff strictly inside the open window, and a lunch sub-window. All
// interval bounds are inclusive on both ends.
type Schedule struct {
	loc *time.Location

	opensAt    Clock
	closesAt   Clock
	cutoffAt   Clock
	lunchFrom  Clock
	lunchUntil Clock
}

func NewSchedule(loc *time.Location, open, close, cutoff, lunchStart, lunchEnd Clock) (*Schedule, error) {
	if loc == nil {
		return nil, fmt.Errorf("office: timezone is required")
	}
	if !(open < cutoff && cutoff < close) {
		return nil, fmt.Errorf("office: cutoff %s must be strictly inside open window %s-%s",
			cutoff, open, close)
	}
	if lunchStart > lunchEnd {
		return nil, fmt.Errorf("office: lunch window %s-%s is inverted", lunchStart, lunchEnd)
	}
	return &Schedule{
		loc:        loc,
		opensAt:    open,
		closesAt:   close,
		cutoffAt:   cutoff,
		lunchFrom:  lunchStart,
		lunchUntil: lunchEnd,
	}, nil
}

func (s *Schedule) Location() *time.Location { return s.loc }

// Day returns the calendar day of t in the office timezone, used for
// once-per-day gates and broadcast membership.
func (s *Schedule) Day(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}

func (s *Schedule) minuteOf(t time.Time) Clock {
	lt := t.In(s.loc)
	return Clock(lt.Hour()*60 + lt.Minute())
}

func (s *Schedule) IsWeekend(t time.Time) bool {
	wd := t.In(s.loc).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsOpen reports whether t falls inside weekday business hours,
// open <= t <= close.
func (s *Schedule) IsOpen(t time.Time) bool {
	if s.IsWeekend(t) {
		return false
	}
	m := s.minuteOf(t)
	return m >= s.opensAt && m <= s.closesAt
}

// IsBeforeCutoff reports whether t is at or before the weekday cutoff.
func (s *Schedule) IsBeforeCutoff(t time.Time) bool {
	if s.IsWeekend(t) {
		return false
	}
	return s.minuteOf(t) <= s.cutoffAt
}

// IsLunch reports whether t falls inside the midday sub-window.
func (s *Schedule) IsLunch(t time.Time) bool {
	m := s.minuteOf(t)
	return m >= s.lunchFrom && m <= s.lunchUntil
}

// IsBeforeOpen reports whether t is a weekday instant before opening.
func (s *Schedule) IsBeforeOpen(t time.Time) bool {
	if s.IsWeekend(t) {
		return false
	}
	return s.minuteOf(t) < s.opensAt
}

// IsAfterClose reports whether t is a weekday instant past closing.
func (s *Schedule) IsAfterClose(t time.Time) bool {
	if s.IsWeekend(t) {
		return false
	}
	return s.minuteOf(t) > s.closesAt
}
