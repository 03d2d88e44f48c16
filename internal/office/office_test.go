package office

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "09:00", want: 9 * 60},
		{in: "9:05", want: 9*60 + 5},
		{in: " 16:30 ", want: 16*60 + 30},
		{in: "00:00", want: 0},
		{in: "23:59", want: 23*60 + 59},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseClock(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseClock(%q): expected error, got %v", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClock(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ParseClock(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func mustSchedule(t *testing.T) *Schedule {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	s, err := NewSchedule(loc, 9*60, 17*60, 16*60+30, 12*60+30, 13*60+30)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	return s
}

// at builds an instant on the given 2026 date at HH:MM office time.
// 2026-03-02 is a Monday, 2026-03-07 a Saturday.
func at(t *testing.T, s *Schedule, day string, hh, mm int) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", day, s.Location())
	if err != nil {
		t.Fatalf("parse day %q: %v", day, err)
	}
	return d.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute)
}

func TestSchedulePredicates(t *testing.T) {
	t.Parallel()
	s := mustSchedule(t)

	const monday, saturday = "2026-03-02", "2026-03-07"

	cases := []struct {
		name         string
		day          string
		hh, mm       int
		open         bool
		beforeCutoff bool
		lunch        bool
		beforeOpen   bool
		afterClose   bool
		weekend      bool
	}{
		{name: "weekday before open", day: monday, hh: 8, mm: 59, beforeCutoff: true, beforeOpen: true},
		{name: "open boundary inclusive", day: monday, hh: 9, mm: 0, open: true, beforeCutoff: true},
		{name: "midmorning", day: monday, hh: 10, mm: 15, open: true, beforeCutoff: true},
		{name: "lunch start inclusive", day: monday, hh: 12, mm: 30, open: true, beforeCutoff: true, lunch: true},
		{name: "lunch end inclusive", day: monday, hh: 13, mm: 30, open: true, beforeCutoff: true, lunch: true},
		{name: "just past lunch", day: monday, hh: 13, mm: 31, open: true, beforeCutoff: true},
		{name: "cutoff boundary inclusive", day: monday, hh: 16, mm: 30, open: true, beforeCutoff: true},
		{name: "past cutoff still open", day: monday, hh: 16, mm: 31, open: true},
		{name: "close boundary inclusive", day: monday, hh: 17, mm: 0, open: true},
		{name: "after close", day: monday, hh: 17, mm: 1, afterClose: true},
		{name: "saturday midday", day: saturday, hh: 12, mm: 0, weekend: true},
		{name: "saturday morning", day: saturday, hh: 8, mm: 0, weekend: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			now := at(t, s, tc.day, tc.hh, tc.mm)
			if got := s.IsOpen(now); got != tc.open {
				t.Errorf("IsOpen = %v, want %v", got, tc.open)
			}
			if got := s.IsBeforeCutoff(now); got != tc.beforeCutoff {
				t.Errorf("IsBeforeCutoff = %v, want %v", got, tc.beforeCutoff)
			}
			if got := s.IsLunch(now); got != tc.lunch {
				t.Errorf("IsLunch = %v, want %v", got, tc.lunch)
			}
			if got := s.IsBeforeOpen(now); got != tc.beforeOpen {
				t.Errorf("IsBeforeOpen = %v, want %v", got, tc.beforeOpen)
			}
			if got := s.IsAfterClose(now); got != tc.afterClose {
				t.Errorf("IsAfterClose = %v, want %v", got, tc.afterClose)
			}
			if got := s.IsWeekend(now); got != tc.weekend {
				t.Errorf("IsWeekend = %v, want %v", got, tc.weekend)
			}
		})
	}
}

func TestNewScheduleValidation(t *testing.T) {
	t.Parallel()
	loc := time.UTC

	if _, err := NewSchedule(loc, 9*60, 17*60, 17*60, 12*60, 13*60); err == nil {
		t.Fatal("expected error for cutoff at close")
	}
	if _, err := NewSchedule(loc, 9*60, 17*60, 9*60, 12*60, 13*60); err == nil {
		t.Fatal("expected error for cutoff at open")
	}
	if _, err := NewSchedule(loc, 9*60, 17*60, 16*60, 14*60, 13*60); err == nil {
		t.Fatal("expected error for inverted lunch window")
	}
	if _, err := NewSchedule(nil, 9*60, 17*60, 16*60, 12*60, 13*60); err == nil {
		t.Fatal("expected error for nil location")
	}
}

func TestDayUsesOfficeTimezone(t *testing.T) {
	t.Parallel()
	s := mustSchedule(t)

	// 2026-03-03 02:00 UTC is still 2026-03-02 evening in Chicago.
	utc := time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)
	if got := s.Day(utc); got != "2026-03-02" {
		t.Fatalf("Day = %q, want 2026-03-02", got)
	}
}
