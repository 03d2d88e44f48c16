package respond

import (
	"time"

	"deskbot/internal/office"
)

// Kind identifies one auto-response category. Each kind has its own
// applicability window, cooldown policy, and canned text.
type Kind int

const (
	KindBeforeOpen Kind = iota
	KindAfterClose
	KindWeekend
	KindLunch
	KindApproachingCutoff
)

var kindKeys = map[Kind]string{
	KindBeforeOpen:        "before_open",
	KindAfterClose:        "after_close",
	KindWeekend:           "weekend",
	KindLunch:             "lunch",
	KindApproachingCutoff: "after_cutoff",
}

// Key is the stable identifier used for ledger records and log fields.
func (k Kind) Key() string {
	if s, ok := kindKeys[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) String() string { return k.Key() }

// Classify maps an inbound customer message instant to the kind that
// should be scheduled, if any. Weekend wins over everything, closed hours
// over lunch, lunch over the cutoff warning. A midday weekday message
// inside the cutoff matches nothing.
func Classify(s *office.Schedule, t time.Time) (Kind, bool) {
	switch {
	case s.IsWeekend(t):
		return KindWeekend, true
	case s.IsBeforeOpen(t):
		return KindBeforeOpen, true
	case s.IsAfterClose(t):
		return KindAfterClose, true
	case s.IsLunch(t):
		return KindLunch, true
	case s.IsOpen(t) && !s.IsBeforeCutoff(t):
		return KindApproachingCutoff, true
	default:
		return 0, false
	}
}

// StillApplies re-checks the kind's own window at fire time. A pending
// notification whose window has passed is dropped, not delivered late.
func (k Kind) StillApplies(s *office.Schedule, t time.Time) bool {
	switch k {
	case KindBeforeOpen:
		return s.IsBeforeOpen(t)
	case KindAfterClose:
		return s.IsAfterClose(t)
	case KindWeekend:
		return s.IsWeekend(t)
	case KindLunch:
		return s.IsLunch(t)
	case KindApproachingCutoff:
		return s.IsOpen(t) && !s.IsBeforeCutoff(t)
	default:
		return false
	}
}

// OncePerDay reports whether the kind is gated to a single delivery per
// office-timezone calendar day instead of a rolling cooldown.
func (k Kind) OncePerDay() bool {
	return k == KindBeforeOpen || k == KindAfterClose
}

// AllKinds lists every kind, used when invalidating a chat's pending state.
func AllKinds() []Kind {
	return []Kind{KindBeforeOpen, KindAfterClose, KindWeekend, KindLunch, KindApproachingCutoff}
}
