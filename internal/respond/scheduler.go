// Package respond implements the debounced auto-response core. Customer
// messages arriving outside business availability arm a per-chat, per-kind
// timer; during the flood delay every newer message re-arms it, and staff
// activity cancels it. All gating is re-evaluated at fire time, so only the
// state of the world when the timer expires decides whether anything is
// sent.
package respond

import (
	"context"
	"sync"
	"time"

	"deskbot/internal/ledger"
	"deskbot/internal/office"
	"deskbot/pkg/logx"
)

// Dispatcher delivers a due notification. Implementations own message
// rendering and transport; the scheduler only decides whether to call it.
type Dispatcher interface {
	Send(ctx context.Context, chatID int64, kind Kind) error
}

// Settings are the tunables the scheduler reads at arm and fire time.
// They are swapped atomically on config reload.
type Settings struct {
	// FloodDelay is the quiet period after the newest qualifying message
	// before a notification fires.
	FloodDelay time.Duration
	// SuppressWindow silences notifications in a chat for this long after
	// the last staff reply there.
	SuppressWindow time.Duration
	// Cooldown is the rolling minimum gap between repeat notifications of
	// the same kind in a chat. Kinds gated once per day ignore it.
	Cooldown time.Duration
	// SendTimeout bounds a single dispatch attempt.
	SendTimeout time.Duration
}

type key struct {
	chat int64
	kind Kind
}

type pendingEntry struct {
	token uint64
	timer *time.Timer
}

// Scheduler is the notification state machine. All mutable state lives
// behind one mutex; timer callbacks re-enter through fire and validate
// their token before doing anything.
type Scheduler struct {
	sched      *office.Schedule
	led        *ledger.Ledger
	dispatcher Dispatcher
	log        logx.Logger
	now        func() time.Time

	mu       sync.Mutex
	settings Settings
	tokens   map[key]uint64
	pending  map[key]*pendingEntry
	stopped  bool
}

func NewScheduler(sched *office.Schedule, led *ledger.Ledger, d Dispatcher, st Settings, log logx.Logger) *Scheduler {
	return &Scheduler{
		sched:      sched,
		led:        led,
		dispatcher: d,
		log:        log,
		now:        time.Now,
		settings:   st,
		tokens:     make(map[key]uint64),
		pending:    make(map[key]*pendingEntry),
	}
}

// SetClock overrides the fire-time time source. Tests use it to pin the
// clock; production code never calls it.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Apply swaps the tunables. Already-armed timers keep their original
// delay; the new values take effect at their fire-time checks and for
// subsequent arms.
func (s *Scheduler) Apply(st Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = st
}

// Arm schedules (or re-schedules) a notification of the given kind for the
// chat. Each call supersedes any pending timer for the same chat and kind:
// the debounce is trailing-edge, measured from the newest message.
func (s *Scheduler) Arm(chatID int64, kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	k := key{chat: chatID, kind: kind}
	s.tokens[k]++
	tok := s.tokens[k]

	if p := s.pending[k]; p != nil {
		p.timer.Stop()
	}
	delay := s.settings.FloodDelay
	s.pending[k] = &pendingEntry{
		token: tok,
		timer: time.AfterFunc(delay, func() { s.fire(k, tok) }),
	}
	s.log.Debug("notification armed",
		logx.Int64("chat_id", chatID),
		logx.String("kind", kind.Key()),
		logx.Duration("delay", delay),
		logx.Uint64("token", tok))
}

// StaffActivity invalidates everything pending for the chat. Timer Stop is
// best-effort; a callback already in flight loses the token race instead.
func (s *Scheduler) StaffActivity(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := 0
	for _, kind := range AllKinds() {
		k := key{chat: chatID, kind: kind}
		if _, ok := s.tokens[k]; ok {
			s.tokens[k]++
		}
		if p := s.pending[k]; p != nil {
			p.timer.Stop()
			delete(s.pending, k)
			cancelled++
		}
	}
	if cancelled > 0 {
		s.log.Debug("pending notifications cancelled by staff activity",
			logx.Int64("chat_id", chatID),
			logx.Int("cancelled", cancelled))
	}
}

// Stop cancels all pending timers. Arm becomes a no-op afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for k, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, k)
	}
}

// Pending returns the number of armed timers, for status reporting.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) fire(k key, tok uint64) {
	s.mu.Lock()
	if s.stopped || s.tokens[k] != tok {
		s.mu.Unlock()
		return
	}
	p := s.pending[k]
	if p == nil || p.token != tok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, k)
	st := s.settings
	nowFn := s.now
	s.mu.Unlock()

	now := nowFn()
	log := s.log.With(
		logx.Int64("chat_id", k.chat),
		logx.String("kind", k.kind.Key()))

	if !k.kind.StillApplies(s.sched, now) {
		log.Debug("notification dropped: window passed")
		return
	}

	if k.kind.OncePerDay() {
		if last, ok := s.led.LastSent(k.chat, k.kind.Key()); ok && s.sched.Day(last) == s.sched.Day(now) {
			log.Debug("notification skipped: already sent today")
			return
		}
	} else if s.led.SentWithin(k.chat, k.kind.Key(), now, st.Cooldown) {
		log.Debug("notification skipped: cooldown",
			logx.Duration("cooldown", st.Cooldown))
		return
	}

	if age, ok := s.led.StaffReplyAge(k.chat, now); ok && age < st.SuppressWindow {
		log.Debug("notification skipped: recent staff reply",
			logx.Duration("staff_reply_age", age))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), st.SendTimeout)
	defer cancel()
	if err := s.dispatcher.Send(ctx, k.chat, k.kind); err != nil {
		// At-most-once: a failed send is logged, never retried, and the
		// cooldown is not recorded so a later cycle may try again.
		log.Error("notification send failed", logx.Err(err))
		return
	}
	s.led.MarkSent(k.chat, k.kind.Key(), now)
	log.Info("notification sent")
}
