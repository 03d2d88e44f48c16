// Package broadcast sends the daily last-call announcement to every chat
// that was active today. The schedule is a standard cron expression
// evaluated in the office timezone and polled once a minute, so a missed
// tick (suspend, clock step) fires on the next poll instead of being lost.
package broadcast

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"deskbot/internal/ledger"
	"deskbot/internal/office"
	"deskbot/internal/respond"
	"deskbot/internal/storage"
	kit "deskbot/internal/transport"
	"deskbot/pkg/logx"
)

// DefaultSchedule fires at 16:00 office time on weekdays.
const DefaultSchedule = "0 16 * * 1-5"

const pollInterval = time.Minute

type Settings struct {
	Enabled  bool
	Schedule string // cron expression, office timezone
	Pin      bool
	// CommandOnlyChats never receive broadcasts.
	CommandOnlyChats []int64
}

type Broadcaster struct {
	sched   *office.Schedule
	led     *ledger.Ledger
	adapter kit.Adapter
	store   storage.Store // may be nil
	log     logx.Logger
	now     func() time.Time

	mu          sync.Mutex
	enabled     bool
	cronSched   cron.Schedule
	pin         bool
	commandOnly map[int64]struct{}
	next        time.Time
}

func New(sched *office.Schedule, led *ledger.Ledger, adapter kit.Adapter, store storage.Store, st Settings, log logx.Logger) (*Broadcaster, error) {
	b := &Broadcaster{
		sched:   sched,
		led:     led,
		adapter: adapter,
		store:   store,
		log:     log,
		now:     time.Now,
	}
	if err := b.Apply(st); err != nil {
		return nil, err
	}
	return b, nil
}

// ValidateSchedule checks a cron expression without building a broadcaster.
func ValidateSchedule(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("broadcast schedule %q: %w", expr, err)
	}
	return nil
}

// Apply swaps the schedule and target filter. The next fire time is
// recomputed from the new schedule.
func (b *Broadcaster) Apply(st Settings) error {
	expr := st.Schedule
	if expr == "" {
		expr = DefaultSchedule
	}
	cs, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("broadcast schedule %q: %w", expr, err)
	}
	only := make(map[int64]struct{}, len(st.CommandOnlyChats))
	for _, id := range st.CommandOnlyChats {
		only[id] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = st.Enabled
	b.cronSched = cs
	b.pin = st.Pin
	b.commandOnly = only
	b.next = time.Time{}
	return nil
}

// Run polls the schedule until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.tick(ctx)
		}
	}
}

func (b *Broadcaster) tick(ctx context.Context) {
	now := b.now().In(b.sched.Location())

	b.mu.Lock()
	if !b.enabled {
		b.mu.Unlock()
		return
	}
	if b.next.IsZero() {
		b.next = b.cronSched.Next(now)
		b.mu.Unlock()
		return
	}
	if now.Before(b.next) {
		b.mu.Unlock()
		return
	}
	b.next = b.cronSched.Next(now)
	pin := b.pin
	b.mu.Unlock()

	b.fire(ctx, now, pin)
}

func (b *Broadcaster) fire(ctx context.Context, now time.Time, pin bool) {
	targets := b.targets(now)
	b.log.Info("last-call broadcast starting", logx.Int("targets", len(targets)))

	sent := 0
	for _, chatID := range targets {
		if ctx.Err() != nil {
			return
		}
		ref, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID},
			respond.LastCallMessage, &kit.SendOptions{ParseMode: kit.ParseModeMarkdown})
		if err != nil {
			b.log.Warn("broadcast send failed",
				logx.Int64("chat_id", chatID),
				logx.Err(err))
			b.audit(ctx, chatID, err)
			continue
		}
		if pin {
			if err := b.adapter.Pin(ctx, ref); err != nil {
				b.log.Warn("broadcast pin failed",
					logx.Int64("chat_id", chatID),
					logx.Err(err))
			}
		}
		b.audit(ctx, chatID, nil)
		sent++
	}
	b.log.Info("last-call broadcast finished",
		logx.Int("sent", sent),
		logx.Int("failed", len(targets)-sent))
}

// targets returns the chats active today (office timezone), excluding
// command-only chats, in stable order.
func (b *Broadcaster) targets(now time.Time) []int64 {
	local := now.In(b.sched.Location())
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, b.sched.Location())

	b.mu.Lock()
	only := b.commandOnly
	b.mu.Unlock()

	var out []int64
	for _, id := range b.led.ActiveSince(dayStart) {
		if _, skip := only[id]; skip {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (b *Broadcaster) audit(ctx context.Context, chatID int64, sendErr error) {
	if b.store == nil {
		return
	}
	e := storage.Event{
		At:        b.now(),
		Component: "broadcast",
		Action:    "sent",
		ChatID:    chatID,
	}
	if sendErr != nil {
		e.Action = "send_failed"
		e.Error = sendErr.Error()
	}
	if err := b.store.AppendEvent(ctx, e); err != nil {
		b.log.Warn("audit append failed", logx.Err(err))
	}
}
