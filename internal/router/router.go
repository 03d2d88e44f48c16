// Package router consumes inbound chat updates and drives everything else:
// roster promotion, transcripts, the activity ledger, commands, and the
// classification that arms the debounced auto-responses. One update flows
// through exactly one of the staff, command, or customer paths.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"deskbot/internal/ledger"
	"deskbot/internal/mailer"
	"deskbot/internal/office"
	"deskbot/internal/reminder"
	"deskbot/internal/respond"
	"deskbot/internal/roster"
	"deskbot/internal/storage"
	"deskbot/internal/transcript"
	kit "deskbot/internal/transport"
	"deskbot/pkg/logx"
)

// replyGateCOI is the ledger key gating repeat certificate reminders.
const replyGateCOI = "coi_reminder"

type Settings struct {
	// CommandOnlyChats stay silent except for explicit commands.
	CommandOnlyChats []int64
	// EscalationTo receives /escalate emails.
	EscalationTo string
	// ReplyCooldown gates the immediate keyword and greeting replies.
	ReplyCooldown time.Duration
	// SendTimeout bounds one outbound reply.
	SendTimeout time.Duration
}

type Router struct {
	adapter kit.Adapter
	sched   *office.Schedule
	resp    *respond.Scheduler
	ros     *roster.Roster
	led     *ledger.Ledger
	buf     *transcript.Buffer
	rem     *reminder.Reminder
	mail    mailer.Sender
	store   storage.Store // may be nil
	log     logx.Logger
	now     func() time.Time

	mu            sync.Mutex
	commandOnly   map[int64]struct{}
	escalationTo  string
	replyCooldown time.Duration
	sendTimeout   time.Duration
}

func New(adapter kit.Adapter, sched *office.Schedule, resp *respond.Scheduler, ros *roster.Roster,
	led *ledger.Ledger, buf *transcript.Buffer, rem *reminder.Reminder, mail mailer.Sender,
	store storage.Store, st Settings, log logx.Logger) *Router {
	r := &Router{
		adapter: adapter,
		sched:   sched,
		resp:    resp,
		ros:     ros,
		led:     led,
		buf:     buf,
		rem:     rem,
		mail:    mail,
		store:   store,
		log:     log,
		now:     time.Now,
	}
	r.Apply(st)
	return r
}

// Apply swaps the runtime tunables on config reload.
func (r *Router) Apply(st Settings) {
	only := make(map[int64]struct{}, len(st.CommandOnlyChats))
	for _, id := range st.CommandOnlyChats {
		only[id] = struct{}{}
	}
	if st.ReplyCooldown <= 0 {
		st.ReplyCooldown = 2 * time.Hour
	}
	if st.SendTimeout <= 0 {
		st.SendTimeout = 15 * time.Second
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commandOnly = only
	r.escalationTo = st.EscalationTo
	r.replyCooldown = st.ReplyCooldown
	r.sendTimeout = st.SendTimeout
}

// Run drains the update channel until ctx is cancelled or the channel is
// closed.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if u.Kind != kit.UpdateMessage || u.Message == nil {
				continue
			}
			r.handleMessage(ctx, u.Message)
		}
	}
}

func (r *Router) handleMessage(ctx context.Context, m *kit.Message) {
	now := r.now()

	if promoted := r.ros.Observe(m.ChatID, roster.Identity{
		UserID:   m.FromID,
		Username: m.FromUsername,
		Name:     m.FromName,
	}); promoted {
		r.audit(storage.Event{
			Component: "roster", Action: "promoted",
			ChatID: m.ChatID, UserID: m.FromID, Username: m.FromUsername,
		})
	}

	staff := r.ros.IsStaff(m.FromID)
	if m.Text != "" {
		r.buf.Record(m.ChatID, transcript.Entry{
			At:     now,
			Sender: m.FromName,
			Staff:  staff,
			Text:   m.Text,
		})
	}
	r.led.MarkActive(m.ChatID, now)

	cmd := parseCommand(m.Text)
	if cmd != "" {
		r.handleCommand(ctx, m, cmd, now)
		return
	}

	r.mu.Lock()
	_, silent := r.commandOnly[m.ChatID]
	r.mu.Unlock()
	if silent {
		return
	}

	if staff {
		r.led.MarkStaffReply(m.ChatID, now)
		r.resp.StaffActivity(m.ChatID)
		r.rem.StaffReply(m.ChatID)
		return
	}

	// Customer path.
	r.led.MarkCustomerMessage(m.ChatID, now)
	r.rem.CustomerMessage(m.ChatID, m.ChatTitle)

	// A bare greeting on the weekend gets the notice right away; the
	// sender is clearly waiting, not flooding requests.
	if isSimpleHello(m.Text) && r.sched.IsWeekend(now) {
		r.replyGated(ctx, m, respond.KindWeekend.Key(), now)
		return
	}

	if kind, ok := respond.Classify(r.sched, now); ok {
		r.resp.Arm(m.ChatID, kind)
		return
	}

	// Open hours, inside the cutoff: only certificate requests get a nudge.
	if mentionsCertificate(m.Text) {
		r.replyGatedText(ctx, m, replyGateCOI, coiReminderMessage, "", now)
	}
}

func (r *Router) handleCommand(ctx context.Context, m *kit.Message, cmd string, now time.Time) {
	switch {
	case cmd == "transcript":
		text := r.buf.RenderText(m.ChatID)
		if text == "" {
			text = noTranscriptMessage
		}
		r.reply(ctx, m, text, "")

	case cmd == "escalate":
		r.escalate(ctx, m, now)

	default:
		c, known := cannedCommands[cmd]
		if !known {
			return
		}
		r.reply(ctx, m, c.text, c.parseMode)
		// A canned command reply answers the chat the same way a staff
		// message would.
		r.led.MarkStaffReply(m.ChatID, now)
		r.resp.StaffActivity(m.ChatID)
		r.rem.StaffReply(m.ChatID)
		r.audit(storage.Event{
			Component: "router", Action: "command",
			ChatID: m.ChatID, UserID: m.FromID, Username: m.FromUsername,
			Detail: cmd,
		})
	}
}

func (r *Router) escalate(ctx context.Context, m *kit.Message, now time.Time) {
	if !r.ros.IsStaff(m.FromID) {
		r.reply(ctx, m, "⚠️ You are not authorized to escalate.", "")
		return
	}
	if !r.mail.Enabled() {
		r.reply(ctx, m, "⚠️ Email is not configured; cannot escalate.", "")
		return
	}

	r.mu.Lock()
	to := r.escalationTo
	timeout := r.sendTimeout
	r.mu.Unlock()

	body := fmt.Sprintf("Escalated by @%s from chat %q (%d).\n\nRecent messages:\n%s\n",
		m.FromUsername, m.ChatTitle, m.ChatID, r.buf.RenderText(m.ChatID))

	mctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := r.mail.Send(mctx, mailer.Message{
		To:      to,
		Subject: fmt.Sprintf("[Telegram] Escalation: %s", m.ChatTitle),
		Body:    body,
	})
	if err != nil {
		r.log.Error("escalation email failed",
			logx.Int64("chat_id", m.ChatID),
			logx.Err(err))
		r.reply(ctx, m, "⚠️ Escalation email failed; please follow up manually.", "")
		return
	}
	r.audit(storage.Event{
		Component: "router", Action: "escalated",
		ChatID: m.ChatID, UserID: m.FromID, Username: m.FromUsername,
	})
	r.reply(ctx, m, "🚨 Escalated to the office by email.", "")
}

// replyGated sends the canned notification text for a kind immediately,
// records it in the ledger so the debounced path stays quiet, and applies
// the reply cooldown.
func (r *Router) replyGated(ctx context.Context, m *kit.Message, key string, now time.Time) {
	text, mode := respond.MessageFor(respond.KindWeekend)
	r.replyGatedText(ctx, m, key, text, mode, now)
}

func (r *Router) replyGatedText(ctx context.Context, m *kit.Message, key, text, mode string, now time.Time) {
	r.mu.Lock()
	cooldown := r.replyCooldown
	r.mu.Unlock()
	if r.led.SentWithin(m.ChatID, key, now, cooldown) {
		return
	}
	if !r.reply(ctx, m, text, mode) {
		return
	}
	r.led.MarkSent(m.ChatID, key, now)
}

// reply sends into the message's chat and thread. Failures are logged, not
// retried.
func (r *Router) reply(ctx context.Context, m *kit.Message, text, parseMode string) bool {
	r.mu.Lock()
	timeout := r.sendTimeout
	r.mu.Unlock()

	var opt *kit.SendOptions
	if parseMode != "" {
		opt = &kit.SendOptions{ParseMode: parseMode}
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := r.adapter.SendText(sctx, kit.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}, text, opt); err != nil {
		r.log.Warn("reply failed",
			logx.Int64("chat_id", m.ChatID),
			logx.Err(err))
		return false
	}
	return true
}

func (r *Router) audit(e storage.Event) {
	if r.store == nil {
		return
	}
	e.At = r.now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.store.AppendEvent(ctx, e); err != nil {
		r.log.Warn("audit append failed", logx.Err(err))
	}
}
