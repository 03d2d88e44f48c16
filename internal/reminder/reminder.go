// Package reminder emails the office when a customer message sits
// unanswered past a delay. The timer is leading-edge: the first customer
// message arms it and further customer traffic does not postpone it, so
// the clock measures time since the chat first needed attention.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"deskbot/internal/ledger"
	"deskbot/internal/mailer"
	"deskbot/internal/office"
	"deskbot/internal/transcript"
	"deskbot/pkg/logx"
)

type Reminder struct {
	sched       *office.Schedule
	delay       time.Duration
	sendTimeout time.Duration
	to          string
	sender      mailer.Sender
	buf         *transcript.Buffer
	led         *ledger.Ledger
	log         logx.Logger
	now         func() time.Time

	mu      sync.Mutex
	pending map[int64]*time.Timer
	titles  map[int64]string
	stopped bool
}

func New(sched *office.Schedule, delay time.Duration, to string, sender mailer.Sender, buf *transcript.Buffer, led *ledger.Ledger, log logx.Logger) *Reminder {
	return &Reminder{
		sched:       sched,
		delay:       delay,
		sendTimeout: 30 * time.Second,
		to:          to,
		sender:      sender,
		buf:         buf,
		led:         led,
		log:         log,
		now:         time.Now,
		pending:     make(map[int64]*time.Timer),
		titles:      make(map[int64]string),
	}
}

// SetDelay changes the delay for reminders armed after the call.
func (r *Reminder) SetDelay(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
}

// CustomerMessage notes customer traffic in the chat and arms the reminder
// if none is pending. chatTitle is carried into the email subject.
func (r *Reminder) CustomerMessage(chatID int64, chatTitle string) {
	if !r.sender.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.titles[chatID] = chatTitle
	if _, armed := r.pending[chatID]; armed {
		return
	}
	r.pending[chatID] = time.AfterFunc(r.delay, func() { r.fire(chatID) })
	r.log.Debug("reminder armed",
		logx.Int64("chat_id", chatID),
		logx.Duration("delay", r.delay))
}

// StaffReply cancels any pending reminder for the chat.
func (r *Reminder) StaffReply(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.pending[chatID]; ok {
		t.Stop()
		delete(r.pending, chatID)
		r.log.Debug("reminder cancelled by staff reply", logx.Int64("chat_id", chatID))
	}
}

// Stop cancels all pending reminders.
func (r *Reminder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for id, t := range r.pending {
		t.Stop()
		delete(r.pending, id)
	}
}

func (r *Reminder) fire(chatID int64) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	delete(r.pending, chatID)
	title := r.titles[chatID]
	delay := r.delay
	r.mu.Unlock()

	now := r.now()
	lastCustomer, ok := r.led.LastCustomerMessage(chatID)
	if !ok {
		return
	}
	// After a suspend the timer can fire on a later office day; only
	// same-day messages warrant the email.
	if r.sched.Day(lastCustomer) != r.sched.Day(now) {
		r.log.Debug("reminder skipped: customer message is stale", logx.Int64("chat_id", chatID))
		return
	}
	// Answered in the meantime: a staff reply newer than the newest
	// customer message closes the matter without email.
	if age, replied := r.led.StaffReplyAge(chatID, now); replied {
		lastStaff := now.Add(-age)
		if !lastStaff.Before(lastCustomer) {
			r.log.Debug("reminder skipped: chat answered", logx.Int64("chat_id", chatID))
			return
		}
	}

	subject := fmt.Sprintf("Unanswered Telegram chat: %s", title)
	if title == "" {
		subject = fmt.Sprintf("Unanswered Telegram chat %d", chatID)
	}
	body := fmt.Sprintf("No staff reply for %s in chat %q (%d).\n\nRecent messages:\n%s\n",
		delay, title, chatID, r.buf.RenderText(chatID))

	ctx, cancel := context.WithTimeout(context.Background(), r.sendTimeout)
	defer cancel()
	if err := r.sender.Send(ctx, mailer.Message{To: r.to, Subject: subject, Body: body}); err != nil {
		r.log.Error("reminder email failed",
			logx.Int64("chat_id", chatID),
			logx.Err(err))
		return
	}
	r.log.Info("reminder email sent",
		logx.Int64("chat_id", chatID),
		logx.String("to", r.to))
}
