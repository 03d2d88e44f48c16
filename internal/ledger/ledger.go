// Package ledger is the in-memory per-chat activity record. It stores the
// raw instants (last message, last staff reply, last customer message, last
// notification per kind); interpretation of those instants against
// cooldowns and suppression windows belongs to the callers.
package ledger

import (
	"sync"
	"time"
)

type chatRecord struct {
	lastActive   time.Time
	lastStaff    time.Time
	lastCustomer time.Time
	sent         map[string]time.Time
}

type Ledger struct {
	mu    sync.RWMutex
	chats map[int64]*chatRecord
}

func New() *Ledger {
	return &Ledger{chats: make(map[int64]*chatRecord)}
}

func (l *Ledger) record(chatID int64) *chatRecord {
	rec, ok := l.chats[chatID]
	if !ok {
		rec = &chatRecord{sent: make(map[string]time.Time)}
		l.chats[chatID] = rec
	}
	return rec
}

// MarkActive records any message activity in the chat.
func (l *Ledger) MarkActive(chatID int64, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.record(chatID)
	if at.After(rec.lastActive) {
		rec.lastActive = at
	}
}

// MarkStaffReply records a staff message in the chat. Implies activity.
func (l *Ledger) MarkStaffReply(chatID int64, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.record(chatID)
	if at.After(rec.lastStaff) {
		rec.lastStaff = at
	}
	if at.After(rec.lastActive) {
		rec.lastActive = at
	}
}

// MarkCustomerMessage records a non-staff message in the chat. Implies
// activity.
func (l *Ledger) MarkCustomerMessage(chatID int64, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.record(chatID)
	if at.After(rec.lastCustomer) {
		rec.lastCustomer = at
	}
	if at.After(rec.lastActive) {
		rec.lastActive = at
	}
}

// StaffReplyAge returns how long ago staff last replied in the chat.
// ok is false when staff have never replied there.
func (l *Ledger) StaffReplyAge(chatID int64, now time.Time) (time.Duration, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, found := l.chats[chatID]
	if !found || rec.lastStaff.IsZero() {
		return 0, false
	}
	return now.Sub(rec.lastStaff), true
}

// LastCustomerMessage returns the instant of the newest customer message.
func (l *Ledger) LastCustomerMessage(chatID int64) (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, found := l.chats[chatID]
	if !found || rec.lastCustomer.IsZero() {
		return time.Time{}, false
	}
	return rec.lastCustomer, true
}

// MarkSent records a delivered notification of the given kind key.
func (l *Ledger) MarkSent(chatID int64, key string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(chatID).sent[key] = at
}

// LastSent returns when a notification of the given kind key was last
// delivered to the chat.
func (l *Ledger) LastSent(chatID int64, key string) (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, found := l.chats[chatID]
	if !found {
		return time.Time{}, false
	}
	at, ok := rec.sent[key]
	return at, ok
}

// SentWithin reports whether a notification of the given kind key was
// delivered within window before now.
func (l *Ledger) SentWithin(chatID int64, key string, now time.Time, window time.Duration) bool {
	at, ok := l.LastSent(chatID, key)
	if !ok {
		return false
	}
	return now.Sub(at) < window
}

// ActiveSince returns the chats with any activity at or after the given
// instant. Order is unspecified.
func (l *Ledger) ActiveSince(since time.Time) []int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]int64, 0, len(l.chats))
	for id, rec := range l.chats {
		if !rec.lastActive.Before(since) && !rec.lastActive.IsZero() {
			out = append(out, id)
		}
	}
	return out
}
