package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the audit store.
//
// Driver values:
//   - "file": dependency-free append-only JSON Lines file
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", auditing is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Event records one bot decision or action for offline review.
// Keep it compact and schema-stable.
type Event struct {
	At        time.Time
	Component string // responder, broadcast, reminder, roster, router
	Action    string // sent, skipped, promoted, escalated, ...
	ChatID    int64
	UserID    int64
	Username  string
	Kind      string // notification kind key, when applicable
	Detail    string
	Error     string
}
