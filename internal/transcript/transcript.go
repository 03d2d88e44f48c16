// Package transcript keeps a short per-chat ring of recent messages so
// escalation emails and the /transcript command can show what a customer
// was asking about.
package transcript

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultDepth is how many trailing messages each chat retains.
const DefaultDepth = 5

// Entry is one recorded message.
type Entry struct {
	At     time.Time
	Sender string
	Staff  bool
	Text   string
}

type Buffer struct {
	depth int

	mu    sync.RWMutex
	chats map[int64][]Entry
}

func New(depth int) *Buffer {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Buffer{depth: depth, chats: make(map[int64][]Entry)}
}

// Record appends a message to the chat's ring, evicting the oldest entry
// once the ring is full.
func (b *Buffer) Record(chatID int64, e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ring := append(b.chats[chatID], e)
	if len(ring) > b.depth {
		ring = ring[len(ring)-b.depth:]
	}
	b.chats[chatID] = ring
}

// Entries returns the chat's retained messages, oldest first.
func (b *Buffer) Entries(chatID int64) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ring := b.chats[chatID]
	out := make([]Entry, len(ring))
	copy(out, ring)
	return out
}

// RenderText formats the chat's transcript for chat replies and email
// bodies. Returns "" when nothing has been recorded.
func (b *Buffer) RenderText(chatID int64) string {
	entries := b.Entries(chatID)
	if len(entries) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, e := range entries {
		role := "customer"
		if e.Staff {
			role = "staff"
		}
		fmt.Fprintf(&sb, "[%s] %s (%s): %s\n",
			e.At.Format("15:04"), e.Sender, role, e.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}
