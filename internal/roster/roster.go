// Package roster tracks which senders count as staff. The set is seeded
// from configuration and grows at runtime: anyone seen posting in a
// designated staff source chat is promoted for the life of the process.
package roster

import (
	"sync"

	"deskbot/pkg/logx"
)

// Identity is the sender identity observed on an inbound message.
type Identity struct {
	UserID   int64
	Username string
	Name     string
}

type Roster struct {
	log logx.Logger

	mu      sync.RWMutex
	staff   map[int64]Identity
	sources map[int64]struct{}
}

func New(staffIDs []int64, sourceChatIDs []int64, log logx.Logger) *Roster {
	r := &Roster{
		log:     log,
		staff:   make(map[int64]Identity, len(staffIDs)),
		sources: make(map[int64]struct{}, len(sourceChatIDs)),
	}
	for _, id := range staffIDs {
		r.staff[id] = Identity{UserID: id}
	}
	for _, id := range sourceChatIDs {
		r.sources[id] = struct{}{}
	}
	return r
}

// IsStaff reports whether the user is currently recognized as staff.
func (r *Roster) IsStaff(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.staff[userID]
	return ok
}

// IsSourceChat reports whether messages in the chat grant staff status.
func (r *Roster) IsSourceChat(chatID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sources[chatID]
	return ok
}

// Observe records a message sender. If the chat is a staff source chat and
// the sender is not yet known, they are promoted; promoted is true only on
// that first promotion. Identity details are refreshed either way so later
// log lines carry current usernames.
func (r *Roster) Observe(chatID int64, id Identity) (promoted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, src := r.sources[chatID]; !src {
		if _, ok := r.staff[id.UserID]; ok {
			r.staff[id.UserID] = id
		}
		return false
	}

	_, known := r.staff[id.UserID]
	r.staff[id.UserID] = id
	if known {
		return false
	}
	r.log.Info("staff promoted",
		logx.Int64("user_id", id.UserID),
		logx.String("username", id.Username),
		logx.Int64("chat_id", chatID))
	return true
}

// Size returns the current number of recognized staff.
func (r *Roster) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.staff)
}
