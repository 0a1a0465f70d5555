package chat

import (
	"sync"
	"time"
)

// DefaultHistoryLimit keeps three exchanges of three lines each.
const DefaultHistoryLimit = 9

// History is the per-user bounded conversation log. It lives for the process
// lifetime only.
type History struct {
	mu      sync.Mutex
	limit   int
	entries map[string][]string
	touched map[string]time.Time
	now     func() time.Time
}

// NewHistory creates a store keeping at most limit entries per user.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		limit:   limit,
		entries: make(map[string][]string),
		touched: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Get returns a copy of the user's entries, oldest first.
func (h *History) Get(userID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	src := h.entries[userID]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Append adds entries for the user and keeps only the most recent limit.
func (h *History) Append(userID string, entries ...string) {
	if len(entries) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	merged := append(h.entries[userID], entries...)
	if len(merged) > h.limit {
		merged = merged[len(merged)-h.limit:]
	}
	// Copy so the retained window does not pin a growing backing array.
	kept := make([]string, len(merged))
	copy(kept, merged)

	h.entries[userID] = kept
	h.touched[userID] = h.now()
}

// Len reports how many users currently have a context.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Reset drops the user's context.
func (h *History) Reset(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, userID)
	delete(h.touched, userID)
}

// PruneIdle drops contexts not appended to since cutoff and returns how many
// were removed.
func (h *History) PruneIdle(cutoff time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for userID, at := range h.touched {
		if at.Before(cutoff) {
			delete(h.entries, userID)
			delete(h.touched, userID)
			removed++
		}
	}
	return removed
}

// Cooldowns records, per channel, when the bot last replied.
type Cooldowns struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewCooldowns creates an empty cooldown store.
func NewCooldowns() *Cooldowns {
	return &Cooldowns{last: make(map[string]time.Time)}
}

// Last returns the channel's last reply time; ok is false when there is none.
func (c *Cooldowns) Last(channelID string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.last[channelID]
	return at, ok
}

// Mark records a reply at ts. The record never moves backwards.
func (c *Cooldowns) Mark(channelID string, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.last[channelID]; ok && ts.Before(prev) {
		return
	}
	c.last[channelID] = ts
}

// PruneBefore drops records older than cutoff and returns how many were removed.
func (c *Cooldowns) PruneBefore(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for channelID, at := range c.last {
		if at.Before(cutoff) {
			delete(c.last, channelID)
			removed++
		}
	}
	return removed
}

// Len reports how many channels have a record.
func (c *Cooldowns) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}

// State owns the process-lifetime conversation state shared by one front-end.
type State struct {
	History   *History
	Cooldowns *Cooldowns
}

// NewState creates empty stores.
func NewState(historyLimit int) *State {
	return &State{
		History:   NewHistory(historyLimit),
		Cooldowns: NewCooldowns(),
	}
}
