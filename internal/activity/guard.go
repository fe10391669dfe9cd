package activity

import (
	"sync"
	"time"

	"hush-cli/internal/clock"
)

// Guard suppresses a repeat of the previously accepted text for the same key
// within a short window (double-click, double-submit).
type Guard struct {
	clock  clock.Clock
	window time.Duration

	mu   sync.Mutex
	last map[string]guardEntry
}

type guardEntry struct {
	text string
	at   time.Time
}

func NewGuard(c clock.Clock, window time.Duration) *Guard {
	if c == nil {
		c = clock.Real()
	}
	return &Guard{clock: c, window: window, last: map[string]guardEntry{}}
}

// Allow reports whether text should be accepted for key, and records it if so.
// Only accepted submissions move the window.
func (g *Guard) Allow(key, text string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	if g.repeatLocked(key, text, now) {
		return false
	}
	g.last[key] = guardEntry{text: text, at: now}
	return true
}

// Check reports whether text would be accepted for key without recording it.
func (g *Guard) Check(key, text string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.repeatLocked(key, text, g.clock.Now())
}

// Record moves the window for key to text, as of now.
func (g *Guard) Record(key, text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[key] = guardEntry{text: text, at: g.clock.Now()}
}

func (g *Guard) repeatLocked(key, text string, now time.Time) bool {
	prev, ok := g.last[key]
	return ok && prev.text == text && now.Sub(prev.at) < g.window
}
