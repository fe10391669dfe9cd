package activity

import (
	"context"
	"sync"
	"time"

	"hush-cli/internal/clock"
)

// Timers is a set of keyed, single-flight timers: starting a timer for a key
// synchronously cancels and replaces any timer already armed for that key.
// A callback that was superseded while it was already being dispatched is dropped.
type Timers struct {
	clock clock.Clock

	mu      sync.Mutex
	gen     uint64
	handles map[string]timerHandle
	pending int
	idle    chan struct{}
}

type timerHandle struct {
	gen   uint64
	timer clock.Timer
}

func NewTimers(c clock.Clock) *Timers {
	if c == nil {
		c = clock.Real()
	}
	idle := make(chan struct{})
	close(idle)
	return &Timers{clock: c, handles: map[string]timerHandle{}, idle: idle}
}

// Start arms fn to run after d under key, replacing any timer pending for key.
func (t *Timers) Start(key string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked(key)
	t.gen++
	gen := t.gen
	t.incLocked()
	h := timerHandle{gen: gen}
	h.timer = t.clock.AfterFunc(d, func() { t.fire(key, gen, fn) })
	t.handles[key] = h
}

// Cancel stops the timer for key. It reports whether a pending timer was removed.
func (t *Timers) Cancel(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelLocked(key)
}

// Pending reports whether a timer is armed for key.
func (t *Timers) Pending(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.handles[key]
	return ok
}

// Wait blocks until no timer is armed or running, or ctx is done.
func (t *Timers) Wait(ctx context.Context) error {
	for {
		t.mu.Lock()
		if t.pending == 0 {
			t.mu.Unlock()
			return nil
		}
		idle := t.idle
		t.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Timers) cancelLocked(key string) bool {
	h, ok := t.handles[key]
	if !ok {
		return false
	}
	delete(t.handles, key)
	if h.timer != nil && h.timer.Stop() {
		// The callback will never run, so it will never release its pending slot.
		t.decLocked()
	}
	return true
}

func (t *Timers) fire(key string, gen uint64, fn func()) {
	t.mu.Lock()
	h, ok := t.handles[key]
	current := ok && h.gen == gen
	if current {
		delete(t.handles, key)
	}
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.decLocked()
		t.mu.Unlock()
	}()
	if current {
		fn()
	}
}

func (t *Timers) incLocked() {
	if t.pending == 0 {
		t.idle = make(chan struct{})
	}
	t.pending++
}

func (t *Timers) decLocked() {
	t.pending--
	if t.pending == 0 {
		close(t.idle)
	}
}
