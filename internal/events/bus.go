// Package events fans core events out to in-process consumers (TUI, CLI, tests).
package events

import (
	"sync"

	"hush-cli/internal/model"
)

type Handler func(model.Event)

// Bus delivers events synchronously, in subscription order, on the emitting goroutine.
// Handlers must not block; a UI should hand events off to its own loop.
type Bus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
	order    []int
}

func NewBus() *Bus {
	return &Bus{handlers: map[int]Handler{}}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.order = append(b.order, id)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

func (b *Bus) Emit(ev model.Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		hs = append(hs, b.handlers[id])
	}
	b.mu.RUnlock()
	for _, h := range hs {
		h(ev)
	}
}

// Channel subscribes a buffered channel. Events are dropped when the buffer is full
// so a slow consumer never stalls the core.
func (b *Bus) Channel(size int) (<-chan model.Event, func()) {
	ch := make(chan model.Event, size)
	unsub := b.Subscribe(func(ev model.Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	return ch, unsub
}

// Recorder collects events; handy in tests.
type Recorder struct {
	mu  sync.Mutex
	evs []model.Event
}

func (r *Recorder) Handle(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.evs...)
}

// Count returns how many recorded events have the given kind.
func (r *Recorder) Count(kind model.EventKind) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
