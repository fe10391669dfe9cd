// Package activity simulates peer activity: the typing indicator, drafts and
// auto-replies, all driven by keyed single-flight timers.
package activity

import (
	"context"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"hush-cli/internal/clock"
	"hush-cli/internal/events"
	"hush-cli/internal/model"

	"github.com/charmbracelet/log"
)

// ReplySink persists a synthesized peer reply. The lifecycle engine implements it.
type ReplySink interface {
	DeliverReply(ctx context.Context, convID, text string) error
}

// DraftStore persists per-conversation drafts.
type DraftStore interface {
	SetDraft(ctx context.Context, convID, text string) error
}

type Options struct {
	TypingDebounce  time.Duration
	DuplicateWindow time.Duration
	ReplyDelayMin   time.Duration
	ReplyDelayMax   time.Duration

	// Rand drives reply delays; nil uses a randomly seeded source.
	Rand *rand.Rand
}

type Scheduler struct {
	clock  clock.Clock
	timers *Timers
	guard  *Guard
	bus    *events.Bus
	drafts DraftStore
	sink   ReplySink
	log    *log.Logger
	opts   Options

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu sync.Mutex
	// typing is visible while either the local debounce or a pending reply holds it.
	localTyping map[string]bool
	replyTyping map[string]bool
}

func New(c clock.Clock, timers *Timers, bus *events.Bus, drafts DraftStore, logger *log.Logger, opts Options) *Scheduler {
	if c == nil {
		c = clock.Real()
	}
	if timers == nil {
		timers = NewTimers(c)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Scheduler{
		clock:       c,
		timers:      timers,
		guard:       NewGuard(c, opts.DuplicateWindow),
		bus:         bus,
		drafts:      drafts,
		log:         logger,
		opts:        opts,
		rnd:         rnd,
		localTyping: map[string]bool{},
		replyTyping: map[string]bool{},
	}
}

// SetSink wires the reply sink. It must be called before the first ScheduleReply.
func (s *Scheduler) SetSink(sink ReplySink) { s.sink = sink }

func (s *Scheduler) Timers() *Timers { return s.timers }

func typingKey(convID string) string { return "typing:" + convID }
func replyKey(convID string) string  { return "reply:" + convID }

// Input handles one keystroke: it persists the draft, shows the typing indicator and
// rearms the trailing-edge debounce that hides it again after a quiet period.
func (s *Scheduler) Input(ctx context.Context, convID, text string) error {
	if s.drafts != nil {
		if err := s.drafts.SetDraft(ctx, convID, text); err != nil {
			return err
		}
	}
	s.setTyping(convID, s.localTyping, true)
	s.timers.Start(typingKey(convID), s.opts.TypingDebounce, func() {
		s.setTyping(convID, s.localTyping, false)
	})
	return nil
}

// ScheduleReply arms a simulated reply to userText. A repeat of the previous text
// within the duplicate window is dropped; otherwise any reply still pending for the
// conversation is cancelled and replaced. It reports whether a reply was scheduled.
func (s *Scheduler) ScheduleReply(convID, userText string) bool {
	if !s.guard.Allow(convID, userText) {
		s.log.Debug("duplicate reply request suppressed", "conv", convID)
		return false
	}
	s.timers.Cancel(replyKey(convID))
	s.setTyping(convID, s.replyTyping, true)

	delay := s.replyDelay()
	s.timers.Start(replyKey(convID), delay, func() {
		s.setTyping(convID, s.replyTyping, false)
		if s.sink == nil {
			return
		}
		if err := s.sink.DeliverReply(context.Background(), convID, PickReply(userText)); err != nil {
			s.log.Error("deliver reply", "conv", convID, "err", err)
		}
	})
	s.log.Debug("reply scheduled", "conv", convID, "delay", delay)
	return true
}

// StopTyping cancels every pending typing debounce and hides the indicators it held.
// Pending replies are left alone.
func (s *Scheduler) StopTyping() {
	s.mu.Lock()
	convs := make([]string, 0, len(s.localTyping))
	for id := range s.localTyping {
		convs = append(convs, id)
	}
	s.mu.Unlock()

	for _, id := range convs {
		s.timers.Cancel(typingKey(id))
		s.setTyping(id, s.localTyping, false)
	}
}

// ReplyPending reports whether a reply timer is armed for the conversation.
func (s *Scheduler) ReplyPending(convID string) bool { return s.timers.Pending(replyKey(convID)) }

// Typing reports whether the peer typing indicator is visible for the conversation.
func (s *Scheduler) Typing(convID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localTyping[convID] || s.replyTyping[convID]
}

// Wait blocks until every timer has fired or been cancelled.
func (s *Scheduler) Wait(ctx context.Context) error { return s.timers.Wait(ctx) }

func (s *Scheduler) replyDelay() time.Duration {
	lo, hi := s.opts.ReplyDelayMin, s.opts.ReplyDelayMax
	if hi <= lo {
		return lo
	}
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return lo + time.Duration(s.rnd.Int64N(int64(hi-lo)+1))
}

func (s *Scheduler) setTyping(convID string, set map[string]bool, on bool) {
	s.mu.Lock()
	before := s.localTyping[convID] || s.replyTyping[convID]
	if on {
		set[convID] = true
	} else {
		delete(set, convID)
	}
	after := s.localTyping[convID] || s.replyTyping[convID]
	s.mu.Unlock()

	if before != after {
		s.bus.Emit(model.Event{
			Kind:   model.EventTypingChanged,
			ConvID: convID,
			Typing: after,
			At:     clock.UnixMilli(s.clock),
		})
	}
}
