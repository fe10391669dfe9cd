// Package lifecycle owns every mutation of the conversation store: sending, status
// transitions, edits, tombstone deletes with undo, and peer replies handed over by the
// activity scheduler. Each operation is a full load → mutate → save under one mutex.
package lifecycle

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"

	"hush-cli/internal/activity"
	"hush-cli/internal/cipher"
	"hush-cli/internal/clock"
	"hush-cli/internal/events"
	"hush-cli/internal/model"
	"hush-cli/internal/mutate"
	"hush-cli/internal/store"

	"github.com/charmbracelet/log"
)

var (
	ErrEmptyText           = mutate.ErrEmptyText
	ErrNotEditable         = mutate.ErrNotEditable
	ErrUnknownConversation = mutate.ErrUnknownConversation
)

// ActiveFunc returns the conversation the user is currently looking at, or "".
// It is called while the engine lock is held and must not call back into the engine.
type ActiveFunc func() string

type Deps struct {
	Store  store.Store
	Config store.Config

	// Optional; zero values get sensible defaults.
	Cipher *cipher.Service
	Clock  clock.Clock
	Bus    *events.Bus
	Log    *log.Logger
	Rand   *rand.Rand
	Active ActiveFunc
}

type Engine struct {
	mu sync.Mutex

	store  store.Store
	cfg    store.Config
	cipher *cipher.Service
	clock  clock.Clock
	bus    *events.Bus
	timers *activity.Timers
	sched  *activity.Scheduler
	guard  *activity.Guard
	log    *log.Logger
	active ActiveFunc

	undos map[string]*PendingUndo
}

func New(d Deps) *Engine {
	cfg := d.Config.WithDefaults()
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Bus == nil {
		d.Bus = events.NewBus()
	}
	if d.Log == nil {
		d.Log = log.New(io.Discard)
	}
	if d.Cipher == nil {
		d.Cipher = cipher.New(cfg.Secret)
	}
	if len(d.Store.Contacts) == 0 {
		d.Store.Contacts = cfg.Contacts
	}

	timers := activity.NewTimers(d.Clock)
	e := &Engine{
		store:  d.Store,
		cfg:    cfg,
		cipher: d.Cipher,
		clock:  d.Clock,
		bus:    d.Bus,
		timers: timers,
		guard:  activity.NewGuard(d.Clock, cfg.DuplicateWindow),
		log:    d.Log,
		active: d.Active,
		undos:  map[string]*PendingUndo{},
	}
	e.sched = activity.New(d.Clock, timers, d.Bus, d.Store, d.Log.WithPrefix("activity"), activity.Options{
		TypingDebounce:  cfg.TypingDebounce,
		DuplicateWindow: cfg.DuplicateWindow,
		ReplyDelayMin:   cfg.ReplyDelayMin,
		ReplyDelayMax:   cfg.ReplyDelayMax,
		Rand:            d.Rand,
	})
	e.sched.SetSink(e)
	return e
}

func (e *Engine) Config() store.Config { return e.cfg }
func (e *Engine) Store() store.Store  { return e.store }
func (e *Engine) Bus() *events.Bus    { return e.bus }
func (e *Engine) Me() string          { return e.cfg.Me }

// SetActive replaces the active-conversation provider.
func (e *Engine) SetActive(fn ActiveFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = fn
}

func deliveredKey(id string) string { return "delivered:" + id }
func undoKey(id string) string      { return "undo:" + id }

func (e *Engine) now() int64 { return clock.UnixMilli(e.clock) }

type SendResult struct {
	Message *model.Message
	// Accepted is false when the send was dropped as a duplicate submit.
	Accepted bool
}

// Send appends a new outgoing message. Whitespace-only text is refused with
// ErrEmptyText; a repeat of the previous accepted text within the duplicate window is
// silently dropped.
func (e *Engine) Send(ctx context.Context, convID, text string) (SendResult, error) {
	if strings.TrimSpace(text) == "" {
		return SendResult{}, ErrEmptyText
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.store.Load(ctx)
	if err != nil {
		return SendResult{}, err
	}
	conv, ok := snap.FindConversation(convID)
	if !ok {
		return SendResult{}, fmt.Errorf("%w: %s", ErrUnknownConversation, convID)
	}
	if !e.guard.Check(convID, text) {
		e.log.Debug("duplicate send suppressed", "conv", convID)
		return SendResult{}, nil
	}

	m, err := mutate.Append(snap, e.cipher, mutate.NewMessage{
		ID:        store.NewMessageID(),
		ConvID:    conv.ID,
		From:      e.cfg.Me,
		To:        conv.PeerID,
		Text:      text,
		Status:    model.StatusSent,
		CreatedAt: e.now(),
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("encrypt: %w", err)
	}
	if err := e.store.Save(ctx, snap); err != nil {
		return SendResult{}, err
	}
	e.guard.Record(convID, text)
	if err := e.store.SetDraft(ctx, conv.ID, ""); err != nil {
		e.log.Warn("clear draft", "conv", conv.ID, "err", err)
	}
	e.emit(ctx, model.Event{Kind: model.EventMessageAppended, ConvID: conv.ID, MessageID: m.ID, Status: m.Status, At: m.CreatedAt})
	e.log.Info("message sent", "conv", conv.ID, "id", m.ID)

	id := m.ID
	e.timers.Start(deliveredKey(id), e.cfg.DeliveredDelay, func() {
		if _, err := e.MarkDelivered(context.Background(), id); err != nil {
			e.log.Error("mark delivered", "id", id, "err", err)
		}
	})
	e.sched.ScheduleReply(conv.ID, text)
	return SendResult{Message: &m, Accepted: true}, nil
}

func (e *Engine) MarkDelivered(ctx context.Context, id string) (bool, error) {
	return e.advance(ctx, id, model.StatusDelivered)
}

// MarkSeen advances a message to Seen and stamps seenAt.
func (e *Engine) MarkSeen(ctx context.Context, id string) (bool, error) {
	return e.advance(ctx, id, model.StatusSeen)
}

func (e *Engine) advance(ctx context.Context, id string, target model.Status) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.store.Load(ctx)
	if err != nil {
		return false, err
	}
	now := e.now()
	res := mutate.AdvanceStatus(snap, id, target, now)
	if !res.Changed {
		return false, nil
	}
	if err := e.store.Save(ctx, snap); err != nil {
		return false, err
	}
	e.emit(ctx, model.Event{Kind: model.EventStatusChanged, ConvID: res.Message.ConvID, MessageID: res.Message.ID, Status: target, At: now})
	return true, nil
}

// BulkMarkSeen marks every unseen peer message in the conversation as Seen and moves
// the read marker to now. It returns how many messages changed.
func (e *Engine) BulkMarkSeen(ctx context.Context, convID string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bulkMarkSeenLocked(ctx, convID)
}

func (e *Engine) bulkMarkSeenLocked(ctx context.Context, convID string) (int, error) {
	snap, err := e.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	now := e.now()
	ids := mutate.MarkConversationSeen(snap, e.cfg.Me, convID, now)
	if len(ids) > 0 {
		if err := e.store.Save(ctx, snap); err != nil {
			return 0, err
		}
	}
	if err := e.store.SetReadMarker(ctx, convID, now); err != nil {
		return len(ids), fmt.Errorf("read marker: %w", err)
	}
	evs := make([]model.Event, 0, len(ids))
	for _, id := range ids {
		evs = append(evs, model.Event{Kind: model.EventStatusChanged, ConvID: convID, MessageID: id, Status: model.StatusSeen, At: now})
	}
	e.emit(ctx, evs...)
	return len(ids), nil
}

// Edit replaces the text of an own message. See mutate.Edit for the no-op rules.
func (e *Engine) Edit(ctx context.Context, id, newText string) (mutate.EditResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.store.Load(ctx)
	if err != nil {
		return mutate.EditResult{}, err
	}
	now := e.now()
	res, err := mutate.Edit(snap, e.cipher, e.cfg.Me, id, newText, now)
	if err != nil || !res.Changed {
		return res, err
	}
	if err := e.store.Save(ctx, snap); err != nil {
		return mutate.EditResult{}, err
	}
	e.emit(ctx, model.Event{Kind: model.EventMessageEdited, ConvID: res.Message.ConvID, MessageID: res.Message.ID, Status: res.Message.Status, At: now})
	return res, nil
}

// DeliverReply appends a synthesized peer reply. It implements activity.ReplySink.
func (e *Engine) DeliverReply(ctx context.Context, convID, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.store.Load(ctx)
	if err != nil {
		return err
	}
	conv, ok := snap.FindConversation(convID)
	if !ok {
		e.log.Warn("reply for unknown conversation dropped", "conv", convID)
		return nil
	}
	m, err := mutate.Append(snap, e.cipher, mutate.NewMessage{
		ID:        store.NewMessageID(),
		ConvID:    conv.ID,
		From:      conv.PeerID,
		To:        e.cfg.Me,
		Text:      text,
		Status:    model.StatusDelivered,
		CreatedAt: e.now(),
	})
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	if err := e.store.Save(ctx, snap); err != nil {
		return err
	}
	e.emit(ctx, model.Event{Kind: model.EventMessageAppended, ConvID: conv.ID, MessageID: m.ID, Status: m.Status, At: m.CreatedAt})

	if e.active != nil && e.active() == conv.ID {
		_, err := e.bulkMarkSeenLocked(ctx, conv.ID)
		return err
	}
	e.emit(ctx, model.Event{Kind: model.EventPreviewChanged, ConvID: conv.ID, MessageID: m.ID, At: m.CreatedAt})
	return nil
}

// Input records a keystroke in the composer: the draft is persisted and the typing
// indicator is refreshed.
func (e *Engine) Input(ctx context.Context, convID, text string) error {
	return e.sched.Input(ctx, convID, text)
}

// Typing reports whether the peer typing indicator is visible for a conversation.
func (e *Engine) Typing(convID string) bool { return e.sched.Typing(convID) }

// ReplyPending reports whether a simulated reply is still on its way.
func (e *Engine) ReplyPending(convID string) bool { return e.sched.ReplyPending(convID) }

// Drain waits until every delivered transition, reply and undo window has settled.
func (e *Engine) Drain(ctx context.Context) error { return e.timers.Wait(ctx) }

// Settle prepares an interactive session for exit: open undo windows are dismissed
// and typing debounces stopped, so Drain only waits on receipts and replies.
func (e *Engine) Settle(ctx context.Context) {
	if n := e.DismissUndos(ctx); n > 0 {
		e.log.Debug("undo windows dismissed", "count", n)
	}
	e.sched.StopTyping()
}

func (e *Engine) emit(ctx context.Context, evs ...model.Event) {
	if len(evs) == 0 {
		return
	}
	for _, ev := range evs {
		e.bus.Emit(ev)
	}
	if err := e.store.AppendEvents(ctx, evs...); err != nil {
		e.log.Warn("append events", "err", err)
	}
}
