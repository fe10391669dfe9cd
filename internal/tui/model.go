package tui

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"hush-cli/internal/lifecycle"
	"hush-cli/internal/model"
	"hush-cli/internal/store"
	"hush-cli/internal/thread"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

type pane int

const (
	paneSidebar pane = iota
	paneInput
	paneThread
)

const (
	sidebarWidth    = 30
	bottomThreshold = 2
)

// session tracks which conversation is on screen; the engine reads it from timer
// goroutines, so it is atomic.
type session struct {
	active atomic.Pointer[string]
}

func (s *session) Active() string {
	if p := s.active.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *session) set(id string) { s.active.Store(&id) }

type eventMsg struct{ ev model.Event }

// undoExpiredMsg fires when an undo toast's window should have closed.
type undoExpiredMsg struct{ id string }

type appModel struct {
	ctx  context.Context
	eng  *lifecycle.Engine
	sess *session
	log  *log.Logger
	now  func() time.Time
	keys keyMap

	events  <-chan model.Event
	changes <-chan struct{}

	width  int
	height int
	focus  pane

	sidebar list.Model
	rows    []lifecycle.Overview

	activeID string
	page     int
	slice    thread.Slice
	unread   thread.UnreadSummary
	typing   bool

	vp    viewport.Model
	input textinput.Model
	// lastInput is the composer text last reported to the engine.
	lastInput string

	// selected indexes slice.Messages; -1 means no selection.
	selected  int
	editingID string
	msgLines  map[string]int

	undo  *lifecycle.PendingUndo
	flash string
	err   string
}

type modelOptions struct {
	Open    string
	Events  <-chan model.Event
	Changes <-chan struct{}
	Now     func() time.Time
	Log     *log.Logger
}

func newAppModel(ctx context.Context, eng *lifecycle.Engine, opts modelOptions) appModel {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = log.New(io.Discard)
	}

	sess := &session{}
	eng.SetActive(sess.Active)

	in := textinput.New()
	in.Placeholder = "Message"
	in.Prompt = "› "
	in.CharLimit = 4000

	m := appModel{
		ctx:      ctx,
		eng:      eng,
		sess:     sess,
		log:      opts.Log,
		now:      opts.Now,
		keys:     defaultKeyMap(),
		events:   opts.Events,
		changes:  opts.Changes,
		focus:    paneSidebar,
		sidebar:  newSidebar(opts.Now),
		vp:       viewport.New(0, 0),
		input:    in,
		selected: -1,
		msgLines: map[string]int{},
	}
	m.loadRows()

	open := opts.Open
	focus := ""
	if open == "" {
		if st, err := eng.Store().LoadTUIState(); err == nil {
			open, focus = st.OpenConversationID, st.Focus
		}
	}
	if open != "" && m.hasRow(open) {
		m.openConversation(open)
		if focus == "sidebar" {
			m.setFocus(paneSidebar)
		}
	}
	return m
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(waitEvent(m.events), waitStoreChange(m.changes), textinput.Blink)
}

func waitEvent(ch <-chan model.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg{ev: ev}
	}
}

// drainEvents discards already-queued events; one refresh covers them all.
func (m *appModel) drainEvents() {
	for {
		select {
		case _, ok := <-m.events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (m *appModel) hasRow(convID string) bool {
	for _, r := range m.rows {
		if r.Conversation.ID == convID {
			return true
		}
	}
	return false
}

func (m *appModel) loadRows() {
	rows, err := m.eng.Conversations(m.ctx)
	if err != nil {
		m.setErr(err)
		return
	}
	m.rows = rows
	idx := m.sidebar.Index()
	m.sidebar.SetItems(sidebarItems(rows))
	if idx >= 0 && idx < len(rows) {
		m.sidebar.Select(idx)
	}
}

func (m *appModel) openConversation(convID string) {
	m.activeID = convID
	m.sess.set(convID)
	m.page = 0
	m.selected = -1
	m.editingID = ""
	for i, r := range m.rows {
		if r.Conversation.ID == convID {
			m.sidebar.Select(i)
		}
	}

	draft, err := m.eng.Draft(m.ctx, convID)
	if err != nil {
		m.setErr(err)
	}
	m.input.SetValue(draft)
	m.input.CursorEnd()
	m.lastInput = draft

	m.loadThread(true)
	m.setFocus(paneInput)
	m.markSeenIfAtBottom()
}

// loadThread re-reads the open conversation. stick keeps the view pinned to the
// newest message.
func (m *appModel) loadThread(stick bool) {
	if m.activeID == "" {
		return
	}
	var selID string
	if m.selected >= 0 && m.selected < len(m.slice.Messages) {
		selID = m.slice.Messages[m.selected].ID
	}

	slice, err := m.eng.Page(m.ctx, m.activeID, m.page)
	if err != nil {
		m.setErr(err)
		return
	}
	m.slice = slice
	if u, err := m.eng.Unread(m.ctx, m.activeID, m.page); err == nil {
		m.unread = u
	}
	m.typing = m.eng.Typing(m.activeID)

	m.selected = -1
	for i, msg := range slice.Messages {
		if msg.ID == selID {
			m.selected = i
		}
	}
	if selID != "" && m.selected < 0 && m.focus == paneThread && len(slice.Messages) > 0 {
		m.selected = len(slice.Messages) - 1
	}

	m.renderThread()
	if stick {
		m.vp.GotoBottom()
	}
}

// refresh reloads everything after the store changed underneath us.
func (m *appModel) refresh() {
	stick := m.atBottom()
	m.loadRows()
	m.loadThread(stick)
	m.markSeenIfAtBottom()
}

func (m *appModel) atBottom() bool {
	return thread.NearBottom(m.vp.YOffset, m.vp.TotalLineCount(), m.vp.Height, bottomThreshold)
}

// markSeenIfAtBottom marks the open conversation seen once the newest messages are
// in view. It only writes when a peer message is still unseen.
func (m *appModel) markSeenIfAtBottom() {
	if m.activeID == "" || !m.atBottom() || !m.hasUnseenPeer() {
		return
	}
	if _, err := m.eng.BulkMarkSeen(m.ctx, m.activeID); err != nil {
		m.setErr(err)
	}
}

func (m *appModel) hasUnseenPeer() bool {
	me := m.eng.Me()
	for _, msg := range m.slice.Messages {
		if msg.From != me && msg.Status != model.StatusSeen {
			return true
		}
	}
	return false
}

// loadOlder widens the window by one page and keeps the current content in place.
func (m *appModel) loadOlder() {
	if !m.slice.HasMore {
		return
	}
	prevOffset, prevHeight := m.vp.YOffset, m.vp.TotalLineCount()
	prevCount := len(m.slice.Messages)
	m.page++
	m.loadThread(false)
	m.vp.SetYOffset(thread.AnchorOffset(prevOffset, prevHeight, m.vp.TotalLineCount()))
	if m.selected >= 0 {
		m.selected += len(m.slice.Messages) - prevCount
		if m.selected < 0 {
			m.selected = 0
		}
	}
}

func (m *appModel) setFocus(p pane) {
	m.focus = p
	if p == paneInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
	if p != paneThread {
		m.selected = -1
	} else if m.selected < 0 && len(m.slice.Messages) > 0 {
		m.selected = len(m.slice.Messages) - 1
	}
	m.renderThread()
}

func (m *appModel) setErr(err error) {
	if err == nil {
		return
	}
	m.log.Error("tui", "err", err)
	m.err = err.Error()
}

func (m *appModel) selectedMessage() (model.Message, bool) {
	if m.selected < 0 || m.selected >= len(m.slice.Messages) {
		return model.Message{}, false
	}
	return m.slice.Messages[m.selected], true
}

func (m appModel) state() *store.TUIState {
	focus := "input"
	if m.focus == paneSidebar {
		focus = "sidebar"
	}
	return &store.TUIState{OpenConversationID: m.activeID, Focus: focus}
}
