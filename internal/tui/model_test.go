package tui

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"hush-cli/internal/clock"
	"hush-cli/internal/lifecycle"
	"hush-cli/internal/model"
	"hush-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, clk *clock.Manual) *lifecycle.Engine {
	t.Helper()
	lipgloss.SetColorProfile(termenv.Ascii)
	return lifecycle.New(lifecycle.Deps{
		Store:  store.Store{Dir: t.TempDir()},
		Config: store.Config{Me: "me", Secret: "test-secret"},
		Clock:  clk,
		Rand:   rand.New(rand.NewPCG(1, 2)),
	})
}

func newTestModel(t *testing.T, eng *lifecycle.Engine, clk *clock.Manual, open string) appModel {
	t.Helper()
	m := newAppModel(context.Background(), eng, modelOptions{Open: open, Now: clk.Now})
	return update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
}

func update(m appModel, msgs ...tea.Msg) appModel {
	for _, msg := range msgs {
		nm, _ := m.Update(msg)
		m = nm.(appModel)
	}
	return m
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	tab   = tea.KeyMsg{Type: tea.KeyTab}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func TestOpen_RestoresDraftAndActivatesConversation(t *testing.T) {
	clk := clock.NewManual(t0)
	eng := newTestEngine(t, clk)
	require.NoError(t, eng.Input(context.Background(), "conv-alice", "half a thought"))

	m := newTestModel(t, eng, clk, "conv-alice")
	require.Equal(t, "conv-alice", m.activeID)
	require.Equal(t, "conv-alice", m.sess.Active())
	require.Equal(t, paneInput, m.focus)
	require.Equal(t, "half a thought", m.input.Value())
}

func TestOpen_FallsBackToSavedState(t *testing.T) {
	clk := clock.NewManual(t0)
	eng := newTestEngine(t, clk)
	require.NoError(t, eng.Store().SaveTUIState(&store.TUIState{OpenConversationID: "conv-bob", Focus: "sidebar"}))

	m := newTestModel(t, eng, clk, "")
	require.Equal(t, "conv-bob", m.activeID)
	require.Equal(t, paneSidebar, m.focus)
	require.Equal(t, "sidebar", m.state().Focus)
}

func TestComposer_SendsAndClearsDraft(t *testing.T) {
	clk := clock.NewManual(t0)
	eng := newTestEngine(t, clk)
	ctx := context.Background()

	m := newTestModel(t, eng, clk, "conv-alice")
	m = update(m, runes("hello"))
	draft, err := eng.Draft(ctx, "conv-alice")
	require.NoError(t, err)
	require.Equal(t, "hello", draft)

	m = update(m, enter)
	require.Empty(t, m.input.Value())
	require.Len(t, m.slice.Messages, 1)
	require.Equal(t, "hello", eng.Text(m.slice.Messages[0]))

	draft, err = eng.Draft(ctx, "conv-alice")
	require.NoError(t, err)
	require.Empty(t, draft)

	// Enter on an empty composer does nothing.
	m = update(m, enter)
	require.Len(t, m.slice.Messages, 1)
}

func TestReply_ToOpenConversationIsSeen(t *testing.T) {
	clk := clock.NewManual(t0)
	eng := newTestEngine(t, clk)

	m := newTestModel(t, eng, clk, "conv-alice")
	m = update(m, runes("hi"), enter)
	clk.Advance(10 * time.Second)
	m = update(m, eventMsg{})

	require.Len(t, m.slice.Messages, 2)
	mine, reply := m.slice.Messages[0], m.slice.Messages[1]
	require.Equal(t, model.StatusDelivered, mine.Status)
	require.Equal(t, "alice", reply.From)
	require.Equal(t, model.StatusSeen, reply.Status)
	require.Zero(t, m.unread.Count)
}

func TestThread_DeleteThenUndo(t *testing.T) {
	clk := clock.NewManual(t0)
	eng := newTestEngine(t, clk)

	m := newTestModel(t, eng, clk, "conv-alice")
	m = update(m, runes("oops"), enter)
	before := m.slice.Messages[0]

	m = update(m, tab)
	require.Equal(t, paneThread, m.focus)
	require.Equal(t, 0, m.selected)

	nm, cmd := m.Update(runes("d"))
	m = nm.(appModel)
	require.NotNil(t, cmd)
	require.NotNil(t, m.undo)
	require.Empty(t, m.slice.Messages)
	require.Contains(t, m.statusView(), "Message deleted")

	m = update(m, runes("u"))
	require.Nil(t, m.undo)
	require.Len(t, m.slice.Messages, 1)
	require.Equal(t, before, m.slice.Messages[0])
}

func TestThread_DismissMakesDeletePermanent(t *testing.T) {
	clk := clock.NewManual(t0)
	eng := newTestEngine(t, clk)

	m := newTestModel(t, eng, clk, "conv-alice")
	m = update(m, runes("gone"), enter, tab, runes("d"), esc)
	require.Nil(t, m.undo)

	m = update(m, runes("u"))
	require.Empty(t, m.slice.Messages)
}

func TestThread_UndoExpiredClearsToast(t *testing.T) {
	clk := clock.NewManual(t0)
	eng := newTestEngine(t, clk)

	m := newTestModel(t, eng, clk, "conv-alice")
	m = update(m, runes("gone"), enter, tab, runes("d"))
	require.NotNil(t, m.undo)

	m = update(m, undoExpiredMsg{id: m.undo.MessageID()})
	require.Nil(t, m.undo)
}

func TestThread_EditOwnMessage(t *testing.T) {
	clk := clock.NewManual(t0)
	eng := newTestEngine(t, clk)
	ctx := context.Background()

	m := newTestModel(t, eng, clk, "conv-alice")
	m = update(m, runes("draft one"), enter)
	require.NoError(t, eng.Input(ctx, "conv-alice", "unsent"))
	m = update(m, eventMsg{}, tab, runes("e"))

	require.Equal(t, paneInput, m.focus)
	require.NotEmpty(t, m.editingID)
	require.Equal(t, "draft one", m.input.Value())

	m = update(m, runes("!"), enter)
	require.Empty(t, m.editingID)
	require.Equal(t, "unsent", m.input.Value())
	require.Len(t, m.slice.Messages, 1)
	require.Equal(t, "draft one!", eng.Text(m.slice.Messages[0]))
	require.NotNil(t, m.slice.Messages[0].EditedAt)
}

func TestThread_CannotEditPeerMessage(t *testing.T) {
	clk := clock.NewManual(t0)
	eng := newTestEngine(t, clk)
	require.NoError(t, eng.DeliverReply(context.Background(), "conv-alice", "from alice"))

	m := newTestModel(t, eng, clk, "conv-alice")
	m = update(m, tab, runes("e"))
	require.Empty(t, m.editingID)
	require.Equal(t, paneThread, m.focus)
	require.Contains(t, m.statusView(), "Only your own messages")
}

func TestThread_LoadOlderKeepsAnchor(t *testing.T) {
	clk := clock.NewManual(t0)
	eng := newTestEngine(t, clk)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, eng.DeliverReply(ctx, "conv-bob", "message"))
		clk.Advance(time.Second)
	}

	m := newTestModel(t, eng, clk, "conv-bob")
	require.Len(t, m.slice.Messages, 20)
	require.True(t, m.slice.HasMore)

	m.vp.SetYOffset(0)
	prevHeight := m.vp.TotalLineCount()
	m = update(m, tab, runes("o"))
	require.Len(t, m.slice.Messages, 25)
	require.False(t, m.slice.HasMore)
	require.Equal(t, 1, m.page)
	require.Equal(t, m.vp.TotalLineCount()-prevHeight, m.vp.YOffset)
}

func TestSidebar_OpenWithEnter(t *testing.T) {
	clk := clock.NewManual(t0)
	eng := newTestEngine(t, clk)

	m := newTestModel(t, eng, clk, "")
	require.Equal(t, paneSidebar, m.focus)
	require.Empty(t, m.activeID)

	m = update(m, tea.KeyMsg{Type: tea.KeyDown}, enter)
	require.Equal(t, "conv-bob", m.activeID)
	require.Equal(t, paneInput, m.focus)
	require.Contains(t, m.View(), "Bob")
}
