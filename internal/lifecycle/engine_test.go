package lifecycle

import (
	"context"
	"database/sql"
	"math/rand/v2"
	"testing"
	"time"

	"hush-cli/internal/clock"
	"hush-cli/internal/events"
	"hush-cli/internal/model"
	"hush-cli/internal/store"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	clk    *clock.Manual
	eng    *Engine
	rec    *events.Recorder
	active string
}

func newHarness(t *testing.T, dir string, clk *clock.Manual) *harness {
	t.Helper()
	h := &harness{clk: clk, rec: &events.Recorder{}}
	bus := events.NewBus()
	bus.Subscribe(h.rec.Handle)
	h.eng = New(Deps{
		Store:  store.Store{Dir: dir},
		Config: store.Config{Me: "me", Secret: "test-secret"},
		Clock:  clk,
		Bus:    bus,
		Rand:   rand.New(rand.NewPCG(1, 2)),
		Active: func() string { return h.active },
	})
	return h
}

func (h *harness) messages(t *testing.T, convID string) []model.Message {
	t.Helper()
	snap, err := h.eng.Snapshot(context.Background())
	require.NoError(t, err)
	return snap.ConversationMessages(convID)
}

func (h *harness) find(t *testing.T, id string) model.Message {
	t.Helper()
	snap, err := h.eng.Snapshot(context.Background())
	require.NoError(t, err)
	m, ok := snap.FindMessage(id)
	require.True(t, ok, "message %s not found", id)
	return *m
}

func TestSend_RejectsEmptyAndUnknown(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	ctx := context.Background()

	_, err := h.eng.Send(ctx, "conv-alice", "   \n")
	require.ErrorIs(t, err, ErrEmptyText)

	_, err = h.eng.Send(ctx, "conv-nobody", "hello")
	require.ErrorIs(t, err, ErrUnknownConversation)

	require.Empty(t, h.messages(t, "conv-alice"))
	require.Zero(t, h.clk.Pending())
}

func TestSend_FailedSaveDoesNotArmDuplicateGuard(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir, clock.NewManual(t0))
	ctx := context.Background()

	// Initialize the document, then make every snapshot write fail.
	_, err := h.eng.Snapshot(ctx)
	require.NoError(t, err)
	db, err := sql.Open("sqlite", h.eng.Store().DBPath())
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TRIGGER reject_snapshot BEFORE INSERT ON snapshot BEGIN SELECT RAISE(ABORT, 'disk full'); END;`)
	require.NoError(t, err)

	_, err = h.eng.Send(ctx, "conv-alice", "retry me")
	require.Error(t, err)
	require.Empty(t, h.messages(t, "conv-alice"))

	_, err = db.Exec(`DROP TRIGGER reject_snapshot;`)
	require.NoError(t, err)

	res, err := h.eng.Send(ctx, "conv-alice", "retry me")
	require.NoError(t, err)
	require.True(t, res.Accepted, "a retry after a failed save is not a duplicate")
	require.Len(t, h.messages(t, "conv-alice"), 1)

	res, err = h.eng.Send(ctx, "conv-alice", "retry me")
	require.NoError(t, err)
	require.False(t, res.Accepted)
}

func TestSend_DeliveredAfterDelay(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	ctx := context.Background()

	res, err := h.eng.Send(ctx, "conv-alice", "ok")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, model.StatusSent, res.Message.Status)
	require.Equal(t, "me", res.Message.From)
	require.Equal(t, "alice", res.Message.To)
	require.Equal(t, t0.UnixMilli(), res.Message.CreatedAt)
	require.Equal(t, "ok", h.eng.Text(*res.Message))

	h.clk.Advance(699 * time.Millisecond)
	require.Equal(t, model.StatusSent, h.find(t, res.Message.ID).Status)

	h.clk.Advance(time.Millisecond)
	require.Equal(t, model.StatusDelivered, h.find(t, res.Message.ID).Status)
	require.Equal(t, 1, h.rec.Count(model.EventStatusChanged))
}

func TestSend_DoubleSubmitWithinWindowIsDropped(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	ctx := context.Background()

	first, err := h.eng.Send(ctx, "conv-alice", "Hello")
	require.NoError(t, err)
	require.True(t, first.Accepted)

	h.clk.Advance(300 * time.Millisecond)
	second, err := h.eng.Send(ctx, "conv-alice", "Hello")
	require.NoError(t, err)
	require.False(t, second.Accepted)
	require.Len(t, h.messages(t, "conv-alice"), 1)

	// Other conversations and later repeats are independent.
	other, err := h.eng.Send(ctx, "conv-bob", "Hello")
	require.NoError(t, err)
	require.True(t, other.Accepted)

	h.clk.Advance(300 * time.Millisecond)
	third, err := h.eng.Send(ctx, "conv-alice", "Hello")
	require.NoError(t, err)
	require.True(t, third.Accepted)
}

func TestReply_SingleFlightAnswersLatestText(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	ctx := context.Background()

	_, err := h.eng.Send(ctx, "conv-alice", "hi")
	require.NoError(t, err)
	h.clk.Advance(200 * time.Millisecond)
	_, err = h.eng.Send(ctx, "conv-alice", "thanks")
	require.NoError(t, err)
	require.True(t, h.eng.Typing("conv-alice"))

	h.clk.Advance(2 * time.Second)

	var replies []string
	for _, m := range h.messages(t, "conv-alice") {
		if m.From == "alice" {
			require.Equal(t, model.StatusDelivered, m.Status)
			require.Equal(t, "me", m.To)
			replies = append(replies, h.eng.Text(m))
		}
	}
	require.Equal(t, []string{"Anytime! 😊"}, replies)
	require.False(t, h.eng.Typing("conv-alice"))
	require.False(t, h.eng.ReplyPending("conv-alice"))
	require.Equal(t, 1, h.rec.Count(model.EventPreviewChanged))
}

func TestReply_ActiveConversationIsMarkedSeen(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	h.active = "conv-alice"
	ctx := context.Background()

	_, err := h.eng.Send(ctx, "conv-alice", "how are you?")
	require.NoError(t, err)
	h.clk.Advance(2 * time.Second)

	var reply *model.Message
	for _, m := range h.messages(t, "conv-alice") {
		if m.From == "alice" {
			reply = &m
		}
	}
	require.NotNil(t, reply)
	require.Equal(t, model.StatusSeen, reply.Status)
	require.NotNil(t, reply.SeenAt)
	require.Zero(t, h.rec.Count(model.EventPreviewChanged))

	marker, err := h.eng.Store().ReadMarker(ctx, "conv-alice")
	require.NoError(t, err)
	require.Equal(t, *reply.SeenAt, marker)

	unread, err := h.eng.Unread(ctx, "conv-alice", 0)
	require.NoError(t, err)
	require.Zero(t, unread.Count)
}

func TestBulkMarkSeen(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	ctx := context.Background()

	require.NoError(t, h.eng.DeliverReply(ctx, "conv-bob", "one"))
	h.clk.Advance(time.Second)
	require.NoError(t, h.eng.DeliverReply(ctx, "conv-bob", "two"))
	mine, err := h.eng.Send(ctx, "conv-bob", "mine")
	require.NoError(t, err)

	unread, err := h.eng.Unread(ctx, "conv-bob", 0)
	require.NoError(t, err)
	require.Equal(t, 2, unread.Count)
	require.Equal(t, h.messages(t, "conv-bob")[0].ID, unread.FirstID)

	h.clk.Advance(100 * time.Millisecond)
	n, err := h.eng.BulkMarkSeen(ctx, "conv-bob")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	var stamps []int64
	for _, m := range h.messages(t, "conv-bob") {
		if m.From == "bob" {
			require.Equal(t, model.StatusSeen, m.Status)
			stamps = append(stamps, *m.SeenAt)
		}
	}
	require.Len(t, stamps, 2)
	require.Equal(t, stamps[0], stamps[1])
	require.Equal(t, model.StatusSent, h.find(t, mine.Message.ID).Status)

	unread, err = h.eng.Unread(ctx, "conv-bob", 0)
	require.NoError(t, err)
	require.Zero(t, unread.Count)

	n, err = h.eng.BulkMarkSeen(ctx, "conv-bob")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestStatus_NeverMovesBackward(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	ctx := context.Background()

	res, err := h.eng.Send(ctx, "conv-sam", "yo")
	require.NoError(t, err)
	id := res.Message.ID

	changed, err := h.eng.MarkSeen(ctx, id)
	require.NoError(t, err)
	require.True(t, changed)

	// The delivered timer still fires but must not regress the status.
	h.clk.Advance(time.Second)
	m := h.find(t, id)
	require.Equal(t, model.StatusSeen, m.Status)
	require.Equal(t, t0.UnixMilli(), *m.SeenAt)

	changed, err = h.eng.MarkDelivered(ctx, id)
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = h.eng.MarkSeen(ctx, "msg-missing")
	require.NoError(t, err)
	require.False(t, changed)
}

func TestStatus_UndoKeepsDeliveredFromWhileDeleted(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	ctx := context.Background()

	res, err := h.eng.Send(ctx, "conv-alice", "ok")
	require.NoError(t, err)
	id := res.Message.ID

	p, err := h.eng.Delete(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)

	h.clk.Advance(800 * time.Millisecond)
	require.Equal(t, model.StatusDelivered, h.find(t, id).Status)

	ok, err := p.Undo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	m := h.find(t, id)
	require.False(t, m.Deleted)
	require.Equal(t, model.StatusDelivered, m.Status)

	var restored []model.Event
	for _, ev := range h.rec.Events() {
		if ev.Kind == model.EventMessageRestored {
			restored = append(restored, ev)
		}
	}
	require.Len(t, restored, 1)
	require.Equal(t, model.StatusDelivered, restored[0].Status)
}

func TestStatus_UndoByIDKeepsSeenFromWhileDeleted(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewManual(t0)
	h := newHarness(t, dir, clk)
	ctx := context.Background()

	require.NoError(t, h.eng.DeliverReply(ctx, "conv-bob", "ping"))
	peer := h.messages(t, "conv-bob")[0]
	require.Equal(t, model.StatusDelivered, peer.Status)

	_, err := h.eng.Delete(ctx, peer.ID)
	require.NoError(t, err)

	clk.Advance(time.Second)
	changed, err := h.eng.MarkSeen(ctx, peer.ID)
	require.NoError(t, err)
	require.True(t, changed)

	// A second engine over the same store undoes from the persisted record.
	other := newHarness(t, dir, clk)
	ok, err := other.eng.UndoByID(ctx, peer.ID)
	require.NoError(t, err)
	require.True(t, ok)

	m := h.find(t, peer.ID)
	require.False(t, m.Deleted)
	require.Equal(t, model.StatusSeen, m.Status)
	require.NotNil(t, m.SeenAt)
	require.Equal(t, t0.Add(time.Second).UnixMilli(), *m.SeenAt)
}

func TestEdit(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	ctx := context.Background()

	res, err := h.eng.Send(ctx, "conv-alice", "helo")
	require.NoError(t, err)
	require.NoError(t, h.eng.DeliverReply(ctx, "conv-alice", "hey"))
	peer := h.messages(t, "conv-alice")[1]

	_, err = h.eng.Edit(ctx, peer.ID, "hijack")
	require.ErrorIs(t, err, ErrNotEditable)

	h.clk.Advance(5 * time.Second)
	edit, err := h.eng.Edit(ctx, res.Message.ID, "hello")
	require.NoError(t, err)
	require.True(t, edit.Changed)

	m := h.find(t, res.Message.ID)
	require.Equal(t, "hello", h.eng.Text(m))
	require.NotNil(t, m.EditedAt)
	require.Equal(t, t0.Add(5*time.Second).UnixMilli(), *m.EditedAt)
	require.Equal(t, model.StatusDelivered, m.Status)
	require.Equal(t, 1, h.rec.Count(model.EventMessageEdited))

	edit, err = h.eng.Edit(ctx, res.Message.ID, "hello")
	require.NoError(t, err)
	require.False(t, edit.Changed)
}

func TestDelete_UndoRestoresExactMessage(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	ctx := context.Background()

	res, err := h.eng.Send(ctx, "conv-alice", "oops")
	require.NoError(t, err)
	h.clk.Advance(3 * time.Second)
	before := h.find(t, res.Message.ID)

	p, err := h.eng.Delete(ctx, res.Message.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.True(t, h.find(t, res.Message.ID).Deleted)

	page, err := h.eng.Page(ctx, "conv-alice", 0)
	require.NoError(t, err)
	for _, m := range page.Messages {
		require.NotEqual(t, res.Message.ID, m.ID)
	}

	h.clk.Advance(5 * time.Second)
	ok, err := p.Undo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, before, h.find(t, res.Message.ID))
	require.Equal(t, 1, h.rec.Count(model.EventMessageRestored))

	_, found, err := h.eng.Store().Undo(ctx, res.Message.ID)
	require.NoError(t, err)
	require.False(t, found)

	ok, err = p.Undo(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDelete_WindowExpiresAndDismisses(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	ctx := context.Background()

	a, err := h.eng.Send(ctx, "conv-alice", "first")
	require.NoError(t, err)
	b, err := h.eng.Send(ctx, "conv-alice", "second")
	require.NoError(t, err)
	h.clk.Advance(2 * time.Second)

	pa, err := h.eng.Delete(ctx, a.Message.ID)
	require.NoError(t, err)
	again, err := h.eng.Delete(ctx, a.Message.ID)
	require.NoError(t, err)
	require.Nil(t, again)

	h.clk.Advance(6 * time.Second)
	require.False(t, pa.Open())
	ok, err := pa.Undo(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, h.find(t, a.Message.ID).Deleted)

	pb, err := h.eng.Delete(ctx, b.Message.ID)
	require.NoError(t, err)
	pb.Dismiss(ctx)
	ok, err = pb.Undo(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, h.find(t, b.Message.ID).Deleted)

	missing, err := h.eng.Delete(ctx, "msg-missing")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUndoByID_FromAnotherProcess(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	a := newHarness(t, dir, clock.NewManual(t0))

	res, err := a.eng.Send(ctx, "conv-bob", "regret")
	require.NoError(t, err)
	a.clk.Advance(time.Second)
	before := a.find(t, res.Message.ID)
	_, err = a.eng.Delete(ctx, res.Message.ID)
	require.NoError(t, err)

	b := newHarness(t, dir, clock.NewManual(t0.Add(4*time.Second)))
	ok, err := b.eng.UndoByID(ctx, res.Message.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, before, b.find(t, res.Message.ID))

	_, err = a.eng.Delete(ctx, res.Message.ID)
	require.NoError(t, err)
	late := newHarness(t, dir, clock.NewManual(t0.Add(30*time.Second)))
	ok, err = late.eng.UndoByID(ctx, res.Message.ID)
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, late.find(t, res.Message.ID).Deleted)
}

func TestDrain_WaitsForOutstandingActivity(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	ctx := context.Background()

	_, err := h.eng.Send(ctx, "conv-alice", "ping")
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, h.eng.Drain(short), context.DeadlineExceeded)

	h.clk.Advance(2 * time.Second)
	require.NoError(t, h.eng.Drain(ctx))
	require.Len(t, h.messages(t, "conv-alice"), 2)
}

func TestConversations_Overview(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	ctx := context.Background()

	require.NoError(t, h.eng.DeliverReply(ctx, "conv-alice", "are you up?"))
	require.NoError(t, h.eng.Input(ctx, "conv-bob", "half a thou"))

	rows, err := h.eng.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.Equal(t, "Alice", rows[0].Contact.Name)
	require.Equal(t, "are you up?", rows[0].LastText)
	require.Equal(t, 1, rows[0].Unread)

	require.Equal(t, "half a thou", rows[1].Draft)
	require.True(t, rows[1].Typing)
	require.Nil(t, rows[1].Last)

	id, ok := h.eng.Resolve("Sam")
	require.True(t, ok)
	require.Equal(t, "conv-sam", id)
}

func TestSettle_DismissesUndosAndTyping(t *testing.T) {
	h := newHarness(t, t.TempDir(), clock.NewManual(t0))
	ctx := context.Background()

	require.NoError(t, h.eng.DeliverReply(ctx, "conv-alice", "bye"))
	peer := h.messages(t, "conv-alice")[0]
	p, err := h.eng.Delete(ctx, peer.ID)
	require.NoError(t, err)
	require.NoError(t, h.eng.Input(ctx, "conv-alice", "draft"))
	require.True(t, h.eng.Typing("conv-alice"))

	h.eng.Settle(ctx)
	require.False(t, p.Open())
	require.False(t, h.eng.Typing("conv-alice"))

	dctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, h.eng.Drain(dctx), "nothing is left to wait on")

	ok, err := h.eng.UndoByID(ctx, peer.ID)
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, h.find(t, peer.ID).Deleted)

	draft, err := h.eng.Draft(ctx, "conv-alice")
	require.NoError(t, err)
	require.Equal(t, "draft", draft)
}
