package lifecycle

import (
	"context"
	"time"

	"hush-cli/internal/model"
	"hush-cli/internal/mutate"
	"hush-cli/internal/store"
)

// PendingUndo is the open undo window of one delete. Its state is guarded by the
// engine lock.
type PendingUndo struct {
	engine    *Engine
	prior     model.Message
	expiresAt int64
	closed    bool
}

func (p *PendingUndo) MessageID() string    { return p.prior.ID }
func (p *PendingUndo) ConvID() string       { return p.prior.ConvID }
func (p *PendingUndo) ExpiresAt() time.Time { return time.UnixMilli(p.expiresAt) }
func (p *PendingUndo) Prior() model.Message { return p.prior.Clone() }

// Open reports whether Undo can still succeed.
func (p *PendingUndo) Open() bool {
	p.engine.mu.Lock()
	defer p.engine.mu.Unlock()
	return p.openLocked()
}

func (p *PendingUndo) openLocked() bool {
	return !p.closed && p.engine.now() < p.expiresAt
}

// Undo restores the pre-delete message if the window is open and the message is still
// tombstoned. Receipts that arrived meanwhile are kept. The window closes either way.
func (p *PendingUndo) Undo(ctx context.Context) (bool, error) {
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if !p.openLocked() {
		return false, nil
	}
	e.closeUndoLocked(ctx, p)
	return e.restoreLocked(ctx, p.prior)
}

// Dismiss closes the window early.
func (p *PendingUndo) Dismiss(ctx context.Context) {
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.closed {
		return
	}
	e.closeUndoLocked(ctx, p)
}

// Delete tombstones a message and opens its undo window. Missing ids and existing
// tombstones return a nil PendingUndo.
func (e *Engine) Delete(ctx context.Context, id string) (*PendingUndo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	res := mutate.Tombstone(snap, id)
	if !res.Changed {
		return nil, nil
	}
	if err := e.store.Save(ctx, snap); err != nil {
		return nil, err
	}
	now := e.now()
	p := &PendingUndo{engine: e, prior: res.Prior, expiresAt: now + e.cfg.UndoWindow.Milliseconds()}
	if err := e.store.PutUndo(ctx, store.UndoRecord{Message: res.Prior, ExpiresAt: p.expiresAt}); err != nil {
		e.log.Warn("persist undo record", "id", res.Prior.ID, "err", err)
	}
	if old := e.undos[res.Prior.ID]; old != nil {
		old.closed = true
	}
	e.undos[res.Prior.ID] = p
	e.timers.Start(undoKey(res.Prior.ID), e.cfg.UndoWindow, func() { e.expireUndo(p) })

	e.emit(ctx, model.Event{Kind: model.EventMessageDeleted, ConvID: res.Prior.ConvID, MessageID: res.Prior.ID, At: now})
	return p, nil
}

// UndoDelete restores prior if the stored message is still tombstoned. It does not
// consult any undo window.
func (e *Engine) UndoDelete(ctx context.Context, prior model.Message) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.restoreLocked(ctx, prior)
}

// UndoByID restores a deleted message from its persisted undo record, so a process
// other than the one that deleted it can undo within the window.
func (e *Engine) UndoByID(ctx context.Context, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p := e.undos[id]; p != nil {
		if !p.openLocked() {
			return false, nil
		}
		e.closeUndoLocked(ctx, p)
		return e.restoreLocked(ctx, p.prior)
	}

	rec, ok, err := e.store.Undo(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	if err := e.store.DropUndo(ctx, id); err != nil {
		return false, err
	}
	if e.now() >= rec.ExpiresAt {
		return false, nil
	}
	return e.restoreLocked(ctx, rec.Message)
}

func (e *Engine) restoreLocked(ctx context.Context, prior model.Message) (bool, error) {
	snap, err := e.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if !mutate.Restore(snap, prior) {
		return false, nil
	}
	status := prior.Status
	if m, ok := snap.FindMessage(prior.ID); ok {
		status = m.Status
	}
	if err := e.store.Save(ctx, snap); err != nil {
		return false, err
	}
	e.emit(ctx, model.Event{Kind: model.EventMessageRestored, ConvID: prior.ConvID, MessageID: prior.ID, Status: status, At: e.now()})
	return true, nil
}

func (e *Engine) closeUndoLocked(ctx context.Context, p *PendingUndo) {
	p.closed = true
	if e.undos[p.prior.ID] == p {
		delete(e.undos, p.prior.ID)
		e.timers.Cancel(undoKey(p.prior.ID))
	}
	if err := e.store.DropUndo(ctx, p.prior.ID); err != nil {
		e.log.Warn("drop undo record", "id", p.prior.ID, "err", err)
	}
}

func (e *Engine) expireUndo(p *PendingUndo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.closed {
		return
	}
	e.closeUndoLocked(context.Background(), p)
}

// DismissUndos closes every open undo window, making those deletes permanent.
func (e *Engine) DismissUndos(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, p := range e.undos {
		if !p.closed {
			e.closeUndoLocked(ctx, p)
			n++
		}
	}
	return n
}
