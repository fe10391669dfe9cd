package lifecycle

import (
	"context"
	"strings"

	"hush-cli/internal/cipher"
	"hush-cli/internal/model"
	"hush-cli/internal/store"
	"hush-cli/internal/thread"
)

// Snapshot loads the current compacted document.
func (e *Engine) Snapshot(ctx context.Context) (*store.Snapshot, error) {
	return e.store.Load(ctx)
}

// Text decrypts a message body; failures render as cipher.Undecryptable.
func (e *Engine) Text(m model.Message) string {
	return e.cipher.Decrypt(m.ConvID, m.Cipher).Text()
}

// Resolve maps a contact id, contact name or conversation id to a conversation id.
func (e *Engine) Resolve(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if c, ok := e.cfg.FindContact(s); ok {
		return model.ConversationID(c.ID), true
	}
	return "", false
}

// Contact returns the contact behind a conversation; unknown peers get a bare entry.
func (e *Engine) Contact(conv model.Conversation) model.Contact {
	for _, c := range e.cfg.Contacts {
		if c.ID == conv.PeerID {
			return c
		}
	}
	return model.Contact{ID: conv.PeerID, Name: conv.PeerID}
}

// Page returns the visible window of a conversation for a page index.
func (e *Engine) Page(ctx context.Context, convID string, page int) (thread.Slice, error) {
	snap, err := e.store.Load(ctx)
	if err != nil {
		return thread.Slice{}, err
	}
	return thread.VisibleSlice(snap.Messages, convID, page, e.cfg.PageSize), nil
}

// Unread summarizes the unread messages inside the visible window.
func (e *Engine) Unread(ctx context.Context, convID string, page int) (thread.UnreadSummary, error) {
	slice, err := e.Page(ctx, convID, page)
	if err != nil {
		return thread.UnreadSummary{}, err
	}
	marker, err := e.store.ReadMarker(ctx, convID)
	if err != nil {
		return thread.UnreadSummary{}, err
	}
	return thread.Summarize(thread.Unread(slice.Messages, marker, e.cfg.Me)), nil
}

func (e *Engine) Draft(ctx context.Context, convID string) (string, error) {
	return e.store.Draft(ctx, convID)
}

// Overview is one row of the conversation list.
type Overview struct {
	Conversation model.Conversation `json:"conversation"`
	Contact      model.Contact      `json:"contact"`
	Last         *model.Message     `json:"-"`
	LastText     string             `json:"lastText,omitempty"`
	LastAt       int64              `json:"lastAt,omitempty"`
	Unread       int                `json:"unread"`
	Typing       bool               `json:"typing"`
	Draft        string             `json:"draft,omitempty"`
}

// Conversations lists every conversation in stored order with its preview.
func (e *Engine) Conversations(ctx context.Context) ([]Overview, error) {
	snap, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Overview, 0, len(snap.Conversations))
	for _, conv := range snap.Conversations {
		ov := Overview{Conversation: conv, Contact: e.Contact(conv), Typing: e.Typing(conv.ID)}

		slice := thread.VisibleSlice(snap.Messages, conv.ID, 0, e.cfg.PageSize)
		if n := len(slice.Messages); n > 0 {
			last := slice.Messages[n-1]
			ov.Last = &last
			ov.LastAt = last.CreatedAt
			ov.LastText = e.cipher.Decrypt(conv.ID, last.Cipher).TextOr(cipher.Undecryptable)
		}
		marker, err := e.store.ReadMarker(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		ov.Unread = len(thread.Unread(slice.Messages, marker, e.cfg.Me))
		if ov.Draft, err = e.store.Draft(ctx, conv.ID); err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	return out, nil
}

// Events returns the most recent activity log entries, oldest first.
func (e *Engine) Events(ctx context.Context, convID string, limit int) ([]model.Event, error) {
	return e.store.ReadEvents(ctx, convID, limit)
}
