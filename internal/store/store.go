package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"hush-cli/internal/model"
)

// Snapshot is the single logical document holding every conversation and message.
type Snapshot struct {
	Conversations []model.Conversation `json:"conversations"`
	Messages      []model.Message      `json:"messages"`
}

// FindMessage returns a pointer into s.Messages.
func (s *Snapshot) FindMessage(id string) (*model.Message, bool) {
	id = strings.TrimSpace(id)
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return &s.Messages[i], true
		}
	}
	return nil, false
}

func (s *Snapshot) FindConversation(id string) (model.Conversation, bool) {
	for _, c := range s.Conversations {
		if c.ID == id {
			return c, true
		}
	}
	return model.Conversation{}, false
}

// ConversationMessages returns the messages of one conversation in stored order,
// tombstones included.
func (s *Snapshot) ConversationMessages(convID string) []model.Message {
	var out []model.Message
	for _, m := range s.Messages {
		if m.ConvID == convID {
			out = append(out, m)
		}
	}
	return out
}

// Store is a directory holding the sqlite-backed snapshot, keyed slots and event log.
type Store struct {
	Dir string
	// Contacts seeds one conversation per contact.
	Contacts []model.Contact
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o755)
}

// Load reads the snapshot, initializing it on first use. A malformed document never
// fails the load: unreadable parts are normalized to empty.
func (s Store) Load(ctx context.Context) (*Snapshot, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	raw, err := readDoc(ctx, db)
	if errors.Is(err, sql.ErrNoRows) {
		snap := &Snapshot{Messages: []model.Message{}}
		s.ensureConversations(snap)
		if err := writeDoc(ctx, db, snap); err != nil {
			return nil, err
		}
		return snap, nil
	}
	if err != nil {
		return nil, err
	}

	snap := DecodeSnapshot(raw)
	snap.Messages = Compact(snap.Messages)
	if s.ensureConversations(snap) {
		if err := writeDoc(ctx, db, snap); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// Save compacts the messages and writes the whole snapshot back.
func (s Store) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	snap.Messages = Compact(snap.Messages)
	return writeDoc(ctx, db, snap)
}

// Export returns the stored document bytes as-is (no normalization).
func (s Store) Export(ctx context.Context) (json.RawMessage, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	raw, err := readDoc(ctx, db)
	if errors.Is(err, sql.ErrNoRows) {
		return json.RawMessage(`{"conversations":[],"messages":[]}`), nil
	}
	return raw, err
}

// Import normalizes raw the way Load does and saves it, replacing the current document.
func (s Store) Import(ctx context.Context, raw []byte) (*Snapshot, error) {
	snap := DecodeSnapshot(raw)
	s.ensureConversations(snap)
	if err := s.Save(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Inspect reports what compaction would do to the stored document.
func (s Store) Inspect(ctx context.Context) (CompactionStats, error) {
	raw, err := s.Export(ctx)
	if err != nil {
		return CompactionStats{}, err
	}
	return InspectCompaction(DecodeSnapshot(raw).Messages), nil
}

func (s Store) ensureConversations(snap *Snapshot) bool {
	changed := false
	if snap.Conversations == nil {
		snap.Conversations = []model.Conversation{}
	}
	for _, c := range s.Contacts {
		id := model.ConversationID(c.ID)
		if _, ok := snap.FindConversation(id); ok {
			continue
		}
		snap.Conversations = append(snap.Conversations, model.Conversation{ID: id, PeerID: c.ID})
		changed = true
	}
	return changed
}

type wireSnapshot struct {
	Conversations json.RawMessage `json:"conversations"`
	Messages      json.RawMessage `json:"messages"`
}

// DecodeSnapshot is lenient: a document that is not an object, a messages field that is
// not a sequence, or individual undecodable entries all degrade to "absent" rather than
// failing.
func DecodeSnapshot(raw []byte) *Snapshot {
	snap := &Snapshot{Conversations: []model.Conversation{}, Messages: []model.Message{}}

	var w wireSnapshot
	if err := json.Unmarshal(raw, &w); err != nil {
		return snap
	}

	var convs []json.RawMessage
	if err := json.Unmarshal(w.Conversations, &convs); err == nil {
		for _, rc := range convs {
			var c model.Conversation
			if err := json.Unmarshal(rc, &c); err != nil || strings.TrimSpace(c.ID) == "" {
				continue
			}
			snap.Conversations = append(snap.Conversations, c)
		}
	}

	var msgs []json.RawMessage
	if err := json.Unmarshal(w.Messages, &msgs); err == nil {
		for _, rm := range msgs {
			var m model.Message
			if err := json.Unmarshal(rm, &m); err != nil || strings.TrimSpace(m.ID) == "" {
				continue
			}
			snap.Messages = append(snap.Messages, m)
		}
	}
	return snap
}

func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	out := Snapshot{Conversations: snap.Conversations, Messages: snap.Messages}
	if out.Conversations == nil {
		out.Conversations = []model.Conversation{}
	}
	if out.Messages == nil {
		out.Messages = []model.Message{}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}
