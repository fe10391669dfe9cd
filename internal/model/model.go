package model

import "strings"

type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusSeen      Status = "seen"
)

// Rank orders statuses along the only legal direction of travel.
// Unknown values rank below Sent so any real transition moves them forward.
func (s Status) Rank() int {
	switch Status(strings.ToLower(string(s))) {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusSeen:
		return 3
	default:
		return 0
	}
}

// Before reports whether s is strictly earlier than other.
func (s Status) Before(other Status) bool { return s.Rank() < other.Rank() }

type Conversation struct {
	ID     string `json:"id"`
	PeerID string `json:"peerId"`
}

// ConversationID returns the conversation id used for a contact.
func ConversationID(peerID string) string {
	return "conv-" + strings.TrimSpace(peerID)
}

// CipherPayload is opaque to everything except the cipher package.
type CipherPayload struct {
	IV   []byte `json:"iv"`
	Data []byte `json:"data"`
}

type Message struct {
	ID        string        `json:"id"`
	ConvID    string        `json:"convId"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Cipher    CipherPayload `json:"cipher"`
	CreatedAt int64         `json:"createdAt"` // unix ms
	EditedAt  *int64        `json:"editedAt,omitempty"`
	Deleted   bool          `json:"deleted,omitempty"`
	Status    Status        `json:"status"`
	SeenAt    *int64        `json:"seenAt,omitempty"`
}

// Clone returns a deep copy so undo snapshots never alias live byte slices.
func (m Message) Clone() Message {
	out := m
	out.Cipher = CipherPayload{
		IV:   append([]byte(nil), m.Cipher.IV...),
		Data: append([]byte(nil), m.Cipher.Data...),
	}
	if m.EditedAt != nil {
		v := *m.EditedAt
		out.EditedAt = &v
	}
	if m.SeenAt != nil {
		v := *m.SeenAt
		out.SeenAt = &v
	}
	return out
}

type Contact struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

type EventKind string

const (
	EventMessageAppended EventKind = "message.appended"
	EventStatusChanged   EventKind = "message.status"
	EventMessageEdited   EventKind = "message.edited"
	EventMessageDeleted  EventKind = "message.deleted"
	EventMessageRestored EventKind = "message.restored"
	EventTypingChanged   EventKind = "typing.changed"
	EventPreviewChanged  EventKind = "preview.changed"
)

// Event is what the core emits to its UI consumers. It is also the row shape of the
// local activity log; it is never used to order messages.
type Event struct {
	Seq       int64     `json:"seq,omitempty"`
	Kind      EventKind `json:"kind"`
	ConvID    string    `json:"convId"`
	MessageID string    `json:"messageId,omitempty"`
	Status    Status    `json:"status,omitempty"`
	Typing    bool      `json:"typing,omitempty"`
	At        int64     `json:"at"`
}
