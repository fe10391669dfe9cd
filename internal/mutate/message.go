package mutate

import (
	"strings"

	"hush-cli/internal/cipher"
	"hush-cli/internal/model"
	"hush-cli/internal/perm"
	"hush-cli/internal/store"
)

type NewMessage struct {
	ID        string
	ConvID    string
	From      string
	To        string
	Text      string
	Status    model.Status
	CreatedAt int64
}

// Append encrypts text under the conversation key and appends the message.
func Append(snap *store.Snapshot, cs *cipher.Service, in NewMessage) (model.Message, error) {
	payload, err := cs.Encrypt(in.ConvID, in.Text)
	if err != nil {
		return model.Message{}, err
	}
	m := model.Message{
		ID:        in.ID,
		ConvID:    in.ConvID,
		From:      in.From,
		To:        in.To,
		Cipher:    payload,
		CreatedAt: in.CreatedAt,
		Status:    in.Status,
	}
	snap.Messages = append(snap.Messages, m)
	return m, nil
}

type EditResult struct {
	Message *model.Message
	Changed bool
}

// Edit re-encrypts an own message with new text and stamps editedAt. Empty text and
// text identical to the current plaintext are no-ops. Status is left alone.
func Edit(snap *store.Snapshot, cs *cipher.Service, me, id, newText string, nowMs int64) (EditResult, error) {
	id = strings.TrimSpace(id)
	if snap == nil || id == "" {
		return EditResult{}, nil
	}
	m, ok := snap.FindMessage(id)
	if !ok {
		return EditResult{}, nil
	}
	if !perm.CanEdit(me, m) {
		return EditResult{Message: m}, ErrNotEditable
	}
	if strings.TrimSpace(newText) == "" {
		return EditResult{Message: m}, nil
	}
	if cur := cs.Decrypt(m.ConvID, m.Cipher); cur.OK() && cur.Text() == newText {
		return EditResult{Message: m}, nil
	}
	payload, err := cs.Encrypt(m.ConvID, newText)
	if err != nil {
		return EditResult{}, err
	}
	m.Cipher = payload
	at := nowMs
	m.EditedAt = &at
	return EditResult{Message: m, Changed: true}, nil
}

type DeleteResult struct {
	// Prior is a deep copy of the message as it was before the tombstone.
	Prior   model.Message
	Changed bool
}

// Tombstone marks a message deleted. Missing ids and existing tombstones are no-ops.
func Tombstone(snap *store.Snapshot, id string) DeleteResult {
	id = strings.TrimSpace(id)
	if snap == nil || id == "" {
		return DeleteResult{}
	}
	m, ok := snap.FindMessage(id)
	if !ok || m.Deleted {
		return DeleteResult{}
	}
	prior := m.Clone()
	m.Deleted = true
	return DeleteResult{Prior: prior, Changed: true}
}

// Restore replaces a tombstoned message with its prior object. It does nothing if the
// message is gone or no longer tombstoned. Status never moves backward: a receipt that
// landed while the message was tombstoned is kept along with its seenAt.
func Restore(snap *store.Snapshot, prior model.Message) bool {
	if snap == nil {
		return false
	}
	m, ok := snap.FindMessage(prior.ID)
	if !ok || !m.Deleted {
		return false
	}
	restored := prior.Clone()
	if prior.Status.Before(m.Status) {
		restored.Status = m.Status
		restored.SeenAt = nil
		if m.SeenAt != nil {
			at := *m.SeenAt
			restored.SeenAt = &at
		}
	}
	*m = restored
	return true
}
