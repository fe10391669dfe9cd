// Package perm holds the authorship rules for mutating messages.
package perm

import (
	"strings"

	"hush-cli/internal/model"
)

// IsMine reports whether the local user authored m.
func IsMine(me string, m *model.Message) bool {
	if m == nil {
		return false
	}
	me = strings.TrimSpace(me)
	return me != "" && m.From == me
}

// CanEdit: only the author may edit, and only while the message is not tombstoned.
func CanEdit(me string, m *model.Message) bool {
	return IsMine(me, m) && !m.Deleted
}

// CanMarkSeen reports whether a message counts toward the local user's read state.
// Own messages are never "seen" by their author.
func CanMarkSeen(me string, m *model.Message) bool {
	if m == nil || m.Deleted {
		return false
	}
	return !IsMine(me, m)
}
