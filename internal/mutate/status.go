// Package mutate applies message mutations to an in-memory snapshot. Callers are
// responsible for saving the snapshot and emitting events for changed messages.
package mutate

import (
	"strings"

	"hush-cli/internal/model"
	"hush-cli/internal/perm"
	"hush-cli/internal/store"
)

type StatusResult struct {
	Message *model.Message
	Changed bool
}

// AdvanceStatus moves a message forward to target. Missing ids and messages already at
// or past target are no-ops. Reaching Seen stamps seenAt.
func AdvanceStatus(snap *store.Snapshot, id string, target model.Status, nowMs int64) StatusResult {
	id = strings.TrimSpace(id)
	if snap == nil || id == "" {
		return StatusResult{}
	}
	m, ok := snap.FindMessage(id)
	if !ok {
		return StatusResult{}
	}
	if !m.Status.Before(target) {
		return StatusResult{Message: m}
	}
	m.Status = target
	if target == model.StatusSeen {
		at := nowMs
		m.SeenAt = &at
	}
	return StatusResult{Message: m, Changed: true}
}

// MarkConversationSeen marks every markable, not-yet-seen message of the conversation
// as Seen with one shared timestamp. It returns the ids that changed, in stored order.
func MarkConversationSeen(snap *store.Snapshot, me, convID string, nowMs int64) []string {
	if snap == nil {
		return nil
	}
	var changed []string
	for i := range snap.Messages {
		m := &snap.Messages[i]
		if m.ConvID != convID || !perm.CanMarkSeen(me, m) || m.Status == model.StatusSeen {
			continue
		}
		m.Status = model.StatusSeen
		at := nowMs
		m.SeenAt = &at
		changed = append(changed, m.ID)
	}
	return changed
}
