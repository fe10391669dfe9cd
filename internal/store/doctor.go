package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"hush-cli/internal/model"
)

var ErrDoctorIssuesFound = errors.New("doctor found issues")

type DoctorIssueLevel string

const (
	DoctorIssueLevelError DoctorIssueLevel = "error"
	DoctorIssueLevelWarn  DoctorIssueLevel = "warn"
)

type DoctorIssue struct {
	Level     DoctorIssueLevel `json:"level"`
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	MessageID string           `json:"messageId,omitempty"`
	ConvID    string           `json:"convId,omitempty"`
}

type DoctorReport struct {
	Stats  CompactionStats `json:"stats"`
	Issues []DoctorIssue   `json:"issues"`
	Fixed  bool            `json:"fixed"`
}

func (r DoctorReport) HasErrors() bool {
	for _, it := range r.Issues {
		if it.Level == DoctorIssueLevelError {
			return true
		}
	}
	return false
}

// Doctor inspects the stored document as it is on disk, before any normalization.
// With fix, it rewrites the document through Load/Save and drops expired undo records.
func (s Store) Doctor(ctx context.Context, nowMs int64, fix bool) (DoctorReport, error) {
	raw, err := s.Export(ctx)
	if err != nil {
		return DoctorReport{}, err
	}
	snap := DecodeSnapshot(raw)
	rep := DoctorReport{Stats: InspectCompaction(snap.Messages)}
	add := func(level DoctorIssueLevel, code, msg string) {
		rep.Issues = append(rep.Issues, DoctorIssue{Level: level, Code: code, Message: msg})
	}

	var w wireSnapshot
	if err := json.Unmarshal(raw, &w); err != nil {
		add(DoctorIssueLevelError, "doc_unreadable", "stored document is not a JSON object")
	} else {
		var msgs []json.RawMessage
		if err := json.Unmarshal(w.Messages, &msgs); err != nil {
			add(DoctorIssueLevelError, "messages_unreadable", "messages is not a sequence")
		} else if dropped := len(msgs) - len(snap.Messages); dropped > 0 {
			add(DoctorIssueLevelWarn, "messages_undecodable", fmt.Sprintf("%d undecodable message entries will be dropped", dropped))
		}
	}
	if n := rep.Stats.DuplicateIDs; n > 0 {
		add(DoctorIssueLevelWarn, "duplicate_ids", fmt.Sprintf("%d messages share an id with another entry", n))
	}
	if n := rep.Stats.DuplicateFingerprints; n > 0 {
		add(DoctorIssueLevelWarn, "duplicate_fingerprints", fmt.Sprintf("%d messages are replays of another write", n))
	}
	if rep.Stats.Unsorted {
		add(DoctorIssueLevelWarn, "unsorted", "messages are not ordered by createdAt")
	}

	for _, c := range s.Contacts {
		if _, ok := snap.FindConversation(model.ConversationID(c.ID)); !ok {
			rep.Issues = append(rep.Issues, DoctorIssue{
				Level:   DoctorIssueLevelWarn,
				Code:    "conversation_missing",
				Message: "contact has no conversation: " + c.ID,
				ConvID:  model.ConversationID(c.ID),
			})
		}
	}
	for _, m := range snap.Messages {
		if _, ok := snap.FindConversation(m.ConvID); !ok {
			rep.Issues = append(rep.Issues, DoctorIssue{
				Level:     DoctorIssueLevelError,
				Code:      "orphan_message",
				Message:   "message references an unknown conversation",
				MessageID: m.ID,
				ConvID:    m.ConvID,
			})
		}
	}

	undos, err := s.undoRecords(ctx)
	if err != nil {
		return DoctorReport{}, err
	}
	var expired []string
	for _, rec := range undos {
		if rec.ExpiresAt <= nowMs {
			expired = append(expired, rec.Message.ID)
			rep.Issues = append(rep.Issues, DoctorIssue{
				Level:     DoctorIssueLevelWarn,
				Code:      "undo_expired",
				Message:   "undo record outlived its window",
				MessageID: rec.Message.ID,
			})
		}
	}

	if rep.Issues == nil {
		rep.Issues = []DoctorIssue{}
	}
	if !fix || len(rep.Issues) == 0 {
		return rep, nil
	}

	fixed, err := s.Load(ctx)
	if err != nil {
		return rep, err
	}
	if err := s.Save(ctx, fixed); err != nil {
		return rep, err
	}
	for _, id := range expired {
		if err := s.DropUndo(ctx, id); err != nil {
			return rep, err
		}
	}
	rep.Fixed = true
	return rep, nil
}
