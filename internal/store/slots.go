package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"hush-cli/internal/model"
)

// Slots are small keyed entries that live beside the snapshot: drafts, read markers
// and pending undo records. They are never compacted.

func draftKey(convID string) string   { return "draft:" + strings.TrimSpace(convID) }
func readKey(convID string) string    { return "read:" + strings.TrimSpace(convID) }
func undoKey(messageID string) string { return "undo:" + strings.TrimSpace(messageID) }

func (s Store) getSlot(ctx context.Context, k string) (string, bool, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return "", false, err
	}
	defer db.Close()
	var v string
	err = db.QueryRowContext(ctx, `SELECT v FROM slots WHERE k = ?`, k).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s Store) setSlot(ctx context.Context, k, v string) error {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, `INSERT OR REPLACE INTO slots(k, v, updated_at_unixms) VALUES(?, ?, ?)`,
		k, v, time.Now().UTC().UnixMilli())
	return err
}

func (s Store) deleteSlot(ctx context.Context, k string) error {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, `DELETE FROM slots WHERE k = ?`, k)
	return err
}

func (s Store) Draft(ctx context.Context, convID string) (string, error) {
	v, _, err := s.getSlot(ctx, draftKey(convID))
	return v, err
}

// SetDraft stores the draft; an empty draft removes the slot.
func (s Store) SetDraft(ctx context.Context, convID, text string) error {
	if text == "" {
		return s.deleteSlot(ctx, draftKey(convID))
	}
	return s.setSlot(ctx, draftKey(convID), text)
}

// ReadMarker returns the last-read timestamp (unix ms), 0 if never read.
func (s Store) ReadMarker(ctx context.Context, convID string) (int64, error) {
	v, ok, err := s.getSlot(ctx, readKey(convID))
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		// Best-effort: a corrupt marker reads as "never read".
		return 0, nil
	}
	return n, nil
}

func (s Store) SetReadMarker(ctx context.Context, convID string, atMs int64) error {
	return s.setSlot(ctx, readKey(convID), strconv.FormatInt(atMs, 10))
}

// UndoRecord is a pre-tombstone copy of a message plus the end of its undo window.
type UndoRecord struct {
	Message   model.Message `json:"message"`
	ExpiresAt int64         `json:"expiresAt"`
}

func (s Store) PutUndo(ctx context.Context, rec UndoRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.setSlot(ctx, undoKey(rec.Message.ID), string(b))
}

// Undo returns the pending undo record for a message, if any.
func (s Store) Undo(ctx context.Context, messageID string) (UndoRecord, bool, error) {
	v, ok, err := s.getSlot(ctx, undoKey(messageID))
	if err != nil || !ok {
		return UndoRecord{}, false, err
	}
	var rec UndoRecord
	if err := json.Unmarshal([]byte(v), &rec); err != nil {
		return UndoRecord{}, false, nil
	}
	return rec, true, nil
}

func (s Store) DropUndo(ctx context.Context, messageID string) error {
	return s.deleteSlot(ctx, undoKey(messageID))
}

func (s Store) undoRecords(ctx context.Context) ([]UndoRecord, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, `SELECT v FROM slots WHERE k LIKE 'undo:%' ORDER BY k`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UndoRecord
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		var rec UndoRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
