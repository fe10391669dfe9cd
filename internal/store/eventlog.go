package store

import (
	"context"
	"encoding/json"

	"hush-cli/internal/model"
)

// AppendEvents records activity in the append-only event log. The log is for
// inspection (`hush events list`); message order always comes from the snapshot.
func (s Store) AppendEvents(ctx context.Context, evs ...model.Event) error {
	if len(evs) == 0 {
		return nil
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, ev := range evs {
		raw, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO events(ts_unixms, kind, conv_id, message_id, payload_json) VALUES(?, ?, ?, ?, ?)`,
			ev.At, string(ev.Kind), ev.ConvID, ev.MessageID, string(raw)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReadEvents returns the last limit events, oldest-first. limit <= 0 returns all.
func (s Store) ReadEvents(ctx context.Context, convID string, limit int) ([]model.Event, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	q := `SELECT seq, payload_json FROM events`
	var args []any
	if convID != "" {
		q += ` WHERE conv_id = ?`
		args = append(args, convID)
	}
	q += ` ORDER BY seq DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var seq int64
		var raw string
		if err := rows.Scan(&seq, &raw); err != nil {
			return nil, err
		}
		var ev model.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		ev.Seq = seq
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
