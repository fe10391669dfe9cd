package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteFileName = "index.sqlite"
	docKey         = "doc"
)

func (s Store) sqlitePath() string {
	return filepath.Join(filepath.Clean(s.Dir), sqliteFileName)
}

func (s Store) openSQLite(ctx context.Context) (*sql.DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", s.sqlitePath())
	if err != nil {
		return nil, err
	}
	// WAL lets the TUI read while a CLI process writes; busy_timeout absorbs short lock waits.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshot (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS slots (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			ts_unixms INTEGER NOT NULL,
			kind TEXT NOT NULL,
			conv_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			payload_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_conv ON events(conv_id, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func readDoc(ctx context.Context, db *sql.DB) ([]byte, error) {
	var v string
	if err := db.QueryRowContext(ctx, `SELECT v FROM snapshot WHERE k = ?`, docKey).Scan(&v); err != nil {
		return nil, err
	}
	return []byte(v), nil
}

func writeDoc(ctx context.Context, db *sql.DB, snap *Snapshot) error {
	b, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT OR REPLACE INTO snapshot(k, v, updated_at_unixms) VALUES(?, ?, ?)`,
		docKey, string(b), time.Now().UTC().UnixMilli())
	return err
}

// DBPath is the sqlite file holding the snapshot, slots and event log.
func (s Store) DBPath() string { return s.sqlitePath() }
