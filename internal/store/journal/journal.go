// Package journal is an append-only SQLite record of completed analyses
// and posted replies. Pipeline state (cooldowns, processed triggers) is
// never loaded back from it.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite journal.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS analyses (
	  id TEXT PRIMARY KEY,
	  ts INTEGER NOT NULL,
	  trigger_id TEXT NOT NULL,
	  reply_id TEXT,
	  user_id TEXT NOT NULL,
	  username TEXT NOT NULL,
	  score INTEGER NOT NULL,
	  tier TEXT NOT NULL,
	  vouched INTEGER NOT NULL,
	  payload TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_ts ON analyses(ts);
	CREATE INDEX IF NOT EXISTS idx_analyses_user ON analyses(user_id);
	CREATE TABLE IF NOT EXISTS actions (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  ts INTEGER NOT NULL,
	  type TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_actions_ts ON actions(ts);
	`)
	return err
}

// Record is one completed analysis-and-reply.
type Record struct {
	ID        string
	TS        time.Time
	TriggerID string
	ReplyID   string
	UserID    string
	Username  string
	Score     int
	Tier      string
	Vouched   bool
	// Payload is the full analysis result as JSON.
	Payload string
}

// PutAnalysis stores r. payload is marshalled to JSON when r.Payload is empty.
func (d *DB) PutAnalysis(ctx context.Context, r Record, payload any) error {
	if r.Payload == "" && payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		r.Payload = string(b)
	}
	vouched := 0
	if r.Vouched {
		vouched = 1
	}
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO analyses(id, ts, trigger_id, reply_id, user_id, username, score, tier, vouched, payload) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.TS.Unix(), r.TriggerID, r.ReplyID, r.UserID, r.Username, r.Score, r.Tier, vouched, r.Payload)
	return err
}

// RecentAnalyses returns up to limit records, newest first.
func (d *DB) RecentAnalyses(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id, ts, trigger_id, COALESCE(reply_id, ''), user_id, username, score, tier, vouched, COALESCE(payload, '')
		 FROM analyses ORDER BY ts DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		var ts int64
		var vouched int
		if err := rows.Scan(&r.ID, &ts, &r.TriggerID, &r.ReplyID, &r.UserID, &r.Username, &r.Score, &r.Tier, &vouched, &r.Payload); err != nil {
			return nil, err
		}
		r.TS = time.Unix(ts, 0).UTC()
		r.Vouched = vouched != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// PutAction logs a timestamped action such as a posted reply.
func (d *DB) PutAction(ctx context.Context, ts time.Time, typ string) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO actions(ts, type) VALUES(?,?)`, ts.Unix(), typ)
	return err
}

// CountActionsWithin counts actions of typ in [start, end).
func (d *DB) CountActionsWithin(ctx context.Context, start, end time.Time, typ string) (int, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions WHERE ts>=? AND ts<? AND type=?`, start.Unix(), end.Unix(), typ)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
