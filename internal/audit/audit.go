package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hmansour/progression/internal/signal"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS unlock_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_key  TEXT NOT NULL,
	node_id      TEXT NOT NULL,
	node_kind    TEXT NOT NULL,
	trigger_type TEXT NOT NULL,
	detail       TEXT,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_unlock_log_key ON unlock_log(profile_key, id);

CREATE TABLE IF NOT EXISTS mutation_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_key  TEXT NOT NULL,
	op_json      TEXT NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mutation_log_key ON mutation_log(profile_key, id);
`

// #endregion schema

// #region entry

// UnlockEntry is one row of the unlock provenance log.
type UnlockEntry struct {
	ID          int64
	ProfileKey  string
	NodeID      string
	NodeKind    string
	TriggerType string // "signal_change" | "choice:<option>"
	Detail      string
	CreatedAt   time.Time
}

// #endregion entry

// #region log

// Log appends unlock transitions and signal mutations to SQLite so runs can
// be inspected and exported as replay fixtures.
type Log struct {
	db         *sql.DB
	profileKey string
}

// NewLog creates the audit tables if needed.
func NewLog(db *sql.DB, profileKey string) (*Log, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("audit schema: %w", err)
	}
	return &Log{db: db, profileKey: profileKey}, nil
}

// #endregion log

// #region unlock

// AppendUnlock records one unlock transition. Failures are logged and
// swallowed: the audit trail is best-effort and must never block an unlock.
func (l *Log) AppendUnlock(e UnlockEntry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.Exec(
		`INSERT INTO unlock_log (profile_key, node_id, node_kind, trigger_type, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.profileKey, e.NodeID, e.NodeKind, e.TriggerType, nullIfEmpty(e.Detail),
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		log.Printf("[AUDIT] append unlock %s: %v", e.NodeID, err)
	}
}

// TailUnlocks returns the most recent unlock entries, oldest first.
func (l *Log) TailUnlocks(limit int) ([]UnlockEntry, error) {
	rows, err := l.db.Query(
		`SELECT id, profile_key, node_id, node_kind, trigger_type, detail, created_at
		 FROM (SELECT * FROM unlock_log WHERE profile_key = ? ORDER BY id DESC LIMIT ?)
		 ORDER BY id ASC`,
		l.profileKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("tail unlocks: %w", err)
	}
	defer rows.Close()

	var entries []UnlockEntry
	for rows.Next() {
		var e UnlockEntry
		var detail sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &e.ProfileKey, &e.NodeID, &e.NodeKind, &e.TriggerType, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordChoice implements story.Recorder: a resolved choice lands in the
// unlock log with its option id as the trigger.
func (l *Log) RecordChoice(storyID, optionID string) {
	l.AppendUnlock(UnlockEntry{
		NodeID:      storyID,
		NodeKind:    "story",
		TriggerType: "choice:" + optionID,
	})
}

// #endregion unlock

// #region mutation-journal

// Record implements signal.Journal: every store mutation is appended in apply
// order, giving fixture-export a complete mutation script.
func (l *Log) Record(op signal.MutationOp) {
	opJSON, err := json.Marshal(op)
	if err != nil {
		log.Printf("[AUDIT] encode mutation: %v", err)
		return
	}
	_, err = l.db.Exec(
		`INSERT INTO mutation_log (profile_key, op_json, created_at) VALUES (?, ?, ?)`,
		l.profileKey, string(opJSON), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		log.Printf("[AUDIT] append mutation: %v", err)
	}
}

// Mutations returns the full recorded mutation script, oldest first.
func (l *Log) Mutations() ([]signal.MutationOp, error) {
	rows, err := l.db.Query(
		`SELECT op_json FROM mutation_log WHERE profile_key = ? ORDER BY id ASC`,
		l.profileKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list mutations: %w", err)
	}
	defer rows.Close()

	var ops []signal.MutationOp
	for rows.Next() {
		var opJSON string
		if err := rows.Scan(&opJSON); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var op signal.MutationOp
		if err := json.Unmarshal([]byte(opJSON), &op); err != nil {
			return nil, fmt.Errorf("decode mutation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// #endregion mutation-journal

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
