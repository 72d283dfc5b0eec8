package persist

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS profile_versions (
	version_id   TEXT PRIMARY KEY,
	profile_key  TEXT NOT NULL,
	parent_id    TEXT,
	body         TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES profile_versions(version_id)
);
CREATE INDEX IF NOT EXISTS idx_versions_key ON profile_versions(profile_key, created_at);

CREATE TABLE IF NOT EXISTS active_profile (
	profile_key  TEXT PRIMARY KEY,
	version_id   TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES profile_versions(version_id)
);
`

// #endregion schema

// #region version-record

// VersionRecord describes one persisted profile snapshot.
type VersionRecord struct {
	VersionID  string
	ProfileKey string
	ParentID   string
	Body       string
	CreatedAt  time.Time
}

// #endregion version-record

// #region sqlite-adapter

// SQLiteAdapter stores profile documents in SQLite, keeping prior snapshots
// as a version chain with an active pointer per profile key.
type SQLiteAdapter struct {
	db *sql.DB
}

// NewSQLiteAdapter opens the database and runs migrations.
func NewSQLiteAdapter(dbPath string) (*SQLiteAdapter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteAdapter{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteAdapter) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. audit).
func (s *SQLiteAdapter) DB() *sql.DB {
	return s.db
}

// #endregion sqlite-adapter

// #region load

// Load reads the active profile document for key, or (nil, nil) when the key
// has no active version yet.
func (s *SQLiteAdapter) Load(key string) ([]byte, error) {
	var body string
	err := s.db.QueryRow(
		`SELECT pv.body
		 FROM active_profile ap
		 JOIN profile_versions pv ON pv.version_id = ap.version_id
		 WHERE ap.profile_key = ?`, key,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Op: "load", Key: key, Err: err}
	}
	return []byte(body), nil
}

// #endregion load

// #region save

// Save inserts a new profile version and moves the active pointer atomically.
func (s *SQLiteAdapter) Save(key string, data []byte) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return &Error{Op: "save", Key: key, Err: err}
	}
	defer tx.Rollback()

	var parentPtr interface{}
	var parentID string
	err = tx.QueryRow(
		`SELECT version_id FROM active_profile WHERE profile_key = ?`, key,
	).Scan(&parentID)
	if err == nil {
		parentPtr = parentID
	} else if err != sql.ErrNoRows {
		return &Error{Op: "save", Key: key, Err: err}
	}

	_, err = tx.Exec(
		`INSERT INTO profile_versions (version_id, profile_key, parent_id, body, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, key, parentPtr, string(data), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return &Error{Op: "save", Key: key, Err: err}
	}

	_, err = tx.Exec(
		`INSERT INTO active_profile (profile_key, version_id) VALUES (?, ?)
		 ON CONFLICT(profile_key) DO UPDATE SET version_id = excluded.version_id`,
		key, id,
	)
	if err != nil {
		return &Error{Op: "save", Key: key, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &Error{Op: "save", Key: key, Err: err}
	}
	return nil
}

// #endregion save

// #region list-versions

// ListVersions returns the most recent snapshots for a profile key,
// newest first.
func (s *SQLiteAdapter) ListVersions(key string, limit int) ([]VersionRecord, error) {
	rows, err := s.db.Query(
		`SELECT version_id, profile_key, parent_id, body, created_at
		 FROM profile_versions WHERE profile_key = ?
		 ORDER BY created_at DESC LIMIT ?`, key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []VersionRecord
	for rows.Next() {
		var rec VersionRecord
		var parentID sql.NullString
		var createdStr string
		if err := rows.Scan(&rec.VersionID, &rec.ProfileKey, &parentID, &rec.Body, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if parentID.Valid {
			rec.ParentID = parentID.String
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list-versions
