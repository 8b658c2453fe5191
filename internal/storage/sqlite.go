package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/gregoiredehame/checker/internal/ir"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("not found")

// DB is the concrete storage backed by SQLite.
type DB struct {
	conn *sql.DB
}

// OpenSQLite opens (and creates if missing) a SQLite DB at path.
func OpenSQLite(path string) (*DB, error) {
	// Pragmas via DSN keep it portable with the modernc driver.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	c, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{conn: c}, nil
}

func (db *DB) Close() error { return db.conn.Close() }

// CreateSchema ensures tables exist.
func (db *DB) CreateSchema() error {
	_, err := db.conn.Exec(`
CREATE TABLE IF NOT EXISTS sessions (
  id            TEXT PRIMARY KEY,
  started_at    TEXT,          -- RFC3339Nano
  source        TEXT,
  source_digest TEXT,
  mode          TEXT,
  action        TEXT,
  version       TEXT,
  session_json  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
  session_id TEXT NOT NULL,
  rule       TEXT NOT NULL,
  category   TEXT,
  status     TEXT NOT NULL,
  findings   INTEGER NOT NULL,
  waived     INTEGER NOT NULL DEFAULT 0,
  failures   INTEGER NOT NULL DEFAULT 0,
  elapsed_ms REAL,
  PRIMARY KEY (session_id, category, rule),
  FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS findings (
  session_id TEXT NOT NULL,
  category   TEXT NOT NULL,
  rule       TEXT NOT NULL,
  entity     TEXT NOT NULL,
  PRIMARY KEY (session_id, category, rule, entity),
  FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_findings_session ON findings(session_id);
CREATE INDEX IF NOT EXISTS idx_findings_rule ON findings(rule);

CREATE TABLE IF NOT EXISTS audit (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts TEXT NOT NULL,
  username TEXT,
  action TEXT NOT NULL,
  resource TEXT,
  meta_json TEXT
);

CREATE TABLE IF NOT EXISTS waivers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  rule        TEXT NOT NULL,     -- name, Category/name or *
  pattern_sub TEXT,              -- optional substring of the entity; NULL = any
  reason      TEXT NOT NULL,
  expires_at  TEXT NOT NULL,     -- RFC3339Nano
  created_by  TEXT NOT NULL,
  created_at  TEXT NOT NULL,
  revoked_at  TEXT               -- NULL = active
);
`)
	return err
}

// SaveSession upserts a session JSON and (re)writes its result and finding rows.
func (db *DB) SaveSession(s *ir.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ts := s.StartedAt.UTC().Format(time.RFC3339Nano)

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO sessions (id, started_at, source, source_digest, mode, action, version, session_json)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET started_at=excluded.started_at, source=excluded.source,
           source_digest=excluded.source_digest, mode=excluded.mode, action=excluded.action,
           version=excluded.version, session_json=excluded.session_json`,
		s.ID, ts, s.Source, s.SourceDigest, s.Mode.String(), string(s.Action), s.Version, string(b),
	); err != nil {
		return err
	}

	for _, q := range []string{`DELETE FROM results WHERE session_id = ?`, `DELETE FROM findings WHERE session_id = ?`} {
		if _, err := tx.Exec(q, s.ID); err != nil {
			return err
		}
	}
	if len(s.Results) > 0 {
		res, err := tx.Prepare(`
			INSERT INTO results (session_id, rule, category, status, findings, waived, failures, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, category, rule) DO UPDATE SET status=excluded.status,
			  findings=excluded.findings, waived=excluded.waived, failures=excluded.failures,
			  elapsed_ms=excluded.elapsed_ms`)
		if err != nil {
			return err
		}
		defer res.Close()
		fnd, err := tx.Prepare(`INSERT OR IGNORE INTO findings (session_id, category, rule, entity) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer fnd.Close()
		for _, r := range s.Results {
			if _, err := res.Exec(
				s.ID,
				r.Rule,
				r.Category,
				r.Status().String(),
				len(r.Findings),
				r.Waived,
				len(r.Failures),
				float64(r.Elapsed.Microseconds())/1000,
			); err != nil {
				return fmt.Errorf("result %s: %w", r.Rule, err)
			}
			for _, e := range r.Findings {
				if _, err := fnd.Exec(s.ID, r.Category, r.Rule, string(e)); err != nil {
					return fmt.Errorf("finding %s: %w", e, err)
				}
			}
		}
	}

	return tx.Commit()
}

// LoadSession returns the full session (from stored JSON).
func (db *DB) LoadSession(id string) (ir.Session, error) {
	var s string
	row := db.conn.QueryRow(`SELECT session_json FROM sessions WHERE id = ?`, id)
	if err := row.Scan(&s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return ir.Session{}, err
	}
	var sess ir.Session
	if err := json.Unmarshal([]byte(s), &sess); err != nil {
		return ir.Session{}, err
	}
	return sess, nil
}
