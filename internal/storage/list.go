package storage

import (
	"database/sql"
	"errors"
	"time"
)

// ListSessions returns a lightweight list of sessions with counts, newest first.
func (db *DB) ListSessions(limit, offset int) ([]SessionRow, error) {
	const q = `
		SELECT s.id, s.started_at, COALESCE(s.source,''), s.mode, s.action,
		       (SELECT COUNT(1) FROM findings f WHERE f.session_id = s.id) AS findings
		  FROM sessions s
		 ORDER BY s.started_at DESC, s.id DESC
		 LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var sr SessionRow
		var startedAtStr string
		if err := rows.Scan(&sr.ID, &startedAtStr, &sr.Source, &sr.Mode, &sr.Action, &sr.Findings); err != nil {
			return nil, err
		}
		// Parse RFC3339Nano first, fallback to RFC3339
		if t, err := time.Parse(time.RFC3339Nano, startedAtStr); err == nil {
			sr.StartedAt = t
		} else if t2, err2 := time.Parse(time.RFC3339, startedAtStr); err2 == nil {
			sr.StartedAt = t2
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

// ListFindings returns the findings of a session, optionally for one rule.
func (db *DB) ListFindings(sessionID, rule string) ([]FindingRow, error) {
	const q = `
		SELECT category, rule, entity
		  FROM findings
		 WHERE session_id = ?
		   AND (? = '' OR rule = ?)
		 ORDER BY category, rule, entity`
	rows, err := db.conn.Query(q, sessionID, rule, rule)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FindingRow
	for rows.Next() {
		var f FindingRow
		if err := rows.Scan(&f.Category, &f.Rule, &f.Entity); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LatestSession returns the id of the most recent session, if any.
func (db *DB) LatestSession() (string, bool, error) {
	var id string
	err := db.conn.QueryRow(`SELECT id FROM sessions ORDER BY started_at DESC, id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	return id, err == nil, err
}

func (db *DB) HasSession(id string) (bool, error) {
	const q = `SELECT 1 FROM sessions WHERE id = ? LIMIT 1`
	var one int
	err := db.conn.QueryRow(q, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}
