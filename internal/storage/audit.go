package storage

import (
	"database/sql"
	"encoding/json"
	"time"
)

// AuditEntry records who changed a scene or a waiver.
type AuditEntry struct {
	ID       int64          `json:"id"`
	At       time.Time      `json:"ts"`
	Username string         `json:"username,omitempty"`
	Action   string         `json:"action"`
	Resource string         `json:"resource,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

func (db *DB) LogAudit(username, action, resource string, meta map[string]any) error {
	b, _ := json.Marshal(meta)
	_, err := db.conn.Exec(`INSERT INTO audit(ts, username, action, resource, meta_json) VALUES(?,?,?,?,?)`,
		time.Now().UTC().Format(time.RFC3339Nano), username, action, resource, string(b))
	return err
}

// ListAudit returns the newest entries first.
func (db *DB) ListAudit(limit int) ([]AuditEntry, error) {
	rows, err := db.conn.Query(`
SELECT id, ts, COALESCE(username,''), action, COALESCE(resource,''), COALESCE(meta_json,'')
FROM audit ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var a AuditEntry
		var ts, meta string
		if err := rows.Scan(&a.ID, &ts, &a.Username, &a.Action, &a.Resource, &meta); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			a.At = t
		}
		if meta != "" && meta != "null" {
			_ = json.Unmarshal([]byte(meta), &a.Meta)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func execOne(db *sql.DB, q string, args ...any) error {
	res, err := db.Exec(q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
