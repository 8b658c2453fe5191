package storage

import "time"

// SessionRow is a lightweight listing row for `checker report`.
type SessionRow struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Source    string    `json:"source,omitempty"`
	Mode      string    `json:"mode"`
	Action    string    `json:"action"`
	Findings  int       `json:"findings"`
}

// FindingRow is one stored finding.
type FindingRow struct {
	Category string `json:"category"`
	Rule     string `json:"rule"`
	Entity   string `json:"entity"`
}
