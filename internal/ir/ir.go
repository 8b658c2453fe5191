package ir

import (
	"fmt"
	"strings"
	"time"
)

const Version = "1.0"

// Entity is an opaque handle into the host scene graph.
type Entity string

// SelectionMode governs which part of the scene a run considers.
type SelectionMode int

const (
	ModeScene SelectionMode = iota
	ModeSelection
	ModeTopNode
)

func (m SelectionMode) String() string {
	switch m {
	case ModeSelection:
		return "selection"
	case ModeTopNode:
		return "topnode"
	default:
		return "scene"
	}
}

// ParseMode accepts scene|selection|topnode (case-insensitive).
func ParseMode(s string) (SelectionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "scene":
		return ModeScene, nil
	case "selection", "selected":
		return ModeSelection, nil
	case "topnode", "top", "subtree":
		return ModeTopNode, nil
	}
	return ModeScene, fmt.Errorf("unknown selection mode %q", s)
}

func (m SelectionMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *SelectionMode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Status is what a report sink is told about a finished rule.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusFailure:
		return "failure"
	case StatusCancelled:
		return "cancelled"
	default:
		return "success"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Action string

const (
	ActionRun Action = "run"
	ActionFix Action = "fix"
)

// FailureKind classifies a per-entity failure.
type FailureKind string

const (
	FailureUnavailable FailureKind = "entity_unavailable"
	FailureRefused     FailureKind = "mutation_refused"
	FailureUnexpected  FailureKind = "unexpected"
)

type EntityFailure struct {
	Entity  Entity      `json:"entity,omitempty"`
	Stage   string      `json:"stage"` // enumerate|detect|fix
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// RunResult is the outcome of one rule invocation. It is never mutated after
// the runner hands it out.
type RunResult struct {
	Rule      string          `json:"rule"`
	Category  string          `json:"category"`
	Display   string          `json:"display"`
	Action    Action          `json:"action"`
	Findings  []Entity        `json:"findings"`
	Initial   []Entity        `json:"initial,omitempty"` // fix mode: findings before the remediator ran
	Waived    int             `json:"waived,omitempty"`
	Failures  []EntityFailure `json:"failures,omitempty"`
	Elapsed   time.Duration   `json:"elapsed_ns"`
	Cancelled bool            `json:"cancelled,omitempty"`
}

// Status reports Cancelled before anything else: a cancelled scan is unknown, not passed.
func (r RunResult) Status() Status {
	if r.Cancelled {
		return StatusCancelled
	}
	if len(r.Findings) > 0 || r.enumerationFailed() {
		return StatusFailure
	}
	return StatusSuccess
}

func (r RunResult) Passed() bool { return r.Status() == StatusSuccess }

func (r RunResult) enumerationFailed() bool {
	for _, f := range r.Failures {
		if f.Stage == "enumerate" {
			return true
		}
	}
	return false
}

// Session groups the results of one invocation (single rule, category or all).
type Session struct {
	ID           string        `json:"id"`
	StartedAt    time.Time     `json:"started_at"`
	Source       string        `json:"source,omitempty"`
	SourceDigest string        `json:"source_digest,omitempty"`
	Mode         SelectionMode `json:"mode"`
	Action       Action        `json:"action"`
	Version      string        `json:"version,omitempty"`
	Results      []RunResult   `json:"results"`
}

// FindingCount sums findings across results.
func (s *Session) FindingCount() int {
	n := 0
	for _, r := range s.Results {
		n += len(r.Findings)
	}
	return n
}
