package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gregoiredehame/checker/internal/ir"
)

type diffPayload struct {
	BaseID  string        `json:"base_id"`
	HeadID  string        `json:"head_id"`
	Summary diffSummary   `json:"summary"`
	New     []diffFinding `json:"new"`
	Removed []diffFinding `json:"removed"`
	Changed []diffChanged `json:"changed"`
}

type diffSummary struct {
	NewCount     int `json:"new"`
	RemovedCount int `json:"removed"`
	ChangedCount int `json:"changed"`
}

type diffFinding struct {
	Category string `json:"category"`
	Rule     string `json:"rule"`
	Entity   string `json:"entity"`
}

// diffChanged is a rule whose status moved between the two sessions.
type diffChanged struct {
	Key  string `json:"key"`
	Base string `json:"base"`
	Head string `json:"head"`
}

func WriteDiffJSON(baseID, headID, outDir string, base, head *ir.Session) (string, error) {
	path := filepath.Join(outDir, "diff_"+baseID+"__"+headID+".json")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(diffSessions(baseID, headID, base, head), "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, b, 0o644)
}

func diffSessions(baseID, headID string, base, head *ir.Session) diffPayload {
	bf, bs := index(base)
	hf, hs := index(head)

	added := []diffFinding{}
	removed := []diffFinding{}
	changed := []diffChanged{}

	for k, f := range hf {
		if _, ok := bf[k]; !ok {
			added = append(added, f)
		}
	}
	for k, f := range bf {
		if _, ok := hf[k]; !ok {
			removed = append(removed, f)
		}
	}
	// only rules both sessions ran
	for k, h := range hs {
		if b, ok := bs[k]; ok && b != h {
			changed = append(changed, diffChanged{Key: k, Base: b.String(), Head: h.String()})
		}
	}

	// stable sort
	sort.Slice(added, func(i, j int) bool { return less(added[i], added[j]) })
	sort.Slice(removed, func(i, j int) bool { return less(removed[i], removed[j]) })
	sort.Slice(changed, func(i, j int) bool { return changed[i].Key < changed[j].Key })

	return diffPayload{
		BaseID: baseID, HeadID: headID,
		Summary: diffSummary{
			NewCount:     len(added),
			RemovedCount: len(removed),
			ChangedCount: len(changed),
		},
		New:     added,
		Removed: removed,
		Changed: changed,
	}
}

func index(s *ir.Session) (map[string]diffFinding, map[string]ir.Status) {
	fs := map[string]diffFinding{}
	st := map[string]ir.Status{}
	if s == nil {
		return fs, st
	}
	for _, r := range s.Results {
		rk := ruleKey(r.Category, r.Rule)
		st[rk] = r.Status()
		for _, e := range r.Findings {
			fs[rk+"|"+string(e)] = diffFinding{Category: r.Category, Rule: r.Rule, Entity: string(e)}
		}
	}
	return fs, st
}

// ruleKey folds case; entity handles stay case-sensitive.
func ruleKey(category, rule string) string { return norm(category) + "/" + norm(rule) }

func less(a, b diffFinding) bool {
	ka, kb := ruleKey(a.Category, a.Rule), ruleKey(b.Category, b.Rule)
	if ka != kb {
		return ka < kb
	}
	return a.Entity < b.Entity
}

func norm(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
