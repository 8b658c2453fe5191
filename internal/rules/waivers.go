package rules

import (
	"strings"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/storage"
)

// ApplyWaivers drops findings of rule that match an active waiver.
// Returns (kept, waivedCount).
func ApplyWaivers(rule string, in []ir.Entity, waivers []storage.Waiver) ([]ir.Entity, int) {
	if len(waivers) == 0 || len(in) == 0 {
		return in, 0
	}
	out := make([]ir.Entity, 0, len(in))
	waived := 0
nextFinding:
	for _, e := range in {
		for _, w := range waivers {
			wr := w.Rule
			if _, n, ok := strings.Cut(wr, "/"); ok {
				wr = n
			}
			if !eqCI(wr, rule) && wr != "*" {
				continue
			}
			if w.Pattern != "" && !strings.Contains(strings.ToLower(string(e)), strings.ToLower(w.Pattern)) {
				continue
			}
			waived++
			continue nextFinding
		}
		out = append(out, e)
	}
	return out, waived
}
