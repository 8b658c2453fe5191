package rules

import (
	"errors"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/scene"
)

// Detector finds offending entities. The runner drives it: Candidates is
// enumerated once, then Inspect is called per candidate so progress,
// cancellation and per-entity isolation stay with the caller. Inspect must not
// mutate the scene.
type Detector struct {
	Candidates func(s scene.Scene, mode ir.SelectionMode) ([]ir.Entity, error)
	Inspect    func(s scene.Scene, e ir.Entity) ([]ir.Entity, error)
}

// Detect runs the detector over the whole scope with no progress. Per-entity
// errors are joined and returned next to the findings gathered so far.
func (d Detector) Detect(s scene.Scene, mode ir.SelectionMode) ([]ir.Entity, error) {
	cands, err := d.Candidates(s, mode)
	if err != nil {
		return nil, err
	}
	fs := ir.NewFindingSet()
	var errs []error
	for _, c := range cands {
		found, err := d.Inspect(s, c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fs.Add(found...)
	}
	return fs.Entities(), errors.Join(errs...)
}

// Remediator repairs one entity of a finding set. Applying it to an entity
// that is already clean must be harmless.
type Remediator func(s scene.Scene, e ir.Entity) error

// Rule is one named check, optionally paired with a fix.
type Rule struct {
	Name     string
	Category string
	Summary  string
	// Default marks rules enabled by the preset selection.
	Default bool
	Detect  Detector
	Fix     Remediator
}

func (r Rule) Display() string { return ir.DisplayName(r.Name) }

func (r Rule) Fixable() bool { return r.Fix != nil }

// Qualified is "Category/name".
func (r Rule) Qualified() string { return r.Category + "/" + r.Name }
