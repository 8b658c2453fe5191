package rules

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/scene"
)

// asFloat reads numeric and boolean attribute values.
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// attrIs reports whether attribute name equals want. Missing or non-numeric
// attributes count as matching.
func attrIs(s scene.Scene, e ir.Entity, name string, want float64) (bool, error) {
	v, err := s.GetAttribute(e, name)
	if errors.Is(err, scene.ErrNoAttribute) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	f, ok := asFloat(v)
	if !ok {
		return true, nil
	}
	return f == want, nil
}

func enumerate(s scene.Scene, mode ir.SelectionMode, kinds ...scene.Kind) ([]ir.Entity, error) {
	fs := ir.NewFindingSet()
	for _, k := range kinds {
		es, err := s.Enumerate(k, mode)
		if err != nil {
			return nil, fmt.Errorf("enumerate %s: %w", k, err)
		}
		fs.Add(es...)
	}
	return fs.Entities(), nil
}

func meshes(s scene.Scene, mode ir.SelectionMode) ([]ir.Entity, error) {
	return enumerate(s, mode, scene.KindMesh)
}

func meshesAndGroups(s scene.Scene, mode ir.SelectionMode) ([]ir.Entity, error) {
	return enumerate(s, mode, scene.KindMesh, scene.KindTransform)
}

// meshShapes lists the mesh shapes under a transform, intermediate ones
// included when all is true.
func meshShapes(s scene.Scene, e ir.Entity, all bool) ([]ir.Entity, error) {
	shapes, err := s.Shapes(e)
	if err != nil {
		return nil, err
	}
	out := shapes[:0:0]
	for _, sh := range shapes {
		typ, err := s.TypeOf(sh)
		if err != nil {
			return nil, err
		}
		if typ != "mesh" {
			continue
		}
		if !all {
			inter, err := s.IsIntermediate(sh)
			if err != nil {
				return nil, err
			}
			if inter {
				continue
			}
		}
		out = append(out, sh)
	}
	return out, nil
}

func present(s scene.Scene, e ir.Entity) error {
	if !s.Exists(e) {
		return fmt.Errorf("%w: %s", scene.ErrEntityUnavailable, e)
	}
	return nil
}

// deleteNode unlocks then deletes; read-only nodes surface ErrMutationRefused.
func deleteNode(s scene.Scene, e ir.Entity) error {
	if err := s.SetNodeLocked(e, false); err != nil {
		return err
	}
	return s.Delete(e)
}

// Sweep is the enumerate-and-filter detector shared by most scene rules and
// by YAML rule packs.
type Sweep struct {
	Kinds        []scene.Kind
	NameContains string
	NameMatch    *regexp.Regexp
	Deny         []string
}

func (sw Sweep) denied(e ir.Entity) bool {
	name := scene.ShortName(e)
	if slices.Contains(sw.Deny, name) {
		return true
	}
	if sw.NameMatch != nil && !sw.NameMatch.MatchString(name) {
		return true
	}
	return sw.NameContains != "" && !strings.Contains(name, sw.NameContains)
}

func (sw Sweep) Detector() Detector {
	return Detector{
		Candidates: func(s scene.Scene, mode ir.SelectionMode) ([]ir.Entity, error) {
			return enumerate(s, mode, sw.Kinds...)
		},
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			if err := present(s, e); err != nil {
				return nil, err
			}
			if sw.denied(e) {
				return nil, nil
			}
			return []ir.Entity{e}, nil
		},
	}
}

// DeleteFix removes the offending node.
func DeleteFix(s scene.Scene, e ir.Entity) error {
	if !s.Exists(e) {
		return nil
	}
	return deleteNode(s, e)
}

func kinds(ks ...string) []scene.Kind {
	out := make([]scene.Kind, len(ks))
	for i, k := range ks {
		out[i] = scene.Kind(k)
	}
	return out
}

// byDepth orders names so nested ones (more separators) come first.
func byDepth(es []ir.Entity, sep string) []ir.Entity {
	out := slices.Clone(es)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.Count(string(out[i]), sep) > strings.Count(string(out[j]), sep)
	})
	return out
}

func nearly(a, b, eps float64) bool { return math.Abs(a-b) <= eps }
