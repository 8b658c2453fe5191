package rules

import (
	"fmt"
	"slices"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/scene"
)

func shaderRules(tol Tolerances) []Rule {
	fallback := ir.Entity(tol.FallbackShadingGroup)
	return []Rule{
		{
			Name:    "assigned_lambert",
			Summary: fmt.Sprintf("Meshes shaded by anything but %s.", fallback),
			Detect: engineCheck(func(engines []ir.Entity) bool {
				return slices.ContainsFunc(engines, func(sg ir.Entity) bool { return sg != fallback })
			}),
			Fix: assignTo(fallback),
		},
		{
			Name: "assigned_faces_shaders", Default: true,
			Summary: "Meshes assigned to a shading engine as a whole object instead of per face.",
			Detect:  Detector{Candidates: meshes, Inspect: objectAssigned},
			Fix:     assignPerFace,
		},
		{
			Name: "non_shaders_assigned", Default: true,
			Summary: "Meshes without any shading engine.",
			Detect:  engineCheck(func(engines []ir.Entity) bool { return len(engines) == 0 }),
			Fix:     assignTo(fallback),
		},
	}
}

func engineCheck(bad func([]ir.Entity) bool) Detector {
	return Detector{
		Candidates: meshes,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			engines, err := s.ShadingEngines(e)
			if err != nil {
				return nil, err
			}
			if bad(engines) {
				return []ir.Entity{e}, nil
			}
			return nil, nil
		},
	}
}

func objectAssigned(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
	engines, err := s.ShadingEngines(e)
	if err != nil {
		return nil, err
	}
	own, err := meshOwners(s, e)
	if err != nil {
		return nil, err
	}
	for _, sg := range engines {
		members, err := s.Members(sg)
		if err != nil {
			return nil, err
		}
		for _, mem := range members {
			if own[mem.Node] && mem.Faces == nil {
				return []ir.Entity{e}, nil
			}
		}
	}
	return nil, nil
}

// assignPerFace replaces whole-object memberships of e with the explicit list
// of its faces.
func assignPerFace(s scene.Scene, e ir.Entity) error {
	if err := present(s, e); err != nil {
		return err
	}
	engines, err := s.ShadingEngines(e)
	if err != nil {
		return err
	}
	own, err := meshOwners(s, e)
	if err != nil {
		return err
	}
	for _, sg := range engines {
		members, err := s.Members(sg)
		if err != nil {
			return err
		}
		changed := false
		for i, mem := range members {
			if !own[mem.Node] || mem.Faces != nil {
				continue
			}
			m, err := s.Mesh(mem.Node)
			if err != nil {
				return err
			}
			faces := make([]int, len(m.Faces))
			for f := range faces {
				faces[f] = f
			}
			members[i].Faces = faces
			changed = true
		}
		if changed {
			if err := s.SetMembers(sg, members); err != nil {
				return err
			}
		}
	}
	return nil
}

// assignTo moves e out of every other shading engine and into engine as a
// whole object, the way a forced set assignment does.
func assignTo(engine ir.Entity) Remediator {
	return func(s scene.Scene, e ir.Entity) error {
		if err := present(s, e); err != nil {
			return err
		}
		if !s.Exists(engine) {
			return fmt.Errorf("%w: shading engine %s", scene.ErrEntityUnavailable, engine)
		}
		own, err := meshOwners(s, e)
		if err != nil {
			return err
		}
		engines, err := s.ShadingEngines(e)
		if err != nil {
			return err
		}
		for _, sg := range engines {
			if sg == engine {
				continue
			}
			members, err := s.Members(sg)
			if err != nil {
				return err
			}
			kept := slices.DeleteFunc(members, func(m scene.Member) bool { return own[m.Node] })
			if err := s.SetMembers(sg, kept); err != nil {
				return err
			}
		}
		members, err := s.Members(engine)
		if err != nil {
			return err
		}
		shapes, err := meshShapes(s, e, false)
		if err != nil {
			return err
		}
		target := e
		if len(shapes) > 0 {
			target = shapes[0]
		}
		members = slices.DeleteFunc(members, func(m scene.Member) bool { return own[m.Node] })
		members = append(members, scene.Member{Node: target})
		return s.SetMembers(engine, members)
	}
}
