package rules

import (
	"fmt"
	"math"
	"slices"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/scene"
)

var (
	cleanHistoryTypes = []string{"mesh", "groupId", "shadingEngine", "objectSet", "textureEditorIsolateSelectSet"}

	polyDisplayAttrs = []string{"displayVertices", "displayCenter", "displayTriangle", "displayBorders",
		"displayMapBorder", "displayNormal", "displayUVs", "displayColors", "backfaceCulling"}

	overrideChecked = []string{"overrideEnabled", "overrideDisplayType", "overrideLevelOfDetail"}
	overrideReset   = []struct {
		name string
		v    any
	}{
		{"overrideEnabled", false}, {"overrideDisplayType", 0}, {"overrideLevelOfDetail", 0},
		{"overrideShading", true}, {"overrideTexturing", true}, {"overridePlayback", true},
		{"overrideVisibility", true}, {"overrideRGBColors", false}, {"overrideColor", 0},
	}

	smoothPreview = []struct {
		name string
		want float64
		v    any
	}{
		{"displaySmoothMesh", 0, 0}, {"smoothLevel", 1, 1},
		{"useSmoothPreviewForRender", 1, true}, {"renderSmoothLevel", 1, 1},
	}
)

func objectRules(tol Tolerances) []Rule {
	return []Rule{
		{
			Name: "construction_history", Default: true,
			Summary: "Mesh shapes carrying modeling history.",
			Detect:  perShape(hasConstructionHistory),
			Fix:     clearHistory,
		},
		{
			Name: "poly_display", Default: true,
			Summary: "Mesh shapes with non-default component display flags.",
			Detect:  perShape(hasPolyDisplay),
			Fix:     resetPolyDisplay,
		},
		{
			Name: "intermediate_objects", Default: true,
			Summary: "Transforms holding intermediate shapes.",
			Detect:  intermediateObjects(),
		},
		{
			Name:    "freeze_transformations",
			Summary: "Transforms whose translate, rotate or scale are not identity.",
			Detect:  unfrozen(tol.TransformEpsilon),
			Fix: func(s scene.Scene, e ir.Entity) error {
				if err := present(s, e); err != nil {
					return err
				}
				if err := freeze(s, e, identity()); err != nil {
					return err
				}
				return s.ClearHistory(e)
			},
		},
		{
			Name: "world_pivot", Default: true,
			Summary: "Transforms whose pivots are off the world origin.",
			Detect:  offPivot(),
			Fix: func(s scene.Scene, e ir.Entity) error {
				for _, a := range pivotAttrs {
					if err := setChannel(s, e, a, 0.0); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Name: "locked_transformations", Default: true,
			Summary: "Translate, rotate or visibility channels locked or hidden from keying.",
			Detect:  lockedChannels(append(append(slices.Clone(translateAttrs), rotateAttrs...), "visibility"), true),
			Fix:     unlockChannels(append(append(slices.Clone(translateAttrs), rotateAttrs...), "visibility")),
		},
		{
			Name: "locked_normals", Default: true,
			Summary: "Mesh shapes with frozen vertex normals.",
			Detect:  perShape(hasLockedNormals),
			Fix:     unlockNormals,
		},
		{
			Name: "vertex_transforms", Default: true,
			Summary: "Meshes with vertex tweaks not baked into their points.",
			Detect:  tweaked(tol.TweakEpsilon),
			Fix:     bakeTweaks,
		},
		{
			Name: "duplicated_names", Default: true,
			Summary: "Transforms sharing their short name with another DAG node.",
			Detect:  duplicatedNames(),
			Fix:     renameDuplicate,
		},
		{
			Name: "extra_shapes", Default: true,
			Summary: "Orphan intermediate shapes and unshaded duplicate shapes.",
			Detect:  extraShapes(),
			Fix:     DeleteFix,
		},
		{
			Name: "shapes_names", Default: true,
			Summary: "Mesh shapes not named after their transform.",
			Detect:  shapesNames(),
			Fix:     renameShape,
		},
		{
			Name: "locked_transforms", Default: true,
			Summary: "Translate, rotate, scale or visibility channels locked.",
			Detect:  lockedChannels(channelAttrs(), false),
			Fix:     unlockChannels(channelAttrs()),
		},
		{
			Name: "empty_groups", Default: true,
			Summary: "Transforms with no children.",
			Detect:  emptyGroups(),
			Fix:     DeleteFix,
		},
		{
			Name: "constraints", Default: true,
			Summary: "Constraints driving transforms.",
			Detect:  connected(scene.KindConstraint),
			Fix:     DeleteFix,
		},
		{
			Name: "deformers", Default: true,
			Summary: "Deformers in the history of meshes and transforms.",
			Detect:  deformers(),
			Fix:     DeleteFix,
		},
		{
			Name: "animation_curves", Default: true,
			Summary: "Animation curves driving transforms.",
			Detect:  connected(scene.KindAnimCurve),
			Fix:     DeleteFix,
		},
		{
			Name: "enable_overrides", Default: true,
			Summary: "Transforms or shapes with drawing overrides enabled.",
			Detect:  drawingOverrides(),
			Fix:     resetOverrides,
		},
		{
			Name: "smooth_mesh_preview", Default: true,
			Summary: "Meshes displayed or rendered with smooth mesh preview.",
			Detect:  smoothed(),
			Fix:     resetSmoothPreview,
		},
		{
			Name: "model_tag", Default: true,
			Summary: fmt.Sprintf("Mesh shapes missing the %q tag attribute.", tol.ModelTagAttribute),
			Detect:  untagged(tol.ModelTagAttribute),
			Fix:     tagModel(tol.ModelTagAttribute),
		},
	}
}

func channelAttrs() []string {
	out := append(slices.Clone(translateAttrs), rotateAttrs...)
	out = append(out, scaleAttrs...)
	return append(out, "visibility")
}

// perShape checks every non-intermediate mesh shape under meshes and groups
// and reports the offending shapes.
func perShape(bad func(s scene.Scene, shape ir.Entity) (bool, error)) Detector {
	return Detector{
		Candidates: meshesAndGroups,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			shapes, err := meshShapes(s, e, false)
			if err != nil {
				return nil, err
			}
			var out []ir.Entity
			for _, sh := range shapes {
				hit, err := bad(s, sh)
				if err != nil {
					return nil, err
				}
				if hit {
					out = append(out, sh)
				}
			}
			return out, nil
		},
	}
}

func hasConstructionHistory(s scene.Scene, shape ir.Entity) (bool, error) {
	hist, err := s.History(shape)
	if err != nil {
		return false, err
	}
	for _, h := range hist {
		typ, err := s.TypeOf(h)
		if err != nil {
			return false, err
		}
		if !slices.Contains(cleanHistoryTypes, typ) {
			return true, nil
		}
	}
	return false, nil
}

func clearHistory(s scene.Scene, e ir.Entity) error {
	if !s.Exists(e) {
		return nil
	}
	return s.ClearHistory(e)
}

func hasPolyDisplay(s scene.Scene, shape ir.Entity) (bool, error) {
	for _, a := range polyDisplayAttrs {
		ok, err := attrIs(s, shape, a, 0)
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
	}
	return false, nil
}

func resetPolyDisplay(s scene.Scene, shape ir.Entity) error {
	if err := present(s, shape); err != nil {
		return err
	}
	for _, a := range polyDisplayAttrs {
		v, err := s.GetAttribute(shape, a)
		if err != nil {
			continue
		}
		var zero any = false
		if _, isBool := v.(bool); !isBool {
			zero = 0
		}
		if err := setChannel(s, shape, a, zero); err != nil {
			return err
		}
	}
	return nil
}

func intermediateObjects() Detector {
	return Detector{
		Candidates: meshes,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			shapes, err := s.Shapes(e)
			if err != nil {
				return nil, err
			}
			for _, sh := range shapes {
				inter, err := s.IsIntermediate(sh)
				if err != nil {
					return nil, err
				}
				if inter {
					return []ir.Entity{e}, nil
				}
			}
			return nil, nil
		},
	}
}

func unfrozen(eps float64) Detector {
	return Detector{
		Candidates: meshesAndGroups,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			x, err := readXform(s, e)
			if err != nil {
				return nil, err
			}
			if x.identity(eps) {
				return nil, nil
			}
			return []ir.Entity{e}, nil
		},
	}
}

func offPivot() Detector {
	return Detector{
		Candidates: meshesAndGroups,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			for _, a := range pivotAttrs {
				ok, err := attrIs(s, e, a, 0)
				if err != nil {
					return nil, err
				}
				if !ok {
					return []ir.Entity{e}, nil
				}
			}
			return nil, nil
		},
	}
}

// lockedChannels reports transforms with a locked channel, or with a channel
// hidden from keying when keyable is set.
func lockedChannels(attrs []string, keyable bool) Detector {
	return Detector{
		Candidates: meshesAndGroups,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			if err := present(s, e); err != nil {
				return nil, err
			}
			for _, a := range attrs {
				info, err := s.AttributeInfo(e, a)
				if err != nil {
					continue
				}
				if info.Locked || (keyable && !info.Keyable) {
					return []ir.Entity{e}, nil
				}
			}
			return nil, nil
		},
	}
}

func unlockChannels(attrs []string) Remediator {
	return func(s scene.Scene, e ir.Entity) error {
		if err := present(s, e); err != nil {
			return err
		}
		for _, a := range attrs {
			if !s.HasAttribute(e, a) {
				continue
			}
			if err := s.SetAttributeInfo(e, a, scene.AttrInfo{Keyable: true, ChannelBox: true}); err != nil {
				return err
			}
		}
		return nil
	}
}

func hasLockedNormals(s scene.Scene, shape ir.Entity) (bool, error) {
	mesh, err := s.Mesh(shape)
	if err != nil {
		return false, err
	}
	return slices.Contains(mesh.FrozenNormals, true), nil
}

func unlockNormals(s scene.Scene, shape ir.Entity) error {
	mesh, err := s.Mesh(shape)
	if err != nil {
		return err
	}
	if !slices.Contains(mesh.FrozenNormals, true) {
		return nil
	}
	mesh.FrozenNormals = nil
	return s.SetMesh(shape, mesh)
}

func tweaked(eps float64) Detector {
	return Detector{
		Candidates: meshes,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			shapes, err := meshShapes(s, e, false)
			if err != nil {
				return nil, err
			}
			for _, sh := range shapes {
				mesh, err := s.Mesh(sh)
				if err != nil {
					return nil, err
				}
				for _, t := range mesh.Tweaks {
					if math.Abs(t[0]) > eps || math.Abs(t[1]) > eps || math.Abs(t[2]) > eps {
						return []ir.Entity{e}, nil
					}
				}
			}
			return nil, nil
		},
	}
}

func bakeTweaks(s scene.Scene, e ir.Entity) error {
	shapes, err := meshShapes(s, e, false)
	if err != nil {
		return err
	}
	for _, sh := range shapes {
		mesh, err := s.Mesh(sh)
		if err != nil {
			return err
		}
		if len(mesh.Tweaks) == 0 {
			continue
		}
		for i, t := range mesh.Tweaks {
			if i < len(mesh.Points) {
				mesh.Points[i] = mesh.Points[i].Add(t)
			}
		}
		mesh.Tweaks = nil
		if err := s.SetMesh(sh, mesh); err != nil {
			return err
		}
	}
	return nil
}

func duplicatedNames() Detector {
	return Detector{
		Candidates: meshesAndGroups,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			if err := present(s, e); err != nil {
				return nil, err
			}
			if s.DAGNameCount(scene.ShortName(e)) > 1 {
				return []ir.Entity{e}, nil
			}
			return nil, nil
		},
	}
}

// renameDuplicate renames to "<name>__<n>" with the smallest free n, unless
// the name became unique in the meantime.
func renameDuplicate(s scene.Scene, e ir.Entity) error {
	if err := present(s, e); err != nil {
		return err
	}
	short := scene.ShortName(e)
	if s.DAGNameCount(short) <= 1 {
		return nil
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s__%d", short, n)
		if s.DAGNameCount(candidate) == 0 {
			_, err := s.Rename(e, candidate)
			return err
		}
	}
}

func extraShapes() Detector {
	return Detector{
		Candidates: meshes,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			shapes, err := s.Shapes(e)
			if err != nil {
				return nil, err
			}
			if len(shapes) < 2 {
				return nil, nil
			}
			type info struct {
				e       ir.Entity
				inter   bool
				engines int
			}
			infos := make([]info, 0, len(shapes))
			primary := -1
			for _, sh := range shapes {
				inter, err := s.IsIntermediate(sh)
				if err != nil {
					return nil, err
				}
				sgs, err := s.ShadingEngines(sh)
				if err != nil {
					return nil, err
				}
				infos = append(infos, info{e: sh, inter: inter, engines: len(sgs)})
			}
			for i, in := range infos {
				if !in.inter && in.engines > 0 {
					primary = i
					break
				}
			}
			if primary < 0 {
				for i, in := range infos {
					if !in.inter {
						primary = i
						break
					}
				}
			}
			if primary < 0 {
				primary = 0
			}
			deformed, err := hasDeformer(s, infos[primary].e)
			if err != nil {
				return nil, err
			}
			var out []ir.Entity
			for i, in := range infos {
				if i == primary {
					continue
				}
				if (in.inter && !deformed) || (!in.inter && in.engines == 0) {
					out = append(out, in.e)
				}
			}
			return out, nil
		},
	}
}

func hasDeformer(s scene.Scene, e ir.Entity) (bool, error) {
	found, err := deformersOf(s, e)
	return len(found) > 0, err
}

func deformersOf(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
	hist, err := s.History(e)
	if err != nil {
		return nil, err
	}
	var out []ir.Entity
	for _, h := range hist {
		typ, err := s.TypeOf(h)
		if err != nil {
			return nil, err
		}
		if scene.Matches(scene.KindDeformer, typ) {
			out = append(out, h)
		}
	}
	return out, nil
}

func deformers() Detector {
	return Detector{
		Candidates: meshesAndGroups,
		Inspect:    deformersOf,
	}
}

func shapesNames() Detector {
	return Detector{
		Candidates: meshes,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			shapes, err := meshShapes(s, e, false)
			if err != nil || len(shapes) == 0 {
				return nil, err
			}
			if scene.ShortName(shapes[0]) != scene.ShortName(e)+"Shape" {
				return []ir.Entity{shapes[0]}, nil
			}
			return nil, nil
		},
	}
}

func renameShape(s scene.Scene, shape ir.Entity) error {
	parent, ok, err := s.Parent(shape)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	want := scene.ShortName(parent) + "Shape"
	if scene.ShortName(shape) == want {
		return nil
	}
	_, err = s.Rename(shape, want)
	return err
}

func emptyGroups() Detector {
	return Detector{
		Candidates: func(s scene.Scene, mode ir.SelectionMode) ([]ir.Entity, error) {
			return enumerate(s, mode, scene.KindTransform)
		},
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			children, err := s.Children(e)
			if err != nil {
				return nil, err
			}
			if len(children) == 0 {
				return []ir.Entity{e}, nil
			}
			return nil, nil
		},
	}
}

// connected reports nodes of kind k wired to meshes and groups.
func connected(k scene.Kind) Detector {
	return Detector{
		Candidates: meshesAndGroups,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			return s.Connections(e, k)
		},
	}
}

func drawingOverrides() Detector {
	return Detector{
		Candidates: meshesAndGroups,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			shapes, err := s.Shapes(e)
			if err != nil {
				return nil, err
			}
			var out []ir.Entity
			for _, n := range append([]ir.Entity{e}, shapes...) {
				for _, a := range overrideChecked {
					ok, err := attrIs(s, n, a, 0)
					if err != nil {
						return nil, err
					}
					if !ok {
						out = append(out, n)
						break
					}
				}
			}
			return out, nil
		},
	}
}

func resetOverrides(s scene.Scene, e ir.Entity) error {
	if err := present(s, e); err != nil {
		return err
	}
	for _, o := range overrideReset {
		if err := setChannel(s, e, o.name, o.v); err != nil {
			return err
		}
	}
	return nil
}

func smoothed() Detector {
	return Detector{
		Candidates: meshes,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			shapes, err := meshShapes(s, e, false)
			if err != nil {
				return nil, err
			}
			for _, sh := range shapes {
				for _, a := range smoothPreview {
					ok, err := attrIs(s, sh, a.name, a.want)
					if err != nil {
						return nil, err
					}
					if !ok {
						return []ir.Entity{e}, nil
					}
				}
			}
			return nil, nil
		},
	}
}

func resetSmoothPreview(s scene.Scene, e ir.Entity) error {
	shapes, err := meshShapes(s, e, false)
	if err != nil {
		return err
	}
	for _, sh := range shapes {
		for _, a := range smoothPreview {
			if err := setChannel(s, sh, a.name, a.v); err != nil {
				return err
			}
		}
	}
	return nil
}

func untagged(attr string) Detector {
	return Detector{
		Candidates: meshes,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			shapes, err := meshShapes(s, e, false)
			if err != nil {
				return nil, err
			}
			for _, sh := range shapes {
				if !s.HasAttribute(sh, attr) {
					return []ir.Entity{e}, nil
				}
			}
			return nil, nil
		},
	}
}

// tagModel stores the transform path in the tag attribute.
func tagModel(attr string) Remediator {
	return func(s scene.Scene, e ir.Entity) error {
		shapes, err := meshShapes(s, e, false)
		if err != nil {
			return err
		}
		for _, sh := range shapes {
			if s.HasAttribute(sh, attr) {
				continue
			}
			if err := s.AddAttribute(sh, attr, string(e)); err != nil {
				return err
			}
		}
		return nil
	}
}
