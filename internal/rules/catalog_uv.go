package rules

import (
	"math"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/scene"
)

func uvRules(Tolerances) []Rule {
	return []Rule{
		{
			Name: "empty_uv", Default: true, Summary: "Meshes with faces lacking UVs.",
			Detect: meshCheck(func(m *scene.Mesh) bool {
				set := currentUVs(m)
				for f, face := range m.Faces {
					if set == nil {
						return true
					}
					if _, ok := set.FaceCoords(f, len(face)); !ok {
						return true
					}
				}
				return false
			}),
		},
		{
			Name: "non_manifold_uvs", Default: true, Summary: "UVs shared by more than one vertex.",
			Detect: Detector{Candidates: meshes, Inspect: nonManifoldUVs},
			Fix:    onMesh(splitSharedUVs),
		},
		{
			Name: "negative_uv", Default: true, Summary: "Faces with UVs below zero.",
			Detect: uvFaceCheck(func(uv [][2]float64) bool {
				for _, c := range uv {
					if c[0] < 0 || c[1] < 0 {
						return true
					}
				}
				return false
			}),
		},
		{
			Name: "multiple_uv_sets", Default: true, Summary: "Meshes with more than one UV set.",
			Detect: meshCheck(func(m *scene.Mesh) bool { return len(m.UVSets) > 1 }),
		},
		{
			Name: "missing_uv_sets", Default: true, Summary: "Meshes with no UV set.",
			Detect: meshCheck(func(m *scene.Mesh) bool { return len(m.UVSets) == 0 }),
		},
		{
			Name: "multiple_udims", Default: true, Summary: "Faces spanning more than one UDIM tile.",
			Detect: uvFaceCheck(spansTiles),
		},
		{
			Name: "flipped_uv_faces", Summary: "Faces whose UVs wind clockwise.",
			Detect: uvFaceCheck(func(uv [][2]float64) bool { return signedArea(uv) < 0 }),
		},
		{
			Name: "overlapping_uv_faces", Summary: "Faces overlapping other faces of the same mesh in UV space.",
			Detect: Detector{Candidates: meshes, Inspect: overlappingFaces},
		},
		{
			Name: "overlapping_uv_meshes", Summary: "Faces overlapping faces of other meshes sharing a shading engine.",
			Detect: Detector{Candidates: meshes, Inspect: overlappingMeshes},
		},
	}
}

// currentUVs is the first UV set, the one the host edits by default.
func currentUVs(m *scene.Mesh) *scene.UVSet {
	if len(m.UVSets) == 0 {
		return nil
	}
	return &m.UVSets[0]
}

// meshCheck reports candidate transforms whose mesh fails bad.
func meshCheck(bad func(*scene.Mesh) bool) Detector {
	return Detector{
		Candidates: meshes,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			m, err := s.Mesh(e)
			if err != nil {
				return nil, err
			}
			if bad(m) {
				return []ir.Entity{e}, nil
			}
			return nil, nil
		},
	}
}

// uvFaceCheck reports mapped faces whose UV polygon fails bad.
func uvFaceCheck(bad func([][2]float64) bool) Detector {
	return Detector{
		Candidates: meshes,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			m, err := s.Mesh(e)
			if err != nil {
				return nil, err
			}
			set := currentUVs(m)
			if set == nil {
				return nil, nil
			}
			var out []ir.Entity
			for f, face := range m.Faces {
				uv, ok := set.FaceCoords(f, len(face))
				if ok && bad(uv) {
					out = append(out, scene.Component(e, "f", f))
				}
			}
			return out, nil
		},
	}
}

// spansTiles reports a face reaching past the UDIM tile of its lowest corner.
func spansTiles(uv [][2]float64) bool {
	minU, minV := math.Inf(1), math.Inf(1)
	maxU, maxV := math.Inf(-1), math.Inf(-1)
	for _, c := range uv {
		minU, maxU = math.Min(minU, c[0]), math.Max(maxU, c[0])
		minV, maxV = math.Min(minV, c[1]), math.Max(maxV, c[1])
	}
	return maxU > math.Floor(minU)+1 || maxV > math.Floor(minV)+1
}

func signedArea(uv [][2]float64) float64 {
	var a float64
	for k := range uv {
		p, q := uv[k], uv[(k+1)%len(uv)]
		a += p[0]*q[1] - q[0]*p[1]
	}
	return a / 2
}

// uvOwners maps each UV id of the current set to the vertices using it, in
// first-use order. Ids outside the coordinate list are ignored.
func uvOwners(m *scene.Mesh, set *scene.UVSet) map[int][]int {
	owners := map[int][]int{}
	for f, face := range m.Faces {
		if f >= len(set.FaceUVs) || len(set.FaceUVs[f]) != len(face) {
			continue
		}
		for k, id := range set.FaceUVs[f] {
			if id < 0 || id >= len(set.Coords) {
				continue
			}
			v := face[k]
			seen := false
			for _, o := range owners[id] {
				if o == v {
					seen = true
					break
				}
			}
			if !seen {
				owners[id] = append(owners[id], v)
			}
		}
	}
	return owners
}

func nonManifoldUVs(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
	m, err := s.Mesh(e)
	if err != nil {
		return nil, err
	}
	set := currentUVs(m)
	if set == nil {
		return nil, nil
	}
	owners := uvOwners(m, set)
	var out []ir.Entity
	for id := range set.Coords {
		if len(owners[id]) > 1 {
			out = append(out, scene.Component(e, "map", id))
		}
	}
	return out, nil
}

// splitSharedUVs gives every extra vertex of a shared UV its own copy.
func splitSharedUVs(m *scene.Mesh) bool {
	set := currentUVs(m)
	if set == nil {
		return false
	}
	owners := uvOwners(m, set)
	changed := false
	copies := map[[2]int]int{}
	for f, face := range m.Faces {
		if f >= len(set.FaceUVs) || len(set.FaceUVs[f]) != len(face) {
			continue
		}
		for k, id := range set.FaceUVs[f] {
			vs := owners[id]
			if len(vs) < 2 || vs[0] == face[k] {
				continue
			}
			key := [2]int{id, face[k]}
			n, ok := copies[key]
			if !ok {
				n = len(set.Coords)
				set.Coords = append(set.Coords, set.Coords[id])
				copies[key] = n
			}
			set.FaceUVs[f][k] = n
			changed = true
		}
	}
	return changed
}

type uvTri [3][2]float64

// uvTriangles fans every mapped face of the current set into triangles.
func uvTriangles(m *scene.Mesh) map[int][]uvTri {
	out := map[int][]uvTri{}
	set := currentUVs(m)
	if set == nil {
		return out
	}
	for f, face := range m.Faces {
		uv, ok := set.FaceCoords(f, len(face))
		if !ok || len(uv) < 3 {
			continue
		}
		for k := 1; k+1 < len(uv); k++ {
			t := uvTri{uv[0], uv[k], uv[k+1]}
			if math.Abs(signedArea(t[:])) > uvEpsilon {
				out[f] = append(out[f], t)
			}
		}
	}
	return out
}

const uvEpsilon = 1e-9

// trisOverlap is a separating axis test; triangles that only touch along an
// edge or a corner do not overlap.
func trisOverlap(a, b uvTri) bool {
	for _, tri := range []uvTri{a, b} {
		for k := 0; k < 3; k++ {
			p, q := tri[k], tri[(k+1)%3]
			axis := [2]float64{p[1] - q[1], q[0] - p[0]}
			minA, maxA := project(a, axis)
			minB, maxB := project(b, axis)
			if maxA <= minB+uvEpsilon || maxB <= minA+uvEpsilon {
				return false
			}
		}
	}
	return true
}

func project(t uvTri, axis [2]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range t {
		d := p[0]*axis[0] + p[1]*axis[1]
		lo, hi = math.Min(lo, d), math.Max(hi, d)
	}
	return lo, hi
}

func facesOverlap(a, b []uvTri) bool {
	for _, ta := range a {
		for _, tb := range b {
			if trisOverlap(ta, tb) {
				return true
			}
		}
	}
	return false
}

func overlappingFaces(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
	m, err := s.Mesh(e)
	if err != nil {
		return nil, err
	}
	tris := uvTriangles(m)
	hit := make([]bool, len(m.Faces))
	for f := range m.Faces {
		for g := f + 1; g < len(m.Faces); g++ {
			if facesOverlap(tris[f], tris[g]) {
				hit[f], hit[g] = true, true
			}
		}
	}
	var out []ir.Entity
	for f, h := range hit {
		if h {
			out = append(out, scene.Component(e, "f", f))
		}
	}
	return out, nil
}

// overlappingMeshes compares e against every other mesh sharing one of its
// shading engines and reports the faces of e involved.
func overlappingMeshes(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
	m, err := s.Mesh(e)
	if err != nil {
		return nil, err
	}
	engines, err := s.ShadingEngines(e)
	if err != nil {
		return nil, err
	}
	own, err := meshOwners(s, e)
	if err != nil {
		return nil, err
	}
	others := ir.NewFindingSet()
	for _, sg := range engines {
		members, err := s.Members(sg)
		if err != nil {
			return nil, err
		}
		for _, mem := range members {
			if own[mem.Node] || scene.ShortName(mem.Node) == shaderBall {
				continue
			}
			others.Add(mem.Node)
		}
	}
	mine := uvTriangles(m)
	hit := make([]bool, len(m.Faces))
	for _, o := range others.Entities() {
		om, err := s.Mesh(o)
		if err != nil {
			continue
		}
		theirs := uvTriangles(om)
		for f := range m.Faces {
			if hit[f] {
				continue
			}
			for _, tris := range theirs {
				if facesOverlap(mine[f], tris) {
					hit[f] = true
					break
				}
			}
		}
	}
	var out []ir.Entity
	for f, h := range hit {
		if h {
			out = append(out, scene.Component(e, "f", f))
		}
	}
	return out, nil
}

// meshOwners is the transform plus its shapes.
func meshOwners(s scene.Scene, e ir.Entity) (map[ir.Entity]bool, error) {
	shapes, err := s.Shapes(e)
	if err != nil {
		return nil, err
	}
	own := map[ir.Entity]bool{e: true}
	for _, sh := range shapes {
		own[sh] = true
	}
	return own, nil
}
