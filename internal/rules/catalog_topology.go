package rules

import (
	"slices"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/scene"
)

func topologyRules(tol Tolerances) []Rule {
	return []Rule{
		{
			Name: "triangles", Summary: "Three-sided faces.",
			Detect: faceCheck(func(m *scene.Mesh, _ *scene.Topology, f int) bool { return len(m.Faces[f]) == 3 }),
		},
		{
			Name: "ngons", Default: true, Summary: "Faces with more than four edges.",
			Detect: faceCheck(func(m *scene.Mesh, _ *scene.Topology, f int) bool { return len(m.Faces[f]) > 4 }),
		},
		{
			Name: "lamina_faces", Default: true, Summary: "Faces sharing all of their edges with another face.",
			Detect: faceCheck(lamina),
		},
		{
			Name: "zero_area_faces", Default: true, Summary: "Faces with no measurable area.",
			Detect: faceCheck(func(m *scene.Mesh, _ *scene.Topology, f int) bool {
				return m.FaceArea(f) <= tol.AreaEpsilon
			}),
		},
		{
			Name: "non_manifold_edges", Default: true, Summary: "Edges shared by more than two faces.",
			Detect: edgeCheck(func(_ *scene.Mesh, t *scene.Topology, e int) bool { return len(t.EdgeFaces[e]) > 2 }),
		},
		{
			Name: "zero_length_edges", Default: true, Summary: "Edges with no measurable length.",
			Detect: edgeCheck(func(m *scene.Mesh, t *scene.Topology, e int) bool {
				a, b := t.Edges[e][0], t.Edges[e][1]
				if !inRange(m, a) || !inRange(m, b) || a == b {
					return false
				}
				return m.Points[a].Sub(m.Points[b]).Len() <= tol.LengthEpsilon
			}),
		},
		{
			Name: "hard_edges", Default: true, Summary: "Hard edges away from the mesh border.",
			Detect: Detector{Candidates: meshes, Inspect: innerHardEdges},
		},
		{
			Name: "open_edges", Default: true, Summary: "Border edges with a single face.",
			Detect: edgeCheck(func(_ *scene.Mesh, t *scene.Topology, e int) bool { return t.IsBoundary(e) }),
		},
		{
			Name: "poles", Summary: "Vertices joining more edges than a regular grid.",
			Detect: vertexCheck(func(_ *scene.Mesh, t *scene.Topology, v int) bool {
				return len(t.VertexEdges[v]) > tol.PoleEdges
			}),
		},
		{
			Name: "starlike_faces", Default: true, Summary: "Faces not star-shaped around their centroid.",
			Detect: faceCheck(func(m *scene.Mesh, _ *scene.Topology, f int) bool { return !starlike(m, f) }),
		},
		{
			Name: "invalid_edges", Default: true, Summary: "Degenerate edges or edges on missing vertices.",
			Detect: edgeCheck(func(m *scene.Mesh, t *scene.Topology, e int) bool {
				a, b := t.Edges[e][0], t.Edges[e][1]
				return a == b || !inRange(m, a) || !inRange(m, b)
			}),
			Fix: onMesh(cleanFaces),
		},
		{
			Name: "invalid_vertices", Default: true, Summary: "Vertices no face uses.",
			Detect: vertexCheck(func(_ *scene.Mesh, t *scene.Topology, v int) bool { return len(t.VertexEdges[v]) == 0 }),
			Fix:    onMesh(compactPoints),
		},
	}
}

func inRange(m *scene.Mesh, v int) bool { return v >= 0 && v < len(m.Points) }

type componentTest func(m *scene.Mesh, t *scene.Topology, i int) bool

// componentCheck walks the mesh of every candidate transform and reports the
// components of kind for which bad holds.
func componentCheck(kind string, count func(*scene.Mesh, *scene.Topology) int, bad componentTest) Detector {
	return Detector{
		Candidates: meshes,
		Inspect: func(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
			m, err := s.Mesh(e)
			if err != nil {
				return nil, err
			}
			t, err := s.Topology(e)
			if err != nil {
				return nil, err
			}
			var out []ir.Entity
			for i := 0; i < count(m, t); i++ {
				if bad(m, t, i) {
					out = append(out, scene.Component(e, kind, i))
				}
			}
			return out, nil
		},
	}
}

func faceCheck(bad componentTest) Detector {
	return componentCheck("f", func(m *scene.Mesh, _ *scene.Topology) int { return len(m.Faces) }, bad)
}

func edgeCheck(bad componentTest) Detector {
	return componentCheck("e", func(_ *scene.Mesh, t *scene.Topology) int { return len(t.Edges) }, bad)
}

func innerHardEdges(s scene.Scene, e ir.Entity) ([]ir.Entity, error) {
	m, err := s.Mesh(e)
	if err != nil {
		return nil, err
	}
	t, err := s.Topology(e)
	if err != nil {
		return nil, err
	}
	hard := make(map[int]bool, len(m.HardEdges))
	for _, h := range m.HardEdges {
		if i, ok := t.EdgeIndex(h[0], h[1]); ok && !t.IsBoundary(i) {
			hard[i] = true
		}
	}
	var out []ir.Entity
	for i := range t.Edges {
		if hard[i] {
			out = append(out, scene.Component(e, "e", i))
		}
	}
	return out, nil
}

func vertexCheck(bad componentTest) Detector {
	return componentCheck("vtx", func(m *scene.Mesh, _ *scene.Topology) int { return len(m.Points) }, bad)
}

func lamina(m *scene.Mesh, t *scene.Topology, f int) bool {
	edges := t.FaceEdges[f]
	if len(edges) == 0 {
		return false
	}
	for _, g := range t.EdgeFaces[edges[0]] {
		if g == f || len(t.FaceEdges[g]) != len(edges) {
			continue
		}
		shared := true
		for _, e := range edges {
			if !slices.Contains(t.FaceEdges[g], e) {
				shared = false
				break
			}
		}
		if shared {
			return true
		}
	}
	return false
}

// starlike reports whether every vertex of f is visible from its centroid:
// each fan triangle must wind like the face.
func starlike(m *scene.Mesh, f int) bool {
	face := m.Faces[f]
	if len(face) < 3 || !m.ValidFace(f) {
		return false
	}
	n := m.FaceNormal(f)
	c := m.Centroid(f)
	for k := range face {
		a, b := m.Points[face[k]], m.Points[face[(k+1)%len(face)]]
		if a.Sub(c).Cross(b.Sub(c)).Dot(n) <= 0 {
			return false
		}
	}
	return true
}

// onMesh turns a whole-mesh repair into a remediator for component findings.
// Findings on the same mesh repeat the repair harmlessly.
func onMesh(repair func(*scene.Mesh) bool) Remediator {
	return func(s scene.Scene, e ir.Entity) error {
		node := e
		if n, _, _, ok := scene.SplitComponent(e); ok {
			node = n
		}
		m, err := s.Mesh(node)
		if err != nil {
			return err
		}
		if !repair(m) {
			return nil
		}
		return s.SetMesh(node, m)
	}
}

// cleanFaces drops missing and repeated vertices from faces, then faces left
// with fewer than three vertices. UV assignments follow the same edit.
func cleanFaces(m *scene.Mesh) bool {
	changed := false
	var faces [][]int
	var kept []int
	uvs := make([][][]int, len(m.UVSets))
	for f, face := range m.Faces {
		var keep []int
		for k, v := range face {
			if !inRange(m, v) {
				continue
			}
			if len(keep) > 0 && face[keep[len(keep)-1]] == v {
				continue
			}
			keep = append(keep, k)
		}
		if len(keep) > 1 && face[keep[0]] == face[keep[len(keep)-1]] {
			keep = keep[:len(keep)-1]
		}
		if len(keep) != len(face) {
			changed = true
		}
		if len(keep) < 3 {
			continue
		}
		nf := make([]int, len(keep))
		for i, k := range keep {
			nf[i] = face[k]
		}
		faces = append(faces, nf)
		kept = append(kept, f)
		for si, set := range m.UVSets {
			var fu []int
			if f < len(set.FaceUVs) && len(set.FaceUVs[f]) == len(face) {
				fu = make([]int, len(keep))
				for i, k := range keep {
					fu[i] = set.FaceUVs[f][k]
				}
			}
			uvs[si] = append(uvs[si], fu)
		}
	}
	if !changed {
		return false
	}
	m.Faces = faces
	for si := range m.UVSets {
		m.UVSets[si].FaceUVs = uvs[si]
	}
	return true
}

// compactPoints removes vertices no face references and renumbers the rest.
func compactPoints(m *scene.Mesh) bool {
	used := make([]bool, len(m.Points))
	for _, face := range m.Faces {
		for _, v := range face {
			if inRange(m, v) {
				used[v] = true
			}
		}
	}
	if !slices.Contains(used, false) {
		return false
	}
	remap := make([]int, len(m.Points))
	var points, tweaks []scene.Vec3
	var frozen []bool
	for v, u := range used {
		remap[v] = -1
		if !u {
			continue
		}
		remap[v] = len(points)
		points = append(points, m.Points[v])
		if v < len(m.Tweaks) {
			tweaks = append(tweaks, m.Tweaks[v])
		}
		if v < len(m.FrozenNormals) {
			frozen = append(frozen, m.FrozenNormals[v])
		}
	}
	for _, face := range m.Faces {
		for k, v := range face {
			if inRange(m, v) {
				face[k] = remap[v]
			}
		}
	}
	var hard [][2]int
	for _, h := range m.HardEdges {
		if inRange(m, h[0]) && inRange(m, h[1]) && remap[h[0]] >= 0 && remap[h[1]] >= 0 {
			hard = append(hard, [2]int{remap[h[0]], remap[h[1]]})
		}
	}
	m.Points, m.Tweaks, m.FrozenNormals, m.HardEdges = points, tweaks, frozen, hard
	return true
}
