package scene

import "math"

type Vec3 [3]float64

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{a[0] * s, a[1] * s, a[2] * s}
}
func (a Vec3) Dot(b Vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}
func (a Vec3) Len() float64 { return math.Sqrt(a.Dot(a)) }

// UVSet maps face-vertices to UV coordinates. FaceUVs[f][k] indexes Coords
// for the k-th vertex of face f; a nil or short FaceUVs[f] means the face has
// no UVs in this set.
type UVSet struct {
	Name    string
	Coords  [][2]float64
	FaceUVs [][]int
}

// FaceCoords returns the UVs of face f, or false when the face is unmapped.
func (s *UVSet) FaceCoords(f, n int) ([][2]float64, bool) {
	if f >= len(s.FaceUVs) || len(s.FaceUVs[f]) < n || n == 0 {
		return nil, false
	}
	out := make([][2]float64, n)
	for k := 0; k < n; k++ {
		id := s.FaceUVs[f][k]
		if id < 0 || id >= len(s.Coords) {
			return nil, false
		}
		out[k] = s.Coords[id]
	}
	return out, true
}

// Mesh is polygon data of one mesh shape.
type Mesh struct {
	Points        []Vec3
	Faces         [][]int
	Tweaks        []Vec3 // per-vertex offsets not yet baked into Points
	FrozenNormals []bool
	HardEdges     [][2]int
	UVSets        []UVSet
}

func (m *Mesh) Clone() *Mesh {
	if m == nil {
		return nil
	}
	c := &Mesh{
		Points:        append([]Vec3(nil), m.Points...),
		Tweaks:        append([]Vec3(nil), m.Tweaks...),
		FrozenNormals: append([]bool(nil), m.FrozenNormals...),
		HardEdges:     append([][2]int(nil), m.HardEdges...),
	}
	c.Faces = make([][]int, len(m.Faces))
	for i, f := range m.Faces {
		c.Faces[i] = append([]int(nil), f...)
	}
	c.UVSets = make([]UVSet, len(m.UVSets))
	for i, s := range m.UVSets {
		cs := UVSet{Name: s.Name, Coords: append([][2]float64(nil), s.Coords...)}
		cs.FaceUVs = make([][]int, len(s.FaceUVs))
		for j, f := range s.FaceUVs {
			cs.FaceUVs[j] = append([]int(nil), f...)
		}
		c.UVSets[i] = cs
	}
	return c
}

func (m *Mesh) validVertex(v int) bool { return v >= 0 && v < len(m.Points) }

// ValidFace reports whether every vertex index of face f is in range.
func (m *Mesh) ValidFace(f int) bool {
	for _, v := range m.Faces[f] {
		if !m.validVertex(v) {
			return false
		}
	}
	return true
}

// FaceNormal is Newell's normal; its length is twice the face area.
func (m *Mesh) FaceNormal(f int) Vec3 {
	var n Vec3
	face := m.Faces[f]
	if !m.ValidFace(f) {
		return n
	}
	for k := range face {
		a, b := m.Points[face[k]], m.Points[face[(k+1)%len(face)]]
		n[0] += (a[1] - b[1]) * (a[2] + b[2])
		n[1] += (a[2] - b[2]) * (a[0] + b[0])
		n[2] += (a[0] - b[0]) * (a[1] + b[1])
	}
	return n
}

func (m *Mesh) FaceArea(f int) float64 { return m.FaceNormal(f).Len() / 2 }

func (m *Mesh) Centroid(f int) Vec3 {
	var c Vec3
	face := m.Faces[f]
	if len(face) == 0 || !m.ValidFace(f) {
		return c
	}
	for _, v := range face {
		c = c.Add(m.Points[v])
	}
	return c.Scale(1 / float64(len(face)))
}

// Topology is the derived edge structure of a mesh. Edges are keyed by
// sorted vertex pairs; degenerate and out-of-range pairs are kept so they can
// be reported.
type Topology struct {
	Edges       [][2]int
	EdgeFaces   [][]int
	FaceEdges   [][]int
	VertexEdges [][]int
	index       map[[2]int]int
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func BuildTopology(m *Mesh) *Topology {
	t := &Topology{
		FaceEdges:   make([][]int, len(m.Faces)),
		VertexEdges: make([][]int, len(m.Points)),
		index:       map[[2]int]int{},
	}
	for f, face := range m.Faces {
		for k := range face {
			key := edgeKey(face[k], face[(k+1)%len(face)])
			e, ok := t.index[key]
			if !ok {
				e = len(t.Edges)
				t.index[key] = e
				t.Edges = append(t.Edges, key)
				t.EdgeFaces = append(t.EdgeFaces, nil)
				for i, v := range key {
					if m.validVertex(v) && (i == 0 || key[0] != key[1]) {
						t.VertexEdges[v] = append(t.VertexEdges[v], e)
					}
				}
			}
			if n := len(t.EdgeFaces[e]); n == 0 || t.EdgeFaces[e][n-1] != f {
				t.EdgeFaces[e] = append(t.EdgeFaces[e], f)
			}
			t.FaceEdges[f] = append(t.FaceEdges[f], e)
		}
	}
	return t
}

func (t *Topology) EdgeIndex(a, b int) (int, bool) {
	e, ok := t.index[edgeKey(a, b)]
	return e, ok
}

func (t *Topology) IsBoundary(e int) bool { return len(t.EdgeFaces[e]) < 2 }
