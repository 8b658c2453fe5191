package scene

import (
	"fmt"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gregoiredehame/checker/internal/ir"
)

type attr struct {
	value any
	info  AttrInfo
}

type memberRef struct {
	n     *node
	faces []int
}

type node struct {
	name         string
	typ          string
	parent       *node
	children     []*node
	attrs        map[string]*attr
	locked       bool
	readOnly     bool
	intermediate bool
	conns        []*node
	history      []*node
	members      []memberRef
	mesh         *Mesh
}

type topoKey struct {
	n   *node
	rev uint64
}

// Memory is an in-memory scene graph. It is not safe for concurrent use.
type Memory struct {
	nodes      []*node
	selection  []*node
	namespaces []string
	plugins    []string
	revision   uint64

	byName   map[string][]*node
	indexRev uint64
	topo     *lru.Cache[topoKey, *Topology]
}

var _ Scene = (*Memory)(nil)

func NewMemory() *Memory {
	c, _ := lru.New[topoKey, *Topology](256)
	return &Memory{topo: c, indexRev: ^uint64(0)}
}

// Revision increments on every mutation.
func (m *Memory) Revision() uint64 { return m.revision }

func (m *Memory) Len() int { return len(m.nodes) }

func (m *Memory) touch() { m.revision++ }

func (n *node) isDAG() bool {
	return n.parent != nil || dagTypes[n.typ] || strings.HasSuffix(n.typ, "Constraint")
}

func (n *node) isShape() bool { return shapeTypes[n.typ] }

func (n *node) path() string {
	if !n.isDAG() {
		return n.name
	}
	var parts []string
	for p := n; p != nil; p = p.parent {
		parts = append(parts, p.name)
	}
	slices.Reverse(parts)
	return "|" + strings.Join(parts, "|")
}

func (n *node) entity() ir.Entity { return ir.Entity(n.path()) }

func (n *node) shapes() []*node {
	var out []*node
	for _, c := range n.children {
		if c.isShape() {
			out = append(out, c)
		}
	}
	return out
}

func (n *node) hasShape(typ string) bool {
	for _, s := range n.shapes() {
		if s.typ == typ {
			return true
		}
	}
	return false
}

// primaryMesh is the first non-intermediate mesh shape, or n itself for a mesh.
func (n *node) primaryMesh() *node {
	if n.typ == "mesh" {
		return n
	}
	var fallback *node
	for _, s := range n.shapes() {
		if s.typ != "mesh" {
			continue
		}
		if !s.intermediate {
			return s
		}
		if fallback == nil {
			fallback = s
		}
	}
	return fallback
}

func (n *node) descendants(out []*node) []*node {
	for _, c := range n.children {
		out = append(out, c)
		out = c.descendants(out)
	}
	return out
}

func (m *Memory) reindex() {
	if m.indexRev == m.revision {
		return
	}
	m.byName = make(map[string][]*node, len(m.nodes))
	for _, n := range m.nodes {
		m.byName[n.name] = append(m.byName[n.name], n)
	}
	m.indexRev = m.revision
}

func (m *Memory) DAGNameCount(name string) int {
	m.reindex()
	n := 0
	for _, o := range m.byName[name] {
		if o.isDAG() {
			n++
		}
	}
	return n
}

// resolve finds the node behind a handle. Components resolve to their node.
func (m *Memory) resolve(e ir.Entity) (*node, error) {
	if base, _, _, ok := SplitComponent(e); ok {
		e = base
	}
	s := string(e)
	if s == "" {
		return nil, fmt.Errorf("%w: empty handle", ErrEntityUnavailable)
	}
	m.reindex()
	var found *node
	count := 0
	for _, n := range m.byName[ShortName(e)] {
		if n.matches(s) {
			found = n
			count++
		}
	}
	switch count {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrEntityUnavailable, e)
	case 1:
		return found, nil
	}
	return nil, fmt.Errorf("%w: %s is not unique", ErrEntityUnavailable, e)
}

func (n *node) matches(s string) bool {
	if !n.isDAG() {
		return n.name == s
	}
	p := n.path()
	if strings.HasPrefix(s, "|") {
		return p == s
	}
	return strings.HasSuffix(p, "|"+s)
}

func (m *Memory) kindMatch(n *node, k Kind) bool {
	switch k {
	case KindMesh:
		return n.typ == "transform" && n.hasShape("mesh")
	case KindTransform:
		return n.typ == "transform" && len(n.shapes()) == 0
	}
	return Matches(k, n.typ)
}

func (m *Memory) liveSelection() []*node {
	return slices.Clone(m.selection)
}

func entities(ns []*node) []ir.Entity {
	out := make([]ir.Entity, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.entity())
	}
	return out
}

// Enumerate lists nodes of a kind in creation order. Selection and TopNode
// narrow DAG kinds only; TopNode takes the first selected node and its
// descendants.
func (m *Memory) Enumerate(kind Kind, mode ir.SelectionMode) ([]ir.Entity, error) {
	universe := m.nodes
	if kind.Scoped() {
		switch mode {
		case ir.ModeSelection:
			universe = m.liveSelection()
		case ir.ModeTopNode:
			sel := m.liveSelection()
			if len(sel) == 0 {
				return []ir.Entity{}, nil
			}
			universe = sel[0].descendants([]*node{sel[0]})
		}
	}
	out := []ir.Entity{}
	for _, n := range universe {
		if m.kindMatch(n, kind) {
			out = append(out, n.entity())
		}
	}
	return out, nil
}

func (m *Memory) TypeOf(e ir.Entity) (string, error) {
	n, err := m.resolve(e)
	if err != nil {
		return "", err
	}
	return n.typ, nil
}

// Exists also range-checks mesh components.
func (m *Memory) Exists(e ir.Entity) bool {
	n, err := m.resolve(e)
	if err != nil {
		return false
	}
	_, kind, idx, ok := SplitComponent(e)
	if !ok {
		return true
	}
	shape := n.primaryMesh()
	if shape == nil || shape.mesh == nil {
		return false
	}
	switch kind {
	case "f":
		return idx < len(shape.mesh.Faces)
	case "vtx":
		return idx < len(shape.mesh.Points)
	case "e":
		return idx < len(m.topology(shape).Edges)
	case "map":
		return len(shape.mesh.UVSets) > 0 && idx < len(shape.mesh.UVSets[0].Coords)
	}
	return false
}

var attrAliases = map[string]string{
	"tx": "translateX", "ty": "translateY", "tz": "translateZ",
	"rx": "rotateX", "ry": "rotateY", "rz": "rotateZ",
	"sx": "scaleX", "sy": "scaleY", "sz": "scaleZ",
	"v":   "visibility",
	"rpx": "rotatePivotX", "rpy": "rotatePivotY", "rpz": "rotatePivotZ",
	"spx": "scalePivotX", "spy": "scalePivotY", "spz": "scalePivotZ",
}

func canonical(name string) string {
	if long, ok := attrAliases[name]; ok {
		return long
	}
	return name
}

func (m *Memory) attribute(e ir.Entity, name string) (*node, *attr, error) {
	if _, _, _, ok := SplitComponent(e); ok {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrNoAttribute, e, name)
	}
	n, err := m.resolve(e)
	if err != nil {
		return nil, nil, err
	}
	a, ok := n.attrs[canonical(name)]
	if !ok {
		return n, nil, fmt.Errorf("%w: %s.%s", ErrNoAttribute, n.path(), name)
	}
	return n, a, nil
}

func (m *Memory) GetAttribute(e ir.Entity, name string) (any, error) {
	_, a, err := m.attribute(e, name)
	if err != nil {
		return nil, err
	}
	return a.value, nil
}

func (m *Memory) SetAttribute(e ir.Entity, name string, v any) error {
	n, a, err := m.attribute(e, name)
	if err != nil {
		return err
	}
	if n.readOnly {
		return fmt.Errorf("%w: %s is read-only", ErrMutationRefused, n.path())
	}
	if a.info.Locked {
		return fmt.Errorf("%w: %s.%s is locked", ErrMutationRefused, n.path(), name)
	}
	a.value = v
	m.touch()
	return nil
}

// Delete removes a node and its DAG subtree. Locked or read-only nodes refuse.
func (m *Memory) Delete(e ir.Entity) error {
	if _, _, _, ok := SplitComponent(e); ok {
		return fmt.Errorf("%w: cannot delete component %s", ErrMutationRefused, e)
	}
	n, err := m.resolve(e)
	if err != nil {
		return err
	}
	doomed := n.descendants([]*node{n})
	for _, d := range doomed {
		if d.readOnly {
			return fmt.Errorf("%w: %s is read-only", ErrMutationRefused, d.path())
		}
		if d.locked {
			return fmt.Errorf("%w: %s is locked", ErrMutationRefused, d.path())
		}
	}
	m.remove(doomed)
	return nil
}

func (m *Memory) remove(doomed []*node) {
	gone := make(map[*node]bool, len(doomed))
	for _, d := range doomed {
		gone[d] = true
	}
	if p := doomed[0].parent; p != nil {
		p.children = slices.DeleteFunc(p.children, func(c *node) bool { return gone[c] })
	}
	drop := func(ns []*node) []*node { return slices.DeleteFunc(ns, func(c *node) bool { return gone[c] }) }
	m.nodes = drop(m.nodes)
	m.selection = drop(m.selection)
	for _, n := range m.nodes {
		n.conns = drop(n.conns)
		n.history = drop(n.history)
		n.members = slices.DeleteFunc(n.members, func(r memberRef) bool { return gone[r.n] })
	}
	m.touch()
}

func (m *Memory) Connections(e ir.Entity, filter Kind) ([]ir.Entity, error) {
	n, err := m.resolve(e)
	if err != nil {
		return nil, err
	}
	out := []ir.Entity{}
	for _, c := range n.conns {
		if m.kindMatch(c, filter) {
			out = append(out, c.entity())
		}
	}
	return out, nil
}

// History of a transform is the union of its shapes' histories.
func (m *Memory) History(e ir.Entity) ([]ir.Entity, error) {
	n, err := m.resolve(e)
	if err != nil {
		return nil, err
	}
	var hist []*node
	if n.typ == "transform" {
		for _, s := range n.shapes() {
			for _, h := range s.history {
				if !slices.Contains(hist, h) {
					hist = append(hist, h)
				}
			}
		}
	} else {
		hist = n.history
	}
	return entities(hist), nil
}

func (m *Memory) Parent(e ir.Entity) (ir.Entity, bool, error) {
	n, err := m.resolve(e)
	if err != nil {
		return "", false, err
	}
	if n.parent == nil {
		return "", false, nil
	}
	return n.parent.entity(), true, nil
}

func (m *Memory) Children(e ir.Entity) ([]ir.Entity, error) {
	n, err := m.resolve(e)
	if err != nil {
		return nil, err
	}
	return entities(n.children), nil
}

func (m *Memory) Shapes(e ir.Entity) ([]ir.Entity, error) {
	n, err := m.resolve(e)
	if err != nil {
		return nil, err
	}
	return entities(n.shapes()), nil
}

func (m *Memory) Descendants(e ir.Entity) ([]ir.Entity, error) {
	n, err := m.resolve(e)
	if err != nil {
		return nil, err
	}
	return entities(n.descendants(nil)), nil
}

func (m *Memory) IsIntermediate(e ir.Entity) (bool, error) {
	n, err := m.resolve(e)
	if err != nil {
		return false, err
	}
	return n.intermediate, nil
}
