package scene

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gregoiredehame/checker/internal/ir"
)

func refuseReadOnly(n *node) error {
	if n.readOnly {
		return fmt.Errorf("%w: %s is read-only", ErrMutationRefused, n.path())
	}
	return nil
}

// Rename changes the short name of a node and returns its new handle.
func (m *Memory) Rename(e ir.Entity, name string) (ir.Entity, error) {
	n, err := m.resolve(e)
	if err != nil {
		return "", err
	}
	if err := refuseReadOnly(n); err != nil {
		return "", err
	}
	if n.locked {
		return "", fmt.Errorf("%w: %s is locked", ErrMutationRefused, n.path())
	}
	if name == "" || strings.ContainsAny(name, "|.[]") {
		return "", fmt.Errorf("%w: invalid name %q", ErrMutationRefused, name)
	}
	if name == n.name {
		return n.entity(), nil
	}
	if m.nameTaken(n, name) {
		return "", fmt.Errorf("%w: %q already exists", ErrMutationRefused, name)
	}
	n.name = name
	m.touch()
	return n.entity(), nil
}

func (m *Memory) nameTaken(n *node, name string) bool {
	if n.isDAG() {
		siblings := m.roots()
		if n.parent != nil {
			siblings = n.parent.children
		}
		for _, s := range siblings {
			if s != n && s.name == name {
				return true
			}
		}
		return false
	}
	for _, o := range m.nodes {
		if o != n && !o.isDAG() && o.name == name {
			return true
		}
	}
	return false
}

func (m *Memory) roots() []*node {
	var out []*node
	for _, n := range m.nodes {
		if n.parent == nil && n.isDAG() {
			out = append(out, n)
		}
	}
	return out
}

func (m *Memory) NodeLocked(e ir.Entity) (bool, error) {
	n, err := m.resolve(e)
	if err != nil {
		return false, err
	}
	return n.locked, nil
}

func (m *Memory) SetNodeLocked(e ir.Entity, locked bool) error {
	n, err := m.resolve(e)
	if err != nil {
		return err
	}
	if err := refuseReadOnly(n); err != nil {
		return err
	}
	if n.locked != locked {
		n.locked = locked
		m.touch()
	}
	return nil
}

func (m *Memory) AttributeInfo(e ir.Entity, name string) (AttrInfo, error) {
	_, a, err := m.attribute(e, name)
	if err != nil {
		return AttrInfo{}, err
	}
	return a.info, nil
}

func (m *Memory) SetAttributeInfo(e ir.Entity, name string, info AttrInfo) error {
	n, a, err := m.attribute(e, name)
	if err != nil {
		return err
	}
	if err := refuseReadOnly(n); err != nil {
		return err
	}
	if a.info != info {
		a.info = info
		m.touch()
	}
	return nil
}

func (m *Memory) HasAttribute(e ir.Entity, name string) bool {
	_, _, err := m.attribute(e, name)
	return err == nil
}

func (m *Memory) AddAttribute(e ir.Entity, name string, v any) error {
	n, err := m.resolve(e)
	if err != nil {
		return err
	}
	if err := refuseReadOnly(n); err != nil {
		return err
	}
	if n.locked {
		return fmt.Errorf("%w: %s is locked", ErrMutationRefused, n.path())
	}
	name = canonical(name)
	if _, ok := n.attrs[name]; ok {
		return fmt.Errorf("%w: %s.%s already exists", ErrMutationRefused, n.path(), name)
	}
	n.attrs[name] = &attr{value: v, info: AttrInfo{Keyable: true}}
	m.touch()
	return nil
}

// keptHistory lists node types that survive a history delete.
var keptHistory = set("mesh", "groupId", "shadingEngine", "objectSet", "textureEditorIsolateSelectSet")

// ClearHistory drops construction history from a shape (or a transform's
// shapes). History nodes nothing else depends on are deleted.
func (m *Memory) ClearHistory(e ir.Entity) error {
	n, err := m.resolve(e)
	if err != nil {
		return err
	}
	targets := []*node{n}
	if n.typ == "transform" {
		targets = n.shapes()
	}
	for _, t := range targets {
		if err := refuseReadOnly(t); err != nil {
			return err
		}
	}
	var dropped []*node
	for _, t := range targets {
		var keep []*node
		for _, h := range t.history {
			if keptHistory[h.typ] {
				keep = append(keep, h)
				continue
			}
			dropped = append(dropped, h)
		}
		t.history = keep
	}
	var orphans []*node
	for _, h := range dropped {
		if !m.inHistory(h) && !slices.Contains(orphans, h) && !h.locked && !h.readOnly && h.parent == nil {
			orphans = append(orphans, h)
		}
	}
	for _, o := range orphans {
		m.remove(o.descendants([]*node{o}))
	}
	m.touch()
	return nil
}

func (m *Memory) inHistory(h *node) bool {
	for _, n := range m.nodes {
		if slices.Contains(n.history, h) {
			return true
		}
	}
	return false
}

func (m *Memory) Namespaces() ([]string, error) { return slices.Clone(m.namespaces), nil }

// RemoveNamespace merges ns (and namespaces nested in it) with the root.
func (m *Memory) RemoveNamespace(ns string) error {
	if !slices.Contains(m.namespaces, ns) {
		return fmt.Errorf("%w: namespace %s", ErrEntityUnavailable, ns)
	}
	prefix := ns + ":"
	for _, n := range m.nodes {
		if strings.HasPrefix(n.name, prefix) && n.readOnly {
			return fmt.Errorf("%w: %s is read-only", ErrMutationRefused, n.path())
		}
	}
	for _, n := range m.nodes {
		n.name = strings.TrimPrefix(n.name, prefix)
	}
	var kept []string
	for _, other := range m.namespaces {
		switch {
		case other == ns:
		case strings.HasPrefix(other, prefix):
			kept = append(kept, strings.TrimPrefix(other, prefix))
		default:
			kept = append(kept, other)
		}
	}
	m.namespaces = kept
	m.touch()
	return nil
}

func (m *Memory) UnknownPlugins() ([]string, error) { return slices.Clone(m.plugins), nil }

func (m *Memory) RemovePlugin(name string) error {
	i := slices.Index(m.plugins, name)
	if i < 0 {
		return fmt.Errorf("%w: plugin %s", ErrEntityUnavailable, name)
	}
	m.plugins = slices.Delete(m.plugins, i, i+1)
	m.touch()
	return nil
}

func (m *Memory) meshNode(e ir.Entity) (*node, error) {
	n, err := m.resolve(e)
	if err != nil {
		return nil, err
	}
	shape := n.primaryMesh()
	if shape == nil || shape.mesh == nil {
		return nil, fmt.Errorf("%w: %s has no mesh", ErrEntityUnavailable, n.path())
	}
	return shape, nil
}

func (m *Memory) Mesh(e ir.Entity) (*Mesh, error) {
	shape, err := m.meshNode(e)
	if err != nil {
		return nil, err
	}
	return shape.mesh.Clone(), nil
}

func (m *Memory) SetMesh(e ir.Entity, mesh *Mesh) error {
	shape, err := m.meshNode(e)
	if err != nil {
		return err
	}
	if err := refuseReadOnly(shape); err != nil {
		return err
	}
	shape.mesh = mesh.Clone()
	m.touch()
	return nil
}

func (m *Memory) Topology(e ir.Entity) (*Topology, error) {
	shape, err := m.meshNode(e)
	if err != nil {
		return nil, err
	}
	return m.topology(shape), nil
}

func (m *Memory) topology(shape *node) *Topology {
	key := topoKey{n: shape, rev: m.revision}
	if t, ok := m.topo.Get(key); ok {
		return t
	}
	t := BuildTopology(shape.mesh)
	m.topo.Add(key, t)
	return t
}

func (m *Memory) engine(e ir.Entity) (*node, error) {
	n, err := m.resolve(e)
	if err != nil {
		return nil, err
	}
	if n.typ != "shadingEngine" && n.typ != "objectSet" {
		return nil, fmt.Errorf("%w: %s is not a set", ErrEntityUnavailable, n.path())
	}
	return n, nil
}

func (m *Memory) Members(e ir.Entity) ([]Member, error) {
	n, err := m.engine(e)
	if err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(n.members))
	for _, r := range n.members {
		out = append(out, Member{Node: r.n.entity(), Faces: slices.Clone(r.faces)})
	}
	return out, nil
}

func (m *Memory) SetMembers(e ir.Entity, members []Member) error {
	n, err := m.engine(e)
	if err != nil {
		return err
	}
	if err := refuseReadOnly(n); err != nil {
		return err
	}
	refs := make([]memberRef, 0, len(members))
	for _, mem := range members {
		mn, err := m.resolve(mem.Node)
		if err != nil {
			return err
		}
		refs = append(refs, memberRef{n: mn, faces: slices.Clone(mem.Faces)})
	}
	n.members = refs
	m.touch()
	return nil
}

// ShadingEngines lists engines holding the node, its shapes or its parent.
func (m *Memory) ShadingEngines(e ir.Entity) ([]ir.Entity, error) {
	n, err := m.resolve(e)
	if err != nil {
		return nil, err
	}
	related := append([]*node{n}, n.shapes()...)
	if n.isShape() && n.parent != nil {
		related = append(related, n.parent)
	}
	out := []ir.Entity{}
	for _, sg := range m.nodes {
		if sg.typ != "shadingEngine" {
			continue
		}
		for _, r := range sg.members {
			if slices.Contains(related, r.n) {
				out = append(out, sg.entity())
				break
			}
		}
	}
	return out, nil
}
