package scene

import (
	"fmt"
	"slices"

	"github.com/gregoiredehame/checker/internal/ir"
)

// NodeSpec describes a node to add to a Memory scene.
type NodeSpec struct {
	Name         string
	Type         string
	Parent       ir.Entity
	Attrs        map[string]any
	LockedAttrs  []string
	NonKeyable   []string
	Locked       bool
	ReadOnly     bool
	Intermediate bool
	Mesh         *Mesh
}

var overrideDefaults = map[string]any{
	"overrideEnabled":       false,
	"overrideDisplayType":   0,
	"overrideLevelOfDetail": 0,
	"overrideShading":       true,
	"overrideTexturing":     true,
	"overridePlayback":      true,
	"overrideVisibility":    true,
	"overrideRGBColors":     false,
	"overrideColor":         0,
}

var meshDefaults = map[string]any{
	"displaySmoothMesh":         0,
	"smoothLevel":               1,
	"useSmoothPreviewForRender": true,
	"renderSmoothLevel":         1,
	"displayVertices":           false,
	"displayCenter":             false,
	"displayTriangle":           false,
	"displayBorders":            false,
	"displayMapBorder":          false,
	"displayNormal":             false,
	"displayUVs":                false,
	"displayColors":             false,
	"backfaceCulling":           0,
}

var channels = []string{
	"translateX", "translateY", "translateZ",
	"rotateX", "rotateY", "rotateZ",
	"scaleX", "scaleY", "scaleZ",
	"visibility",
}

func defaultAttrs(typ string) map[string]*attr {
	out := map[string]*attr{}
	put := func(src map[string]any) {
		for k, v := range src {
			out[k] = &attr{value: v}
		}
	}
	switch {
	case typ == "transform" || typ == "joint":
		for _, c := range channels {
			v := any(0.0)
			switch c {
			case "scaleX", "scaleY", "scaleZ":
				v = 1.0
			case "visibility":
				v = true
			}
			out[c] = &attr{value: v, info: AttrInfo{Keyable: true, ChannelBox: true}}
		}
		for _, p := range []string{"rotatePivotX", "rotatePivotY", "rotatePivotZ", "scalePivotX", "scalePivotY", "scalePivotZ"} {
			out[p] = &attr{value: 0.0}
		}
		put(overrideDefaults)
	case typ == "mesh":
		put(overrideDefaults)
		put(meshDefaults)
	case shapeTypes[typ]:
		put(overrideDefaults)
	}
	return out
}

// Add creates a node. The parent must already exist.
func (m *Memory) Add(spec NodeSpec) (ir.Entity, error) {
	if spec.Name == "" || spec.Type == "" {
		return "", fmt.Errorf("node needs a name and a type (name=%q type=%q)", spec.Name, spec.Type)
	}
	n := &node{
		name:         spec.Name,
		typ:          spec.Type,
		attrs:        defaultAttrs(spec.Type),
		locked:       spec.Locked,
		readOnly:     spec.ReadOnly,
		intermediate: spec.Intermediate,
	}
	if spec.Parent != "" {
		p, err := m.resolve(spec.Parent)
		if err != nil {
			return "", fmt.Errorf("parent of %s: %w", spec.Name, err)
		}
		n.parent = p
	}
	if m.nameTaken(n, n.name) {
		return "", fmt.Errorf("%w: %q already exists", ErrMutationRefused, n.name)
	}
	if spec.Mesh != nil {
		n.mesh = spec.Mesh.Clone()
	} else if spec.Type == "mesh" {
		n.mesh = &Mesh{}
	}
	for k, v := range spec.Attrs {
		k = canonical(k)
		if a, ok := n.attrs[k]; ok {
			a.value = v
			continue
		}
		n.attrs[k] = &attr{value: v, info: AttrInfo{Keyable: true}}
	}
	for _, k := range spec.LockedAttrs {
		a, ok := n.attrs[canonical(k)]
		if !ok {
			return "", fmt.Errorf("%w: %s.%s", ErrNoAttribute, spec.Name, k)
		}
		a.info.Locked = true
	}
	for _, k := range spec.NonKeyable {
		a, ok := n.attrs[canonical(k)]
		if !ok {
			return "", fmt.Errorf("%w: %s.%s", ErrNoAttribute, spec.Name, k)
		}
		a.info.Keyable = false
		a.info.ChannelBox = false
	}
	if n.parent != nil {
		n.parent.children = append(n.parent.children, n)
	}
	m.nodes = append(m.nodes, n)
	m.touch()
	return n.entity(), nil
}

// Connect links two nodes both ways.
func (m *Memory) Connect(a, b ir.Entity) error {
	na, err := m.resolve(a)
	if err != nil {
		return err
	}
	nb, err := m.resolve(b)
	if err != nil {
		return err
	}
	if !slices.Contains(na.conns, nb) {
		na.conns = append(na.conns, nb)
	}
	if !slices.Contains(nb.conns, na) {
		nb.conns = append(nb.conns, na)
	}
	m.touch()
	return nil
}

// AddHistory records h as an upstream history node of e.
func (m *Memory) AddHistory(e, h ir.Entity) error {
	n, err := m.resolve(e)
	if err != nil {
		return err
	}
	hn, err := m.resolve(h)
	if err != nil {
		return err
	}
	if !slices.Contains(n.history, hn) {
		n.history = append(n.history, hn)
	}
	m.touch()
	return nil
}

func (m *Memory) AddMember(engine ir.Entity, mem Member) error {
	sg, err := m.engine(engine)
	if err != nil {
		return err
	}
	n, err := m.resolve(mem.Node)
	if err != nil {
		return err
	}
	sg.members = append(sg.members, memberRef{n: n, faces: slices.Clone(mem.Faces)})
	m.touch()
	return nil
}

// Select replaces the active selection.
func (m *Memory) Select(es ...ir.Entity) error {
	sel := make([]*node, 0, len(es))
	for _, e := range es {
		n, err := m.resolve(e)
		if err != nil {
			return err
		}
		sel = append(sel, n)
	}
	m.selection = sel
	m.touch()
	return nil
}

func (m *Memory) AddNamespace(ns string) {
	if !slices.Contains(m.namespaces, ns) {
		m.namespaces = append(m.namespaces, ns)
		m.touch()
	}
}

func (m *Memory) AddUnknownPlugin(name string) {
	if !slices.Contains(m.plugins, name) {
		m.plugins = append(m.plugins, name)
		m.touch()
	}
}
