// Package scene defines the capability a rule needs from a host scene graph
// and ships an in-memory backend of it.
package scene

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gregoiredehame/checker/internal/ir"
)

var (
	// ErrEntityUnavailable means the handle no longer resolves (deleted, renamed, not unique).
	ErrEntityUnavailable = errors.New("entity unavailable")
	// ErrMutationRefused means the host refused a write (locked, read-only, referenced).
	ErrMutationRefused = errors.New("mutation refused")
	// ErrNoAttribute means the entity has no such attribute.
	ErrNoAttribute = errors.New("no such attribute")
)

// Accessor is the query and mutation surface every backend provides.
type Accessor interface {
	Enumerate(kind Kind, mode ir.SelectionMode) ([]ir.Entity, error)
	TypeOf(e ir.Entity) (string, error)
	Exists(e ir.Entity) bool
	GetAttribute(e ir.Entity, name string) (any, error)
	SetAttribute(e ir.Entity, name string, v any) error
	Delete(e ir.Entity) error
	Connections(e ir.Entity, filter Kind) ([]ir.Entity, error)
	History(e ir.Entity) ([]ir.Entity, error)
}

// Hierarchy walks the DAG.
type Hierarchy interface {
	Parent(e ir.Entity) (ir.Entity, bool, error)
	Children(e ir.Entity) ([]ir.Entity, error)
	// Shapes lists the direct shape children, intermediate ones included.
	Shapes(e ir.Entity) ([]ir.Entity, error)
	Descendants(e ir.Entity) ([]ir.Entity, error)
	IsIntermediate(e ir.Entity) (bool, error)
	// DAGNameCount counts DAG nodes whose short name is name.
	DAGNameCount(name string) int
}

// AttrInfo carries the per-attribute flags a channel box shows.
type AttrInfo struct {
	Locked     bool
	Keyable    bool
	ChannelBox bool
}

type Editor interface {
	Rename(e ir.Entity, name string) (ir.Entity, error)
	NodeLocked(e ir.Entity) (bool, error)
	SetNodeLocked(e ir.Entity, locked bool) error
	AttributeInfo(e ir.Entity, name string) (AttrInfo, error)
	SetAttributeInfo(e ir.Entity, name string, info AttrInfo) error
	HasAttribute(e ir.Entity, name string) bool
	AddAttribute(e ir.Entity, name string, v any) error
	ClearHistory(e ir.Entity) error
	Namespaces() ([]string, error)
	RemoveNamespace(ns string) error
	UnknownPlugins() ([]string, error)
	RemovePlugin(name string) error
}

// Geometry exposes mesh data. Mesh and Topology accept a transform (its
// primary mesh shape is used) or a mesh shape.
type Geometry interface {
	Mesh(e ir.Entity) (*Mesh, error)
	SetMesh(e ir.Entity, m *Mesh) error
	// Topology is shared and must not be modified by callers.
	Topology(e ir.Entity) (*Topology, error)
}

// Member is one entry of a shading engine set. Faces == nil means the whole object.
type Member struct {
	Node  ir.Entity
	Faces []int
}

type Shading interface {
	Members(engine ir.Entity) ([]Member, error)
	SetMembers(engine ir.Entity, members []Member) error
	ShadingEngines(e ir.Entity) ([]ir.Entity, error)
}

// Scene is everything the rule catalog uses.
type Scene interface {
	Accessor
	Hierarchy
	Editor
	Geometry
	Shading
}

// Kind filters enumeration. It is either an exact node type, a type prefix
// ending in "*", or one of the families below.
type Kind string

const (
	KindAny        Kind = "@any"
	KindMesh       Kind = "@mesh"      // transforms carrying a mesh shape
	KindTransform  Kind = "@transform" // transforms carrying no shape
	KindShape      Kind = "@shape"
	KindConstraint Kind = "@constraint"
	KindAnimCurve  Kind = "@animCurve"
	KindDeformer   Kind = "@deformer"
	KindShader     Kind = "@shader"
)

var (
	shapeTypes = set("mesh", "nurbsSurface", "nurbsCurve", "camera", "locator")
	dagTypes   = set("transform", "joint", "dagContainer", "dagNode", "mesh", "nurbsSurface", "nurbsCurve", "camera", "locator")

	deformerTypes = set("blendShape", "cluster", "deltaMush", "ffd", "jiggle", "nonLinear", "proximityWrap",
		"sculpt", "shrinkWrap", "skinCluster", "softMod", "tension", "textureDeformer", "wire", "wrap")
	shaderTypes = set("lambert", "blinn", "phong", "phongE", "anisotropic", "rampShader", "surfaceShader",
		"layeredShader", "useBackground", "standardSurface", "openPBRSurface", "aiStandardSurface",
		"aiFlat", "aiUtility", "aiToon", "RedshiftMaterial", "VRayMtl")
)

func set(vs ...string) map[string]bool {
	m := make(map[string]bool, len(vs))
	for _, v := range vs {
		m[v] = true
	}
	return m
}

// Matches reports whether a node type falls under k. KindMesh and
// KindTransform depend on the hierarchy and never match here.
func Matches(k Kind, typ string) bool {
	switch k {
	case KindAny:
		return true
	case KindMesh, KindTransform:
		return false
	case KindShape:
		return shapeTypes[typ]
	case KindConstraint:
		return strings.HasSuffix(typ, "Constraint")
	case KindAnimCurve:
		return strings.HasPrefix(typ, "animCurve")
	case KindDeformer:
		return deformerTypes[typ]
	case KindShader:
		return shaderTypes[typ]
	}
	s := string(k)
	if p, ok := strings.CutSuffix(s, "*"); ok {
		return strings.HasPrefix(typ, p)
	}
	return s == typ
}

// Scoped reports whether the selection mode narrows enumeration of k.
// Dependency-graph kinds are always scene wide.
func (k Kind) Scoped() bool {
	switch k {
	case KindMesh, KindTransform, KindShape:
		return true
	}
	return dagTypes[string(k)]
}

// Component builds "<node>.<kind>[<idx>]", e.g. "|pCube1.f[3]".
func Component(node ir.Entity, kind string, idx int) ir.Entity {
	return ir.Entity(fmt.Sprintf("%s.%s[%d]", node, kind, idx))
}

var componentKinds = set("f", "e", "vtx", "map")

// SplitComponent undoes Component.
func SplitComponent(e ir.Entity) (node ir.Entity, kind string, idx int, ok bool) {
	s := string(e)
	if !strings.HasSuffix(s, "]") {
		return e, "", 0, false
	}
	dot := strings.LastIndex(s, ".")
	open := strings.LastIndex(s, "[")
	if dot <= 0 || open < dot {
		return e, "", 0, false
	}
	kind = s[dot+1 : open]
	if !componentKinds[kind] {
		return e, "", 0, false
	}
	n, err := strconv.Atoi(s[open+1 : len(s)-1])
	if err != nil || n < 0 {
		return e, "", 0, false
	}
	return ir.Entity(s[:dot]), kind, n, true
}

// ShortName strips the DAG path of an entity.
func ShortName(e ir.Entity) string {
	s := string(e)
	if i := strings.LastIndex(s, "|"); i >= 0 {
		return s[i+1:]
	}
	return s
}
