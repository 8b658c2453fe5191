// Package parser loads YAML scene fixtures into an in-memory scene.
package parser

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/scene"
)

type Diagnostics struct {
	Warnings []string
}

func (d *Diagnostics) warnf(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// Source identifies the fixture a scene was loaded from.
type Source struct {
	Path   string
	Digest string // blake2b-256, hex
}

type fixture struct {
	Namespaces     []string   `yaml:"namespaces"`
	UnknownPlugins []string   `yaml:"unknown_plugins"`
	Selection      []string   `yaml:"selection"`
	Nodes          []nodeYAML `yaml:"nodes"`
}

type nodeYAML struct {
	Name         string         `yaml:"name"`
	Type         string         `yaml:"type"`
	Parent       string         `yaml:"parent"`
	Attrs        map[string]any `yaml:"attrs"`
	LockedAttrs  []string       `yaml:"locked_attrs"`
	NonKeyable   []string       `yaml:"nonkeyable_attrs"`
	Locked       bool           `yaml:"locked"`
	ReadOnly     bool           `yaml:"read_only"`
	Intermediate bool           `yaml:"intermediate"`
	History      []string       `yaml:"history"`
	Connections  []string       `yaml:"connections"`
	Members      []memberYAML   `yaml:"members"`
	Mesh         *meshYAML      `yaml:"mesh"`
}

type memberYAML struct {
	Node  string `yaml:"node"`
	Faces []int  `yaml:"faces"`
}

type meshYAML struct {
	Points        [][3]float64 `yaml:"points"`
	Faces         [][]int      `yaml:"faces"`
	Tweaks        [][3]float64 `yaml:"tweaks"`
	FrozenNormals []int        `yaml:"frozen_normals"`
	HardEdges     [][2]int     `yaml:"hard_edges"`
	UVSets        []uvSetYAML  `yaml:"uv_sets"`
}

type uvSetYAML struct {
	Name   string       `yaml:"name"`
	Coords [][2]float64 `yaml:"coords"`
	Faces  [][]int      `yaml:"faces"`
}

// Parse reads a fixture file.
func Parse(path string) (*scene.Memory, Source, Diagnostics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Source{}, Diagnostics{}, fmt.Errorf("read scene: %w", err)
	}
	return ParseBytes(filepath.Clean(path), data)
}

// ParseBytes builds a scene from fixture content. Structural problems (bad
// YAML, unknown parents, duplicate names) fail; dangling references to other
// nodes are dropped with a warning.
func ParseBytes(name string, data []byte) (*scene.Memory, Source, Diagnostics, error) {
	src := Source{Path: name, Digest: Digest(data)}
	diags := Diagnostics{}

	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, src, diags, fmt.Errorf("parse scene %s: %w", name, err)
	}

	m := scene.NewMemory()
	for _, ns := range fx.Namespaces {
		m.AddNamespace(ns)
	}
	for _, p := range fx.UnknownPlugins {
		m.AddUnknownPlugin(p)
	}

	handles := make([]ir.Entity, len(fx.Nodes))
	for i, n := range fx.Nodes {
		mesh, err := n.Mesh.build()
		if err != nil {
			return nil, src, diags, fmt.Errorf("node %s: %w", n.Name, err)
		}
		e, err := m.Add(scene.NodeSpec{
			Name:         n.Name,
			Type:         n.Type,
			Parent:       ir.Entity(n.Parent),
			Attrs:        n.Attrs,
			LockedAttrs:  n.LockedAttrs,
			NonKeyable:   n.NonKeyable,
			Locked:       n.Locked,
			ReadOnly:     n.ReadOnly,
			Intermediate: n.Intermediate,
			Mesh:         mesh,
		})
		if err != nil {
			return nil, src, diags, fmt.Errorf("node #%d: %w", i, err)
		}
		handles[i] = e
	}

	// Second pass so references may point forward.
	for i, n := range fx.Nodes {
		e := handles[i]
		for _, h := range n.History {
			if err := m.AddHistory(e, ir.Entity(h)); err != nil {
				diags.warnf("%s history %s: %v", e, h, err)
			}
		}
		for _, c := range n.Connections {
			if err := m.Connect(e, ir.Entity(c)); err != nil {
				diags.warnf("%s connection %s: %v", e, c, err)
			}
		}
		for _, mem := range n.Members {
			if err := m.AddMember(e, scene.Member{Node: ir.Entity(mem.Node), Faces: mem.Faces}); err != nil {
				diags.warnf("%s member %s: %v", e, mem.Node, err)
			}
		}
	}

	var sel []ir.Entity
	for _, s := range fx.Selection {
		if !m.Exists(ir.Entity(s)) {
			diags.warnf("selection %s: not found", s)
			continue
		}
		sel = append(sel, ir.Entity(s))
	}
	if err := m.Select(sel...); err != nil {
		return nil, src, diags, fmt.Errorf("selection: %w", err)
	}

	if len(fx.Nodes) == 0 {
		diags.warnf("scene %s has no nodes", name)
	}
	return m, src, diags, nil
}

func (y *meshYAML) build() (*scene.Mesh, error) {
	if y == nil {
		return nil, nil
	}
	m := &scene.Mesh{Faces: y.Faces, HardEdges: y.HardEdges}
	for _, p := range y.Points {
		m.Points = append(m.Points, scene.Vec3(p))
	}
	if len(y.Tweaks) > 0 {
		if len(y.Tweaks) != len(y.Points) {
			return nil, fmt.Errorf("tweaks: %d entries for %d points", len(y.Tweaks), len(y.Points))
		}
		for _, t := range y.Tweaks {
			m.Tweaks = append(m.Tweaks, scene.Vec3(t))
		}
	}
	if len(y.FrozenNormals) > 0 {
		m.FrozenNormals = make([]bool, len(y.Points))
		for _, v := range y.FrozenNormals {
			if v < 0 || v >= len(y.Points) {
				return nil, fmt.Errorf("frozen_normals: vertex %d out of range", v)
			}
			m.FrozenNormals[v] = true
		}
	}
	for _, s := range y.UVSets {
		m.UVSets = append(m.UVSets, scene.UVSet{Name: s.Name, Coords: s.Coords, FaceUVs: s.Faces})
	}
	return m, nil
}

// Digest is the hex blake2b-256 of a fixture.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
