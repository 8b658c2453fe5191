package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/parser"
	"github.com/gregoiredehame/checker/internal/scene"
)

const quad = `{points: [[0,0,0],[1,0,0],[1,1,0],[0,1,0]], faces: [[0,1,2,3]]}`

func load(t *testing.T, doc string) *scene.Memory {
	t.Helper()
	m, _, diags, err := parser.ParseBytes("case.yaml", []byte(doc))
	require.NoError(t, err)
	require.Empty(t, diags.Warnings)
	return m
}

func catalog(t *testing.T) *Registry {
	t.Helper()
	reg, err := Catalog(DefaultTolerances())
	require.NoError(t, err)
	return reg
}

type ruleCase struct {
	rule  string
	doc   string
	want  []ir.Entity
	after func(t *testing.T, s *scene.Memory)
}

// runCases detects, checks the findings, then for fixable rules applies the
// fix to every finding and expects a clean re-detection.
func runCases(t *testing.T, cases []ruleCase) {
	t.Helper()
	reg := catalog(t)
	for _, c := range cases {
		t.Run(c.rule, func(t *testing.T) {
			s := load(t, c.doc)
			rule, err := reg.Lookup(c.rule)
			require.NoError(t, err)

			got, err := rule.Detect.Detect(s, ir.ModeScene)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
			if !rule.Fixable() {
				return
			}
			for _, e := range got {
				require.NoError(t, rule.Fix(s, e), "fix %s", e)
			}
			left, err := rule.Detect.Detect(s, ir.ModeScene)
			require.NoError(t, err)
			assert.Empty(t, left)
			if c.after != nil {
				c.after(t, s)
			}
		})
	}
}

func TestCatalogLayout(t *testing.T) {
	reg := catalog(t)
	assert.Equal(t, []string{"Scene", "Objects", "Topology", "UV", "Shaders"}, reg.Categories())

	sizes := map[string]int{"Scene": 19, "Objects": 19, "Topology": 12, "UV": 9, "Shaders": 3}
	for cat, n := range sizes {
		names, err := reg.Rules(cat)
		require.NoError(t, err)
		assert.Len(t, names, n, cat)
	}

	// every bare name resolves without qualification
	for _, r := range reg.List() {
		got, err := reg.Lookup(r.Name)
		require.NoError(t, err)
		assert.Equal(t, r.Qualified(), got.Qualified())
	}

	for _, name := range []string{"freeze_transformations", "triangles", "poles", "flipped_uv_faces",
		"overlapping_uv_faces", "overlapping_uv_meshes", "assigned_lambert"} {
		def, err := reg.IsDefault(name)
		require.NoError(t, err)
		assert.False(t, def, name)
	}
	for _, name := range []string{"intermediate_objects", "triangles", "poles", "empty_uv", "multiple_udims"} {
		_, ok, err := reg.Remediator(name)
		require.NoError(t, err)
		assert.False(t, ok, name)
	}
}

func TestCatalogKeepsExtraRulesAfterBuiltins(t *testing.T) {
	extra := Rule{Name: "bake_sets", Category: "Pipeline", Detect: Sweep{Kinds: kinds("bakeSet")}.Detector(), Fix: DeleteFix}
	reg, err := Catalog(Tolerances{}, extra)
	require.NoError(t, err)
	assert.Equal(t, "Pipeline", reg.Categories()[5])

	_, err = Catalog(Tolerances{}, Rule{Name: "ngons", Category: "Topology", Detect: extra.Detect})
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestSceneRules(t *testing.T) {
	runCases(t, []ruleCase{
		{
			rule: "references",
			doc: `
nodes:
  - {name: propRN, type: reference}
  - {name: sharedReferenceNode, type: reference}
`,
			want: []ir.Entity{"propRN"},
		},
		{
			rule: "namespaces",
			doc: `
namespaces: [UI, shared, prop, "prop:sub"]
nodes:
  - {name: "prop:sub:box", type: transform}
`,
			want: []ir.Entity{"prop:sub", "prop"},
			after: func(t *testing.T, s *scene.Memory) {
				ns, err := s.Namespaces()
				require.NoError(t, err)
				assert.Equal(t, []string{"UI", "shared"}, ns)
				assert.True(t, s.Exists("|box"))
			},
		},
		{
			rule: "unknown_plugins",
			doc:  "unknown_plugins: [oldPlugin]\nnodes: [{name: persp, type: transform}]\n",
			want: []ir.Entity{"oldPlugin"},
		},
		{
			rule: "unused_shaders",
			doc: `
nodes:
  - {name: initialShadingGroup, type: shadingEngine, connections: [lambert1]}
  - {name: lambert1, type: lambert}
  - {name: blinn1SG, type: shadingEngine, connections: [blinn1]}
  - {name: blinn1, type: blinn}
  - {name: shared1, type: blinn, connections: [blinn1SG, blinn2SG]}
  - {name: blinn2SG, type: shadingEngine, members: [{node: plane}]}
  - {name: preview, type: shadingEngine, members: [{node: shaderBallGeomShape1}]}
  - {name: shaderBall, type: transform}
  - {name: shaderBallGeomShape1, type: mesh, parent: shaderBall}
  - {name: plane, type: transform}
`,
			want: []ir.Entity{"blinn1SG", "preview"},
			after: func(t *testing.T, s *scene.Memory) {
				assert.False(t, s.Exists("blinn1"))
				assert.True(t, s.Exists("shared1"))
				assert.True(t, s.Exists("lambert1"))
			},
		},
		{
			rule: "unused_nodes",
			doc: `
nodes:
  - {name: place2dTexture1, type: place2dTexture}
  - {name: place2dTexture2, type: place2dTexture, connections: [file1]}
  - {name: file1, type: file}
`,
			want: []ir.Entity{"place2dTexture1"},
		},
		{
			rule: "animation_layers",
			doc: `
nodes:
  - {name: BaseAnimation, type: animLayer}
  - {name: AnimLayer1, type: animLayer}
`,
			want: []ir.Entity{"AnimLayer1"},
		},
		{
			rule: "time_editor_nodes",
			doc: `
nodes:
  - {name: timeEditorTracks, type: timeEditorTracks}
  - {name: timeEditor, type: timeEditor}
  - {name: clip, type: animClip}
`,
			want: []ir.Entity{"timeEditorTracks", "timeEditor"},
		},
		{
			rule: "hypershade_nodes",
			doc: `
nodes:
  - {name: hyperShadePrimaryNodeEditorSavedTabsInfo, type: nodeGraphEditorBookmarks}
  - {name: MayaNodeEditorSavedTabsInfo, type: nodeGraphEditorInfo}
`,
			want: []ir.Entity{"hyperShadePrimaryNodeEditorSavedTabsInfo"},
		},
		{
			rule: "xgen_nodes",
			doc: `
nodes:
  - {name: description1, type: xgmDescription}
  - {name: polyCube1, type: polyCube}
`,
			want: []ir.Entity{"description1"},
		},
		{
			rule: "cameras",
			doc: `
nodes:
  - {name: persp, type: transform}
  - {name: perspShape, type: camera, parent: persp}
  - {name: shotCam, type: transform}
  - {name: shotCamShape, type: camera, parent: shotCam}
`,
			want: []ir.Entity{"|shotCam"},
			after: func(t *testing.T, s *scene.Memory) {
				assert.False(t, s.Exists("shotCamShape"))
				assert.True(t, s.Exists("|persp|perspShape"))
			},
		},
	})
}

func TestObjectRules(t *testing.T) {
	runCases(t, []ruleCase{
		{
			rule: "construction_history",
			doc: `
nodes:
  - {name: plane, type: transform}
  - {name: planeShape, type: mesh, parent: plane, history: [polyPlane1, groupId1], mesh: ` + quad + `}
  - {name: polyPlane1, type: polyPlane}
  - {name: groupId1, type: groupId}
`,
			want: []ir.Entity{"|plane|planeShape"},
			after: func(t *testing.T, s *scene.Memory) {
				assert.False(t, s.Exists("polyPlane1"))
				assert.True(t, s.Exists("groupId1"))
			},
		},
		{
			rule: "poly_display",
			doc: `
nodes:
  - {name: plane, type: transform}
  - {name: planeShape, type: mesh, parent: plane, attrs: {displayNormal: true, backfaceCulling: 3}, mesh: ` + quad + `}
`,
			want: []ir.Entity{"|plane|planeShape"},
			after: func(t *testing.T, s *scene.Memory) {
				v, err := s.GetAttribute("planeShape", "backfaceCulling")
				require.NoError(t, err)
				assert.Equal(t, 0, v)
				v, err = s.GetAttribute("planeShape", "displayNormal")
				require.NoError(t, err)
				assert.Equal(t, false, v)
			},
		},
		{
			rule: "intermediate_objects",
			doc: `
nodes:
  - {name: plane, type: transform}
  - {name: planeShape, type: mesh, parent: plane, mesh: ` + quad + `}
  - {name: planeShapeOrig, type: mesh, parent: plane, intermediate: true, mesh: ` + quad + `}
  - {name: clean, type: transform}
  - {name: cleanShape, type: mesh, parent: clean, mesh: ` + quad + `}
`,
			want: []ir.Entity{"|plane"},
		},
		{
			rule: "freeze_transformations",
			doc: `
nodes:
  - {name: plane, type: transform, attrs: {translateX: 2, scaleY: 3}}
  - {name: planeShape, type: mesh, parent: plane, mesh: ` + quad + `}
  - {name: still, type: transform}
`,
			want: []ir.Entity{"|plane"},
			after: func(t *testing.T, s *scene.Memory) {
				m, err := s.Mesh("|plane")
				require.NoError(t, err)
				assert.InDeltaSlice(t, []float64{3, 3, 0}, m.Points[2][:], 1e-9)
				v, err := s.GetAttribute("|plane", "scaleY")
				require.NoError(t, err)
				assert.Equal(t, 1.0, v)
			},
		},
		{
			rule: "world_pivot",
			doc: `
nodes:
  - {name: grp, type: transform, attrs: {rotatePivotY: 1.5}}
  - {name: other, type: transform}
`,
			want: []ir.Entity{"|grp"},
		},
		{
			rule: "locked_transformations",
			doc: `
nodes:
  - {name: plane, type: transform, nonkeyable_attrs: [rotateZ]}
  - {name: planeShape, type: mesh, parent: plane, mesh: ` + quad + `}
  - {name: scaled, type: transform, locked_attrs: [scaleX]}
`,
			want: []ir.Entity{"|plane"},
			after: func(t *testing.T, s *scene.Memory) {
				info, err := s.AttributeInfo("|plane", "rotateZ")
				require.NoError(t, err)
				assert.Equal(t, scene.AttrInfo{Keyable: true, ChannelBox: true}, info)
			},
		},
		{
			rule: "locked_normals",
			doc: `
nodes:
  - {name: plane, type: transform}
  - {name: planeShape, type: mesh, parent: plane, mesh: {points: [[0,0,0],[1,0,0],[1,1,0],[0,1,0]], faces: [[0,1,2,3]], frozen_normals: [1]}}
`,
			want: []ir.Entity{"|plane|planeShape"},
		},
		{
			rule: "vertex_transforms",
			doc: `
nodes:
  - {name: plane, type: transform}
  - {name: planeShape, type: mesh, parent: plane, mesh: {points: [[0,0,0],[1,0,0],[1,1,0],[0,1,0]], faces: [[0,1,2,3]], tweaks: [[0,0,0],[0,0,0],[0,0.5,0],[0,0,0]]}}
`,
			want: []ir.Entity{"|plane"},
			after: func(t *testing.T, s *scene.Memory) {
				m, err := s.Mesh("|plane")
				require.NoError(t, err)
				assert.Equal(t, scene.Vec3{1, 1.5, 0}, m.Points[2])
				assert.Empty(t, m.Tweaks)
			},
		},
		{
			rule: "duplicated_names",
			doc: `
nodes:
  - {name: a, type: transform}
  - {name: b, type: transform}
  - {name: box, type: transform, parent: a}
  - {name: box, type: transform, parent: b}
`,
			want: []ir.Entity{"|a|box", "|b|box"},
			after: func(t *testing.T, s *scene.Memory) {
				assert.True(t, s.Exists("|a|box__1"))
				assert.True(t, s.Exists("|b|box"))
			},
		},
		{
			rule: "extra_shapes",
			doc: `
nodes:
  - {name: initialShadingGroup, type: shadingEngine, members: [{node: rockShape}]}
  - {name: rock, type: transform}
  - {name: rockShape, type: mesh, parent: rock, mesh: ` + quad + `}
  - {name: rockShapeOrig, type: mesh, parent: rock, intermediate: true, mesh: ` + quad + `}
  - {name: skinned, type: transform}
  - {name: skinnedShape, type: mesh, parent: skinned, history: [skinCluster1], mesh: ` + quad + `}
  - {name: skinnedShapeOrig, type: mesh, parent: skinned, intermediate: true, mesh: ` + quad + `}
  - {name: skinCluster1, type: skinCluster}
`,
			want: []ir.Entity{"|rock|rockShapeOrig"},
			after: func(t *testing.T, s *scene.Memory) {
				assert.True(t, s.Exists("|skinned|skinnedShapeOrig"))
			},
		},
		{
			rule: "shapes_names",
			doc: `
nodes:
  - {name: rock, type: transform}
  - {name: polySurfaceShape3, type: mesh, parent: rock, mesh: ` + quad + `}
  - {name: tree, type: transform}
  - {name: treeShape, type: mesh, parent: tree, mesh: ` + quad + `}
`,
			want: []ir.Entity{"|rock|polySurfaceShape3"},
			after: func(t *testing.T, s *scene.Memory) {
				assert.True(t, s.Exists("|rock|rockShape"))
			},
		},
		{
			rule: "locked_transforms",
			doc: `
nodes:
  - {name: plane, type: transform, locked_attrs: [scaleX]}
  - {name: hidden, type: transform, nonkeyable_attrs: [translateX]}
`,
			want: []ir.Entity{"|plane"},
			after: func(t *testing.T, s *scene.Memory) {
				info, err := s.AttributeInfo("|plane", "scaleX")
				require.NoError(t, err)
				assert.False(t, info.Locked)
			},
		},
		{
			rule: "empty_groups",
			doc: `
nodes:
  - {name: grp, type: transform}
  - {name: holder, type: transform}
  - {name: plane, type: transform, parent: holder}
  - {name: planeShape, type: mesh, parent: holder|plane, mesh: ` + quad + `}
`,
			want: []ir.Entity{"|grp"},
		},
		{
			rule: "constraints",
			doc: `
nodes:
  - {name: plane, type: transform, connections: [plane_parentConstraint1]}
  - {name: plane_parentConstraint1, type: parentConstraint}
`,
			want: []ir.Entity{"|plane_parentConstraint1"},
		},
		{
			rule: "deformers",
			doc: `
nodes:
  - {name: plane, type: transform}
  - {name: planeShape, type: mesh, parent: plane, history: [skinCluster1, polyPlane1], mesh: ` + quad + `}
  - {name: skinCluster1, type: skinCluster}
  - {name: polyPlane1, type: polyPlane}
`,
			want: []ir.Entity{"skinCluster1"},
		},
		{
			rule: "animation_curves",
			doc: `
nodes:
  - {name: plane, type: transform, connections: [plane_translateX]}
  - {name: plane_translateX, type: animCurveTL}
`,
			want: []ir.Entity{"plane_translateX"},
		},
		{
			rule: "enable_overrides",
			doc: `
nodes:
  - {name: plane, type: transform, attrs: {overrideEnabled: true, overrideDisplayType: 2}}
  - {name: planeShape, type: mesh, parent: plane, mesh: ` + quad + `}
`,
			want: []ir.Entity{"|plane"},
		},
		{
			rule: "smooth_mesh_preview",
			doc: `
nodes:
  - {name: plane, type: transform}
  - {name: planeShape, type: mesh, parent: plane, attrs: {displaySmoothMesh: 2}, mesh: ` + quad + `}
`,
			want: []ir.Entity{"|plane"},
		},
		{
			rule: "model_tag",
			doc: `
nodes:
  - {name: plane, type: transform}
  - {name: planeShape, type: mesh, parent: plane, mesh: ` + quad + `}
  - {name: tagged, type: transform}
  - {name: taggedShape, type: mesh, parent: tagged, attrs: {mdl_path: "|tagged"}, mesh: ` + quad + `}
`,
			want: []ir.Entity{"|plane"},
			after: func(t *testing.T, s *scene.Memory) {
				v, err := s.GetAttribute("|plane|planeShape", "mdl_path")
				require.NoError(t, err)
				assert.Equal(t, "|plane", v)
			},
		},
	})
}

func TestTopologyRules(t *testing.T) {
	grid := `{points: [[0,0,0],[1,0,0],[2,0,0],[0,1,0],[1,1,0],[2,1,0]], faces: [[0,1,4,3],[1,2,5,4]], hard_edges: [[1,4],[0,1]]}`
	mesh := func(m string) string {
		return `
nodes:
  - {name: plane, type: transform}
  - {name: planeShape, type: mesh, parent: plane, mesh: ` + m + `}
`
	}
	runCases(t, []ruleCase{
		{
			rule: "triangles",
			doc:  mesh(`{points: [[0,0,0],[1,0,0],[1,1,0],[0,1,0]], faces: [[0,1,2],[0,2,3]]}`),
			want: []ir.Entity{"|plane.f[0]", "|plane.f[1]"},
		},
		{
			rule: "ngons",
			doc:  mesh(`{points: [[0,0,0],[2,0,0],[2,1,0],[1,2,0],[0,1,0]], faces: [[0,1,2,3,4]]}`),
			want: []ir.Entity{"|plane.f[0]"},
		},
		{
			rule: "lamina_faces",
			doc:  mesh(`{points: [[0,0,0],[1,0,0],[1,1,0],[0,1,0]], faces: [[0,1,2,3],[3,2,1,0]]}`),
			want: []ir.Entity{"|plane.f[0]", "|plane.f[1]"},
		},
		{
			rule: "zero_area_faces",
			doc:  mesh(`{points: [[0,0,0],[1,0,0],[2,0,0],[1,1,0]], faces: [[0,1,2],[0,2,3]]}`),
			want: []ir.Entity{"|plane.f[0]"},
		},
		{
			rule: "non_manifold_edges",
			doc:  mesh(`{points: [[0,0,0],[1,0,0],[0,1,0],[0,0,1],[0,-1,0]], faces: [[0,1,2],[1,0,3],[0,1,4]]}`),
			want: []ir.Entity{"|plane.e[0]"},
		},
		{
			rule: "zero_length_edges",
			doc:  mesh(`{points: [[0,0,0],[1,0,0],[1,0,0],[0,1,0]], faces: [[0,1,2,3]]}`),
			want: []ir.Entity{"|plane.e[1]"},
		},
		{
			rule: "hard_edges",
			doc:  mesh(grid),
			want: []ir.Entity{"|plane.e[1]"},
		},
		{
			rule: "open_edges",
			doc:  mesh(grid),
			want: []ir.Entity{"|plane.e[0]", "|plane.e[2]", "|plane.e[3]", "|plane.e[4]", "|plane.e[5]", "|plane.e[6]"},
		},
		{
			rule: "poles",
			doc: mesh(`{points: [[0,0,0],[1,0,0],[0.5,0.87,0],[-0.5,0.87,0],[-1,0,0],[-0.5,-0.87,0],[0.5,-0.87,0]], faces: [[0,1,2],[0,2,3],[0,3,4],[0,4,5],[0,5,6],[0,6,1]]}`),
			want: []ir.Entity{"|plane.vtx[0]"},
		},
		{
			rule: "starlike_faces",
			doc: mesh(`{points: [[0,0,0],[3,0,0],[3,1,0],[1,1,0],[1,2,0],[3,2,0],[3,3,0],[0,3,0],[4,0,0],[5,0,0],[5,1,0],[4,1,0]], faces: [[0,1,2,3,4,5,6,7],[8,9,10,11]]}`),
			want: []ir.Entity{"|plane.f[0]"},
		},
		{
			rule: "invalid_edges",
			doc:  mesh(`{points: [[0,0,0],[1,0,0],[1,1,0],[0,1,0]], faces: [[0,1,1,2,3]]}`),
			want: []ir.Entity{"|plane.e[1]"},
			after: func(t *testing.T, s *scene.Memory) {
				m, err := s.Mesh("|plane")
				require.NoError(t, err)
				assert.Equal(t, [][]int{{0, 1, 2, 3}}, m.Faces)
			},
		},
		{
			rule: "invalid_vertices",
			doc:  mesh(`{points: [[0,0,0],[1,0,0],[9,9,9],[1,1,0],[0,1,0]], faces: [[0,1,3,4]]}`),
			want: []ir.Entity{"|plane.vtx[2]"},
			after: func(t *testing.T, s *scene.Memory) {
				m, err := s.Mesh("|plane")
				require.NoError(t, err)
				assert.Len(t, m.Points, 4)
				assert.Equal(t, [][]int{{0, 1, 2, 3}}, m.Faces)
			},
		},
	})
}

func TestUVRules(t *testing.T) {
	mapped := func(coords, faces string) string {
		return `
nodes:
  - {name: plane, type: transform}
  - name: planeShape
    type: mesh
    parent: plane
    mesh:
      points: [[0,0,0],[1,0,0],[1,1,0],[0,1,0]]
      faces: [[0,1,2,3]]
      uv_sets: [{name: map1, coords: ` + coords + `, faces: ` + faces + `}]
`
	}
	unit := `[[0,0],[1,0],[1,1],[0,1]]`
	runCases(t, []ruleCase{
		{
			rule: "empty_uv",
			doc:  mapped(unit, `[]`),
			want: []ir.Entity{"|plane"},
		},
		{
			rule: "negative_uv",
			doc:  mapped(`[[-0.5,0],[1,0],[1,1],[0,1]]`, `[[0,1,2,3]]`),
			want: []ir.Entity{"|plane.f[0]"},
		},
		{
			rule: "multiple_udims",
			doc:  mapped(`[[0.5,0],[1.5,0],[1.5,1],[0.5,1]]`, `[[0,1,2,3]]`),
			want: []ir.Entity{"|plane.f[0]"},
		},
		{
			rule: "flipped_uv_faces",
			doc:  mapped(`[[0,0],[0,1],[1,1],[1,0]]`, `[[0,1,2,3]]`),
			want: []ir.Entity{"|plane.f[0]"},
		},
		{
			rule: "missing_uv_sets",
			doc: `
nodes:
  - {name: plane, type: transform}
  - {name: planeShape, type: mesh, parent: plane, mesh: ` + quad + `}
`,
			want: []ir.Entity{"|plane"},
		},
		{
			rule: "multiple_uv_sets",
			doc: `
nodes:
  - {name: plane, type: transform}
  - name: planeShape
    type: mesh
    parent: plane
    mesh:
      points: [[0,0,0],[1,0,0],[1,1,0],[0,1,0]]
      faces: [[0,1,2,3]]
      uv_sets:
        - {name: map1, coords: ` + unit + `, faces: [[0,1,2,3]]}
        - {name: lightmap, coords: ` + unit + `, faces: [[0,1,2,3]]}
`,
			want: []ir.Entity{"|plane"},
		},
		{
			rule: "non_manifold_uvs",
			doc: `
nodes:
  - {name: plane, type: transform}
  - name: planeShape
    type: mesh
    parent: plane
    mesh:
      points: [[0,0,0],[1,0,0],[2,0,0],[0,1,0],[1,1,0],[2,1,0]]
      faces: [[0,1,4,3],[1,2,5,4]]
      uv_sets: [{name: map1, coords: ` + unit + `, faces: [[0,1,2,3],[1,0,3,2]]}]
`,
			want: []ir.Entity{"|plane.map[0]", "|plane.map[3]"},
			after: func(t *testing.T, s *scene.Memory) {
				m, err := s.Mesh("|plane")
				require.NoError(t, err)
				assert.Len(t, m.UVSets[0].Coords, 6)
			},
		},
		{
			rule: "non_manifold_uvs",
			doc: `
nodes:
  - {name: plane, type: transform}
  - name: planeShape
    type: mesh
    parent: plane
    mesh:
      points: [[0,0,0],[1,0,0],[2,0,0],[0,1,0],[1,1,0],[2,1,0]]
      faces: [[0,1,4,3],[1,2,5,4]]
      uv_sets: [{name: map1, coords: ` + unit + `, faces: [[0,1,2,3],[0,9,9,3]]}]
`,
			want: []ir.Entity{"|plane.map[0]", "|plane.map[3]"},
			after: func(t *testing.T, s *scene.Memory) {
				m, err := s.Mesh("|plane")
				require.NoError(t, err)
				assert.Len(t, m.UVSets[0].Coords, 6)
				assert.Equal(t, []int{4, 9, 9, 5}, m.UVSets[0].FaceUVs[1])
			},
		},
		{
			rule: "overlapping_uv_faces",
			doc: `
nodes:
  - {name: plane, type: transform}
  - name: planeShape
    type: mesh
    parent: plane
    mesh:
      points: [[0,0,0],[1,0,0],[2,0,0],[0,1,0],[1,1,0],[2,1,0]]
      faces: [[0,1,4,3],[1,2,5,4]]
      uv_sets: [{name: map1, coords: ` + unit + `, faces: [[0,1,2,3],[0,1,2,3]]}]
  - {name: laid, type: transform}
  - name: laidShape
    type: mesh
    parent: laid
    mesh:
      points: [[0,0,0],[1,0,0],[2,0,0],[0,1,0],[1,1,0],[2,1,0]]
      faces: [[0,1,4,3],[1,2,5,4]]
      uv_sets: [{name: map1, coords: [[0,0],[0.5,0],[1,0],[0,1],[0.5,1],[1,1]], faces: [[0,1,4,3],[1,2,5,4]]}]
`,
			want: []ir.Entity{"|plane.f[0]", "|plane.f[1]"},
		},
		{
			rule: "overlapping_uv_meshes",
			doc: `
nodes:
  - {name: blinn1SG, type: shadingEngine, members: [{node: aShape}, {node: bShape}]}
  - {name: lambert2SG, type: shadingEngine, members: [{node: cShape}]}
  - {name: a, type: transform}
  - {name: aShape, type: mesh, parent: a, mesh: {points: [[0,0,0],[1,0,0],[1,1,0],[0,1,0]], faces: [[0,1,2,3]], uv_sets: [{name: map1, coords: ` + unit + `, faces: [[0,1,2,3]]}]}}
  - {name: b, type: transform}
  - {name: bShape, type: mesh, parent: b, mesh: {points: [[0,0,0],[1,0,0],[1,1,0],[0,1,0]], faces: [[0,1,2,3]], uv_sets: [{name: map1, coords: [[0.5,0.5],[1.5,0.5],[1.5,1.5],[0.5,1.5]], faces: [[0,1,2,3]]}]}}
  - {name: c, type: transform}
  - {name: cShape, type: mesh, parent: c, mesh: {points: [[0,0,0],[1,0,0],[1,1,0],[0,1,0]], faces: [[0,1,2,3]], uv_sets: [{name: map1, coords: ` + unit + `, faces: [[0,1,2,3]]}]}}
`,
			want: []ir.Entity{"|a.f[0]", "|b.f[0]"},
		},
	})
}

func TestSpansTiles(t *testing.T) {
	assert.False(t, spansTiles([][2]float64{{1, 0}, {2, 0}, {2, 1}, {1, 1}}))
	assert.False(t, spansTiles([][2]float64{{-0.5, 0.2}, {0, 0.2}, {0, 0.8}}))
	assert.True(t, spansTiles([][2]float64{{0.2, 0.9}, {0.4, 1.2}, {0.3, 0.95}}))
}

func TestTrianglesTouchingAlongAnEdgeDoNotOverlap(t *testing.T) {
	a := uvTri{{0, 0}, {1, 0}, {0, 1}}
	b := uvTri{{1, 0}, {1, 1}, {0, 1}}
	c := uvTri{{0.2, 0.2}, {2, 0.2}, {0.2, 2}}
	assert.False(t, trisOverlap(a, b))
	assert.True(t, trisOverlap(a, c))
}

func TestShaderRules(t *testing.T) {
	runCases(t, []ruleCase{
		{
			rule: "assigned_lambert",
			doc: `
nodes:
  - {name: initialShadingGroup, type: shadingEngine, members: [{node: keepShape}]}
  - {name: blinn1SG, type: shadingEngine, members: [{node: planeShape, faces: [0]}]}
  - {name: plane, type: transform}
  - {name: planeShape, type: mesh, parent: plane, mesh: ` + quad + `}
  - {name: keep, type: transform}
  - {name: keepShape, type: mesh, parent: keep, mesh: ` + quad + `}
`,
			want: []ir.Entity{"|plane"},
			after: func(t *testing.T, s *scene.Memory) {
				sgs, err := s.ShadingEngines("|plane")
				require.NoError(t, err)
				assert.Equal(t, []ir.Entity{"initialShadingGroup"}, sgs)
				members, err := s.Members("blinn1SG")
				require.NoError(t, err)
				assert.Empty(t, members)
			},
		},
		{
			rule: "assigned_faces_shaders",
			doc: `
nodes:
  - {name: initialShadingGroup, type: shadingEngine, members: [{node: planeShape}, {node: keepShape, faces: [0]}]}
  - {name: plane, type: transform}
  - {name: planeShape, type: mesh, parent: plane, mesh: {points: [[0,0,0],[1,0,0],[2,0,0],[0,1,0],[1,1,0],[2,1,0]], faces: [[0,1,4,3],[1,2,5,4]]}}
  - {name: keep, type: transform}
  - {name: keepShape, type: mesh, parent: keep, mesh: ` + quad + `}
`,
			want: []ir.Entity{"|plane"},
			after: func(t *testing.T, s *scene.Memory) {
				members, err := s.Members("initialShadingGroup")
				require.NoError(t, err)
				require.Len(t, members, 2)
				assert.Equal(t, []int{0, 1}, members[0].Faces)
			},
		},
		{
			rule: "non_shaders_assigned",
			doc: `
nodes:
  - {name: initialShadingGroup, type: shadingEngine}
  - {name: plane, type: transform}
  - {name: planeShape, type: mesh, parent: plane, mesh: ` + quad + `}
`,
			want: []ir.Entity{"|plane"},
			after: func(t *testing.T, s *scene.Memory) {
				members, err := s.Members("initialShadingGroup")
				require.NoError(t, err)
				assert.Equal(t, []scene.Member{{Node: "|plane|planeShape"}}, members)
			},
		},
	})
}
