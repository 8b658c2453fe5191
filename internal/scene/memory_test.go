package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregoiredehame/checker/internal/ir"
)

func quad() *Mesh {
	return &Mesh{
		Points: []Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Faces:  [][]int{{0, 1, 2, 3}},
	}
}

func buildScene(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	mustAdd := func(spec NodeSpec) ir.Entity {
		e, err := m.Add(spec)
		require.NoError(t, err)
		return e
	}
	mustAdd(NodeSpec{Name: "grp", Type: "transform"})
	mustAdd(NodeSpec{Name: "pCube1", Type: "transform", Parent: "grp"})
	mustAdd(NodeSpec{Name: "pCubeShape1", Type: "mesh", Parent: "|grp|pCube1", Mesh: quad()})
	mustAdd(NodeSpec{Name: "empty", Type: "transform"})
	mustAdd(NodeSpec{Name: "pCube1", Type: "transform"})
	mustAdd(NodeSpec{Name: "lambert2SG", Type: "shadingEngine"})
	mustAdd(NodeSpec{Name: "ref", Type: "reference", Locked: true, ReadOnly: true})
	return m
}

func TestEnumerateKindsAndModes(t *testing.T) {
	m := buildScene(t)

	meshes, err := m.Enumerate(KindMesh, ir.ModeScene)
	require.NoError(t, err)
	assert.Equal(t, []ir.Entity{"|grp|pCube1"}, meshes)

	groups, err := m.Enumerate(KindTransform, ir.ModeScene)
	require.NoError(t, err)
	assert.Equal(t, []ir.Entity{"|grp", "|empty", "|pCube1"}, groups)

	require.NoError(t, m.Select("|empty"))
	sel, err := m.Enumerate(KindMesh, ir.ModeSelection)
	require.NoError(t, err)
	assert.Empty(t, sel)

	require.NoError(t, m.Select("grp"))
	top, err := m.Enumerate("transform", ir.ModeTopNode)
	require.NoError(t, err)
	assert.Equal(t, []ir.Entity{"|grp", "|grp|pCube1"}, top)

	// dependency nodes ignore the mode
	sgs, err := m.Enumerate("shadingEngine", ir.ModeSelection)
	require.NoError(t, err)
	assert.Equal(t, []ir.Entity{"lambert2SG"}, sgs)
}

func TestResolveNotUnique(t *testing.T) {
	m := buildScene(t)
	assert.False(t, m.Exists("pCube1"))
	assert.True(t, m.Exists("grp|pCube1"))
	_, err := m.TypeOf("pCube1")
	assert.ErrorIs(t, err, ErrEntityUnavailable)
}

func TestDAGNameCountFollowsRenames(t *testing.T) {
	m := buildScene(t)
	assert.Equal(t, 2, m.DAGNameCount("pCube1"))
	assert.Equal(t, 0, m.DAGNameCount("lambert2SG"))
	assert.Equal(t, 0, m.DAGNameCount("missing"))

	_, err := m.Rename("|pCube1", "pCube2")
	require.NoError(t, err)
	assert.Equal(t, 1, m.DAGNameCount("pCube1"))
	assert.Equal(t, 1, m.DAGNameCount("pCube2"))
}

func TestDeleteRefusesLockedAndRemovesSubtree(t *testing.T) {
	m := buildScene(t)
	assert.ErrorIs(t, m.Delete("ref"), ErrMutationRefused)
	assert.ErrorIs(t, m.SetNodeLocked("ref", false), ErrMutationRefused)

	require.NoError(t, m.Delete("|grp"))
	assert.False(t, m.Exists("|grp|pCube1"))
	assert.False(t, m.Exists("pCubeShape1"))
	assert.ErrorIs(t, m.Delete("|grp"), ErrEntityUnavailable)
}

func TestAttributesAndLocks(t *testing.T) {
	m := buildScene(t)
	v, err := m.GetAttribute("|empty", "sx")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, err = m.GetAttribute("|empty", "nope")
	assert.ErrorIs(t, err, ErrNoAttribute)

	require.NoError(t, m.SetAttributeInfo("|empty", "tx", AttrInfo{Locked: true}))
	assert.ErrorIs(t, m.SetAttribute("|empty", "translateX", 3.0), ErrMutationRefused)

	require.NoError(t, m.SetAttributeInfo("|empty", "tx", AttrInfo{Keyable: true}))
	require.NoError(t, m.SetAttribute("|empty", "translateX", 3.0))
	v, err = m.GetAttribute("|empty", "tx")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestRename(t *testing.T) {
	m := buildScene(t)
	e, err := m.Rename("|pCube1", "pCube2")
	require.NoError(t, err)
	assert.Equal(t, ir.Entity("|pCube2"), e)
	assert.True(t, m.Exists("pCube1"))

	_, err = m.Rename("|pCube2", "empty")
	assert.ErrorIs(t, err, ErrMutationRefused)
}

func TestNamespaceRemovalStripsPrefix(t *testing.T) {
	m := NewMemory()
	_, err := m.Add(NodeSpec{Name: "char:body", Type: "transform"})
	require.NoError(t, err)
	m.AddNamespace("char")
	m.AddNamespace("char:sub")

	require.NoError(t, m.RemoveNamespace("char"))
	ns, err := m.Namespaces()
	require.NoError(t, err)
	assert.Equal(t, []string{"sub"}, ns)
	assert.True(t, m.Exists("|body"))
	assert.ErrorIs(t, m.RemoveNamespace("char"), ErrEntityUnavailable)
}

func TestTopologyCachedPerRevision(t *testing.T) {
	m := buildScene(t)
	a, err := m.Topology("|grp|pCube1")
	require.NoError(t, err)
	b, err := m.Topology("pCubeShape1")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Len(t, a.Edges, 4)

	mesh, err := m.Mesh("|grp|pCube1")
	require.NoError(t, err)
	mesh.Faces = append(mesh.Faces, []int{0, 2, 3})
	require.NoError(t, m.SetMesh("|grp|pCube1", mesh))

	c, err := m.Topology("|grp|pCube1")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Len(t, c.Edges, 5)
	assert.True(t, m.Exists("|grp|pCube1.f[1]"))
	assert.False(t, m.Exists("|grp|pCube1.f[2]"))
}

func TestMeshIsCopied(t *testing.T) {
	m := buildScene(t)
	mesh, err := m.Mesh("|grp|pCube1")
	require.NoError(t, err)
	mesh.Points[0] = Vec3{9, 9, 9}
	again, err := m.Mesh("|grp|pCube1")
	require.NoError(t, err)
	assert.Equal(t, Vec3{0, 0, 0}, again.Points[0])
}

func TestShadingMembership(t *testing.T) {
	m := buildScene(t)
	require.NoError(t, m.AddMember("lambert2SG", Member{Node: "pCubeShape1"}))
	sgs, err := m.ShadingEngines("|grp|pCube1")
	require.NoError(t, err)
	assert.Equal(t, []ir.Entity{"lambert2SG"}, sgs)

	require.NoError(t, m.SetMembers("lambert2SG", []Member{{Node: "pCubeShape1", Faces: []int{0}}}))
	mem, err := m.Members("lambert2SG")
	require.NoError(t, err)
	require.Len(t, mem, 1)
	assert.Equal(t, []int{0}, mem[0].Faces)
	assert.Equal(t, ir.Entity("|grp|pCube1|pCubeShape1"), mem[0].Node)
}

func TestClearHistoryDeletesOrphans(t *testing.T) {
	m := buildScene(t)
	_, err := m.Add(NodeSpec{Name: "polyCube1", Type: "polyCube"})
	require.NoError(t, err)
	_, err = m.Add(NodeSpec{Name: "groupId1", Type: "groupId"})
	require.NoError(t, err)
	require.NoError(t, m.AddHistory("pCubeShape1", "polyCube1"))
	require.NoError(t, m.AddHistory("pCubeShape1", "groupId1"))

	require.NoError(t, m.ClearHistory("|grp|pCube1"))
	h, err := m.History("|grp|pCube1")
	require.NoError(t, err)
	assert.Equal(t, []ir.Entity{"groupId1"}, h)
	assert.False(t, m.Exists("polyCube1"))
}

func TestSplitComponent(t *testing.T) {
	e := Component("|grp|pCube1", "f", 12)
	node, kind, idx, ok := SplitComponent(e)
	require.True(t, ok)
	assert.Equal(t, ir.Entity("|grp|pCube1"), node)
	assert.Equal(t, "f", kind)
	assert.Equal(t, 12, idx)

	_, _, _, ok = SplitComponent("|grp|pCube1")
	assert.False(t, ok)
	_, _, _, ok = SplitComponent("a.b[x]")
	assert.False(t, ok)
}

func TestBuildTopologyBoundary(t *testing.T) {
	mesh := &Mesh{
		Points: []Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Faces:  [][]int{{0, 1, 2}, {0, 2, 3}},
	}
	topo := BuildTopology(mesh)
	assert.Len(t, topo.Edges, 5)
	diag, ok := topo.EdgeIndex(2, 0)
	require.True(t, ok)
	assert.False(t, topo.IsBoundary(diag))
	assert.Len(t, topo.VertexEdges[0], 3)
	assert.InDelta(t, 0.5, mesh.FaceArea(0), 1e-12)
}
