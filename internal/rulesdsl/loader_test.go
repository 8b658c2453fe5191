package rulesdsl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/parser"
	"github.com/gregoiredehame/checker/internal/rules"
)

const pack = `
preset:
  enable: [triangles]
  disable: [Objects/model_tag]
rules:
  - name: temp_nodes
    category: Pipeline
    summary: Scratch nodes left by artists.
    default: true
    fix: delete
    where:
      kinds: ["@any"]
      name_regex: "^tmp_"
      deny: [tmp_keep]
  - name: lights
    where:
      kinds: [pointLight, "area*"]
`

const sceneDoc = `
nodes:
  - {name: tmp_grp, type: transform}
  - {name: TMP_cache, type: cacheFile}
  - {name: tmp_keep, type: transform}
  - {name: hero, type: transform}
  - {name: key, type: pointLight}
  - {name: fill, type: areaLight}
`

func TestParseCompilesRules(t *testing.T) {
	p, err := Parse([]byte(pack))
	require.NoError(t, err)
	require.Len(t, p.Rules, 2)
	assert.Equal(t, []string{"triangles"}, p.Enable)
	assert.Equal(t, []string{"Objects/model_tag"}, p.Disable)

	tmp, lights := p.Rules[0], p.Rules[1]
	assert.Equal(t, "Pipeline", tmp.Category)
	assert.True(t, tmp.Default)
	assert.True(t, tmp.Fixable())
	assert.Equal(t, DefaultCategory, lights.Category)
	assert.False(t, lights.Fixable())

	s, _, _, err := parser.ParseBytes("scene.yaml", []byte(sceneDoc))
	require.NoError(t, err)

	found, err := tmp.Detect.Detect(s, ir.ModeScene)
	require.NoError(t, err)
	assert.Equal(t, []ir.Entity{"|tmp_grp", "TMP_cache"}, found)

	for _, e := range found {
		require.NoError(t, tmp.Fix(s, e))
	}
	found, err = tmp.Detect.Detect(s, ir.ModeScene)
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = lights.Detect.Detect(s, ir.ModeScene)
	require.NoError(t, err)
	assert.Equal(t, []ir.Entity{"key", "fill"}, found)
}

func TestParseRejectsBadRules(t *testing.T) {
	cases := map[string]string{
		"no name":      "rules: [{where: {kinds: [mesh]}}]",
		"no kinds":     "rules: [{name: a}]",
		"bad family":   "rules: [{name: a, where: {kinds: ['@nope']}}]",
		"bad regex":    "rules: [{name: a, where: {kinds: [mesh], name_regex: '('}}]",
		"unknown fix":  "rules: [{name: a, fix: rename, where: {kinds: [mesh]}}]",
		"broken yaml":  "rules: [",
		"wildcard kind": "rules: [{name: a, where: {kinds: ['*']}}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadAllFeedsCatalog(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(a, []byte(pack), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("rules:\n  - {name: bake_sets, category: Pipeline, where: {kinds: [bakeSet]}}\n"), 0o644))

	p, err := LoadAll([]string{a, b})
	require.NoError(t, err)
	require.Len(t, p.Rules, 3)

	reg, err := rules.Catalog(rules.DefaultTolerances(), p.Rules...)
	require.NoError(t, err)
	names, err := reg.Rules("pipeline")
	require.NoError(t, err)
	assert.Equal(t, []string{"temp_nodes", "bake_sets"}, names)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
