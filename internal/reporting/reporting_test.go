package reporting

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregoiredehame/checker/internal/ir"
)

func session(id string, results ...ir.RunResult) *ir.Session {
	return &ir.Session{
		ID:        id,
		StartedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Source:    "scenes/<hero>.yaml",
		Mode:      ir.ModeScene,
		Action:    ir.ActionRun,
		Results:   results,
	}
}

func result(category, rule string, findings ...ir.Entity) ir.RunResult {
	if findings == nil {
		findings = []ir.Entity{}
	}
	return ir.RunResult{Rule: rule, Category: category, Display: ir.DisplayName(rule), Action: ir.ActionRun, Findings: findings}
}

func TestConsoleLines(t *testing.T) {
	var b strings.Builder
	opts := DefaultConsoleOptions()
	opts.NoColor = true
	c := NewConsole(&b, opts)

	c.Emit("References", []ir.Entity{}, 1500*time.Millisecond, ir.StatusSuccess)
	c.Emit("Empty Groups", []ir.Entity{"|grp|empty", "|grp2"}, 0, ir.StatusFailure)
	c.Emit("Ngons", []ir.Entity{"|a.f[0]"}, 0, ir.StatusCancelled)

	want := "[ SUCCESS ] References (1.500000s)\n" +
		"[ ERROR ] Empty Groups (0.000000s)\n" +
		" - '|grp|empty'\n" +
		" - '|grp2'\n" +
		"[ CANCELLED ] Ngons (0.000000s)\n" +
		" - '|a.f[0]'\n"
	assert.Equal(t, want, b.String())
}

func TestConsolePreferences(t *testing.T) {
	var b strings.Builder
	c := NewConsole(&b, ConsoleOptions{ShowErrors: true, NoColor: true})

	c.Emit("References", []ir.Entity{}, time.Second, ir.StatusSuccess)
	c.Emit("Empty Groups", []ir.Entity{"|grp|empty"}, time.Second, ir.StatusFailure)
	assert.Equal(t, "[ ERROR ] Empty Groups\n", b.String())

	b.Reset()
	c = NewConsole(&b, ConsoleOptions{ShowSuccess: true, NoColor: true})
	c.Emit("Empty Groups", []ir.Entity{"|grp|empty"}, time.Second, ir.StatusFailure)
	assert.Empty(t, b.String())
}

func TestCollectorAndMulti(t *testing.T) {
	a, b := &Collector{}, &Collector{}
	sink := Multi(a, b)
	found := []ir.Entity{"x"}
	sink.Emit("One", found, time.Millisecond, ir.StatusFailure)
	sink.Emit("Two", []ir.Entity{}, time.Millisecond, ir.StatusSuccess)
	found[0] = "mutated"

	require.Len(t, a.Entries, 2)
	assert.Equal(t, a.Entries, b.Entries)
	assert.Equal(t, []ir.Entity{"x"}, a.Entries[0].Findings)
	require.Len(t, a.Failed(), 1)
	assert.Equal(t, "One", a.Failed()[0].Display)
}

func TestWriteJSONAndHTML(t *testing.T) {
	dir := t.TempDir()
	fixed := result("Objects", "empty_groups")
	fixed.Action = ir.ActionFix
	fixed.Initial = []ir.Entity{"|grp|empty"}
	broken := result("Scene", "references", "propRN")
	broken.Failures = []ir.EntityFailure{{Entity: "propRN", Stage: "fix", Kind: ir.FailureRefused, Message: "read-only"}}
	s := session("s-1", fixed, broken)

	jp, err := WriteJSON(s.ID, dir, s)
	require.NoError(t, err)
	raw, err := os.ReadFile(jp)
	require.NoError(t, err)
	var back ir.Session
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "s-1", back.ID)
	require.Len(t, back.Results, 2)
	assert.Equal(t, []ir.Entity{"propRN"}, back.Results[1].Findings)
	assert.Contains(t, string(raw), `"mode": "scene"`)

	hp, err := WriteHTML(s.ID, dir, s)
	require.NoError(t, err)
	page, err := os.ReadFile(hp)
	require.NoError(t, err)
	body := string(page)
	assert.Contains(t, body, "Findings: 1")
	assert.Contains(t, body, "Passed: 1 &nbsp; Failed: 1")
	assert.Contains(t, body, "scenes/&lt;hero&gt;.yaml")
	assert.Contains(t, body, "<td class='mono'>propRN</td>")
	assert.Contains(t, body, "Entity Failures")
	assert.Contains(t, body, "mutation_refused")
}

func TestDiffSessions(t *testing.T) {
	base := session("a",
		result("Objects", "empty_groups", "|grp|empty", "|grp2"),
		result("Scene", "references"),
	)
	head := session("b",
		result("objects", "EMPTY_GROUPS", "|grp2", "|grp3"),
		result("Scene", "references", "propRN"),
		result("UV", "empty_uv"),
	)

	d := diffSessions("a", "b", base, head)
	assert.Equal(t, []diffFinding{
		{Category: "objects", Rule: "EMPTY_GROUPS", Entity: "|grp3"},
		{Category: "Scene", Rule: "references", Entity: "propRN"},
	}, d.New)
	assert.Equal(t, []diffFinding{{Category: "Objects", Rule: "empty_groups", Entity: "|grp|empty"}}, d.Removed)
	assert.Equal(t, []diffChanged{{Key: "SCENE/REFERENCES", Base: "success", Head: "failure"}}, d.Changed)
	assert.Equal(t, diffSummary{NewCount: 2, RemovedCount: 1, ChangedCount: 1}, d.Summary)

	path, err := WriteDiffJSON("a", "b", t.TempDir(), base, head)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "diff_a__b.json"))
}
