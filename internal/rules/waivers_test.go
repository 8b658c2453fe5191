package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/storage"
)

func TestApplyWaivers(t *testing.T) {
	in := []ir.Entity{"|hero|body.f[2]", "|prop|crate.f[0]", "|hero|head.f[9]"}
	cases := []struct {
		name    string
		waivers []storage.Waiver
		keep    []ir.Entity
		waived  int
	}{
		{"none", nil, in, 0},
		{"other rule", []storage.Waiver{{Rule: "triangles", Pattern: "hero"}}, in, 0},
		{"qualified rule and pattern", []storage.Waiver{{Rule: "Topology/NGONS", Pattern: "|HERO|"}},
			[]ir.Entity{"|prop|crate.f[0]"}, 2},
		{"wildcard rule", []storage.Waiver{{Rule: "*", Pattern: "crate"}},
			[]ir.Entity{"|hero|body.f[2]", "|hero|head.f[9]"}, 1},
		{"empty pattern waives every finding", []storage.Waiver{{Rule: "ngons"}}, []ir.Entity{}, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			keep, waived := ApplyWaivers("ngons", in, c.waivers)
			assert.Equal(t, c.keep, keep)
			assert.Equal(t, c.waived, waived)
		})
	}
}
