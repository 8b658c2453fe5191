// Package rulesdsl compiles YAML rule packs into enumerate-and-filter rules.
package rulesdsl

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gregoiredehame/checker/internal/rules"
	"github.com/gregoiredehame/checker/internal/scene"
)

type dslPack struct {
	Rules  []dslRule `yaml:"rules"`
	Preset struct {
		Enable  []string `yaml:"enable"`
		Disable []string `yaml:"disable"`
	} `yaml:"preset"`
}

type dslRule struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Summary  string `yaml:"summary"`
	Default  bool   `yaml:"default"`
	Fix      string `yaml:"fix"` // delete|none

	Where struct {
		Kinds        []string `yaml:"kinds"`         // exact type, "prefix*" or a @family
		NameRegex    string   `yaml:"name_regex"`    // regex on the short name (case-insensitive)
		NameContains string   `yaml:"name_contains"` // substring of the short name
		Deny         []string `yaml:"deny"`          // short names never reported
	} `yaml:"where"`
}

// Pack is a compiled rule pack. Enable and Disable adjust the preset rule
// selection the same way the config lists do.
type Pack struct {
	Path    string
	Rules   []rules.Rule
	Enable  []string
	Disable []string
}

// DefaultCategory holds pack rules that name no category.
const DefaultCategory = "Custom"

var families = map[string]scene.Kind{
	"@any": scene.KindAny, "@mesh": scene.KindMesh, "@transform": scene.KindTransform,
	"@shape": scene.KindShape, "@constraint": scene.KindConstraint, "@animcurve": scene.KindAnimCurve,
	"@deformer": scene.KindDeformer, "@shader": scene.KindShader,
}

func Load(path string) (Pack, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pack{}, fmt.Errorf("read rules pack: %w", err)
	}
	p, err := Parse(b)
	if err != nil {
		return Pack{}, fmt.Errorf("%s: %w", path, err)
	}
	p.Path = path
	return p, nil
}

// LoadAll compiles every pack and concatenates rules and preset lists in order.
func LoadAll(paths []string) (Pack, error) {
	var all Pack
	for _, path := range paths {
		p, err := Load(path)
		if err != nil {
			return Pack{}, err
		}
		all.Rules = append(all.Rules, p.Rules...)
		all.Enable = append(all.Enable, p.Enable...)
		all.Disable = append(all.Disable, p.Disable...)
	}
	return all, nil
}

func Parse(b []byte) (Pack, error) {
	var pack dslPack
	if err := yaml.Unmarshal(b, &pack); err != nil {
		return Pack{}, fmt.Errorf("parse yaml: %w", err)
	}
	out := Pack{Enable: pack.Preset.Enable, Disable: pack.Preset.Disable}
	for _, r := range pack.Rules {
		cr, err := compile(r)
		if err != nil {
			return Pack{}, fmt.Errorf("compile rule %q: %w", r.Name, err)
		}
		out.Rules = append(out.Rules, cr)
	}
	return out, nil
}

func compile(r dslRule) (rules.Rule, error) {
	if r.Name == "" || len(r.Where.Kinds) == 0 {
		return rules.Rule{}, fmt.Errorf("missing required fields (name/where.kinds)")
	}
	sw := rules.Sweep{NameContains: r.Where.NameContains, Deny: r.Where.Deny}
	for _, k := range r.Where.Kinds {
		k = strings.TrimSpace(k)
		if strings.HasPrefix(k, "@") {
			fam, ok := families[strings.ToLower(k)]
			if !ok {
				return rules.Rule{}, fmt.Errorf("unknown kind family %s", k)
			}
			sw.Kinds = append(sw.Kinds, fam)
			continue
		}
		if k == "" || k == "*" {
			return rules.Rule{}, fmt.Errorf("empty kind")
		}
		sw.Kinds = append(sw.Kinds, scene.Kind(k))
	}
	if r.Where.NameRegex != "" {
		re, err := regexp.Compile("(?i)" + r.Where.NameRegex)
		if err != nil {
			return rules.Rule{}, fmt.Errorf("name_regex: %w", err)
		}
		sw.NameMatch = re
	}
	rule := rules.Rule{
		Name:     r.Name,
		Category: r.Category,
		Summary:  r.Summary,
		Default:  r.Default,
		Detect:   sw.Detector(),
	}
	if rule.Category == "" {
		rule.Category = DefaultCategory
	}
	switch strings.ToLower(strings.TrimSpace(r.Fix)) {
	case "", "none":
	case "delete":
		rule.Fix = rules.DeleteFix
	default:
		return rules.Rule{}, fmt.Errorf("unknown fix %q (want delete or none)", r.Fix)
	}
	return rule, nil
}
