package shared

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gregoiredehame/checker/internal/rules"
)

type Config struct {
	Database struct {
		Driver string `yaml:"driver"` // "sqlite" (default)
		DSN    string `yaml:"dsn"`    // "./checker.db"
	} `yaml:"database"`

	Scene struct {
		Path string `yaml:"path"` // YAML scene fixture
	} `yaml:"scene"`

	Checks struct {
		Mode      string   `yaml:"mode"`       // "scene"|"selection"|"topnode"
		Verbose   bool     `yaml:"verbose"`    // draw progress while running
		Preset    string   `yaml:"preset"`     // "preset"|"all"|"none"
		Enable    []string `yaml:"enable"`     // rule names, bare or "Category/name"
		Disable   []string `yaml:"disable"`    // applied after enable
		RulePacks []string `yaml:"rule_packs"` // YAML rule packs
	} `yaml:"checks"`

	Tolerances struct {
		AreaEpsilon          float64 `yaml:"area_epsilon"`
		LengthEpsilon        float64 `yaml:"length_epsilon"`
		TweakEpsilon         float64 `yaml:"tweak_epsilon"`
		TransformEpsilon     float64 `yaml:"transform_epsilon"`
		PoleEdges            int     `yaml:"pole_edges"`
		FallbackShadingGroup string  `yaml:"fallback_shading_group"`
		ModelTagAttribute    string  `yaml:"model_tag_attribute"`
	} `yaml:"tolerances"`

	Reporting struct {
		OutDir      string `yaml:"out_dir"` // "./reports"
		JSON        bool   `yaml:"json"`
		HTML        bool   `yaml:"html"`
		ShowSuccess bool   `yaml:"show_success"`
		ShowErrors  bool   `yaml:"show_errors"`
		ShowNodes   bool   `yaml:"show_nodes"`
		ShowTime    bool   `yaml:"show_time"`
	} `yaml:"reporting"`

	Logging struct {
		Format string `yaml:"format"` // "json"|"text"
		Level  string `yaml:"level"`  // "info"|"debug"|"warn"|"error"
	} `yaml:"logging"`
}

func DefaultConfig() Config {
	var c Config
	c.Database.Driver = "sqlite"
	c.Database.DSN = "./checker.db"
	c.Checks.Mode = "scene"
	c.Checks.Preset = "preset"
	d := rules.DefaultTolerances()
	c.Tolerances.AreaEpsilon = d.AreaEpsilon
	c.Tolerances.LengthEpsilon = d.LengthEpsilon
	c.Tolerances.TweakEpsilon = d.TweakEpsilon
	c.Tolerances.TransformEpsilon = d.TransformEpsilon
	c.Tolerances.PoleEdges = d.PoleEdges
	c.Tolerances.FallbackShadingGroup = d.FallbackShadingGroup
	c.Tolerances.ModelTagAttribute = d.ModelTagAttribute
	c.Reporting.OutDir = "./reports"
	c.Reporting.JSON = true
	c.Reporting.HTML = true
	c.Reporting.ShowSuccess = true
	c.Reporting.ShowErrors = true
	c.Reporting.ShowNodes = true
	c.Reporting.ShowTime = true
	c.Logging.Format = "text"
	c.Logging.Level = "info"
	return c
}

// LoadConfig layers the YAML file (optional) over the defaults, then a .env
// file in the working directory, then CHECKER_* environment variables.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return c, fmt.Errorf("read config: %w", err)
		}
	}
	// .env never overrides variables already set
	_ = godotenv.Load()

	// Env overrides (simple, explicit)
	if v := os.Getenv("CHECKER_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("CHECKER_SCENE"); v != "" {
		c.Scene.Path = v
	}
	if v := os.Getenv("CHECKER_MODE"); v != "" {
		c.Checks.Mode = v
	}
	if v := os.Getenv("CHECKER_PRESET"); v != "" {
		c.Checks.Preset = v
	}
	if v := os.Getenv("CHECKER_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Checks.Verbose = b
		}
	}
	if v := os.Getenv("CHECKER_RULE_PACKS"); v != "" {
		c.Checks.RulePacks = splitList(v)
	}
	if v := os.Getenv("CHECKER_DISABLE"); v != "" {
		c.Checks.Disable = splitList(v)
	}
	if v := os.Getenv("CHECKER_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CHECKER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CHECKER_OUT_DIR"); v != "" {
		c.Reporting.OutDir = v
	}
	return c, nil
}

// RuleTolerances converts the tolerances section for the rule catalog.
func (c Config) RuleTolerances() rules.Tolerances {
	t := c.Tolerances
	return rules.Tolerances{
		AreaEpsilon:          t.AreaEpsilon,
		LengthEpsilon:        t.LengthEpsilon,
		TweakEpsilon:         t.TweakEpsilon,
		TransformEpsilon:     t.TransformEpsilon,
		PoleEdges:            t.PoleEdges,
		FallbackShadingGroup: t.FallbackShadingGroup,
		ModelTagAttribute:    t.ModelTagAttribute,
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
