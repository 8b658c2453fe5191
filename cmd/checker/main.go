package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/rules"
	"github.com/gregoiredehame/checker/internal/rulesdsl"
	"github.com/gregoiredehame/checker/internal/shared"
	"github.com/gregoiredehame/checker/internal/storage"
)

var (
	configPath string
	dbPath     string

	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow)
	colorCyan   = color.New(color.FgCyan)
)

// errFindings makes the process exit 1 without an error line.
var errFindings = errors.New("findings reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	switch {
	case err == nil:
	case errors.Is(err, errFindings):
		os.Exit(1)
	default:
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "checker",
	Short:         "Scene validation and auto-remediation",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `checker runs a catalog of scene hygiene rules (Scene, Objects, Topology,
UV, Shaders) against a YAML scene, reports offending nodes and components,
and fixes them where a rule knows how.

Examples:
  checker run --scene shot.yaml
  checker run --scene shot.yaml --category Topology --mode selection
  checker fix --scene shot.yaml --rule empty_groups
  checker run --scene shot.yaml --rule ngons --select-output | xargs ...`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (optional)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default from config)")

	rootCmd.AddCommand(newRunCmd(ir.ActionRun), newRunCmd(ir.ActionFix))
	rootCmd.AddCommand(listCmd, reportCmd, diffCmd, watchCmd, waiverCmd, versionCmd)
}

// setup loads config, installs the logger and applies the --db flag.
// precedence: flags > env > config > defaults
func setup() (shared.Config, error) {
	cfg, err := shared.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)
	if dbPath != "" {
		cfg.Database.DSN = dbPath
	}
	return cfg, nil
}

// buildRegistry compiles the configured rule packs on top of the catalog.
func buildRegistry(cfg shared.Config) (*rules.Registry, rulesdsl.Pack, error) {
	pack, err := rulesdsl.LoadAll(cfg.Checks.RulePacks)
	if err != nil {
		return nil, pack, err
	}
	reg, err := rules.Catalog(cfg.RuleTolerances(), pack.Rules...)
	if err != nil {
		return nil, pack, err
	}
	if len(pack.Rules) > 0 {
		slog.Info("rule packs loaded", "packs", cfg.Checks.RulePacks, "rules", len(pack.Rules))
	}
	return reg, pack, nil
}

func openDB(cfg shared.Config) (*storage.DB, error) {
	db, err := storage.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.CreateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("db schema: %w", err)
	}
	return db, nil
}

func currentUser() string {
	for _, k := range []string{"CHECKER_USER", "USER", "USERNAME"} {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return "unknown"
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("checker IR:", ir.Version)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the rule catalog by category",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		reg, _, err := buildRegistry(cfg)
		if err != nil {
			return err
		}
		for _, cat := range reg.Categories() {
			colorCyan.Println(cat)
			rs, _ := reg.Category(cat)
			for _, r := range rs {
				preset, fix := " ", " "
				if r.Default {
					preset = "*"
				}
				if r.Fixable() {
					fix = "F"
				}
				fmt.Printf("  %s%s %-24s %s\n", preset, fix, r.Name, r.Summary)
			}
		}
		fmt.Println("\n* preset   F fixable")
		return nil
	},
}
