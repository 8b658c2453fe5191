package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/parser"
	"github.com/gregoiredehame/checker/internal/progress"
	"github.com/gregoiredehame/checker/internal/reporting"
	"github.com/gregoiredehame/checker/internal/rulesdsl"
	"github.com/gregoiredehame/checker/internal/runner"
	"github.com/gregoiredehame/checker/internal/scene"
	"github.com/gregoiredehame/checker/internal/shared"
	"github.com/gregoiredehame/checker/internal/storage"
)

type runFlags struct {
	scene        string
	rule         string
	category     string
	mode         string
	preset       string
	verbose      bool
	selectOutput bool
	noSave       bool
	outDir       string
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scene, "scene", "", "YAML scene fixture (default from config)")
	cmd.Flags().StringVar(&f.rule, "rule", "", "Single rule, bare or Category/name")
	cmd.Flags().StringVar(&f.category, "category", "", "Single category")
	cmd.Flags().StringVar(&f.mode, "mode", "", "scene|selection|topnode (default from config)")
	cmd.Flags().StringVar(&f.preset, "preset", "", "Rule selection for category/all runs: preset|all|none")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "Draw progress while rules run")
	cmd.Flags().BoolVar(&f.selectOutput, "select-output", false, "Print offending entities one per line instead of the report")
	cmd.Flags().BoolVar(&f.noSave, "no-save", false, "Do not record the session in the database")
	cmd.Flags().StringVar(&f.outDir, "out", "", "Report output directory (default from config)")
}

// apply overlays the flags that were set on the config.
func (f *runFlags) apply(cmd *cobra.Command, cfg *shared.Config) {
	if f.scene != "" {
		cfg.Scene.Path = f.scene
	}
	if f.mode != "" {
		cfg.Checks.Mode = f.mode
	}
	if f.preset != "" {
		cfg.Checks.Preset = f.preset
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Checks.Verbose = f.verbose
	}
	if f.outDir != "" {
		cfg.Reporting.OutDir = f.outDir
	}
}

func newRunCmd(action ir.Action) *cobra.Command {
	f := &runFlags{}
	short := "Run rules and report offending entities"
	if action == ir.ActionFix {
		short = "Run rules, fix what they find and report what remains"
	}
	cmd := &cobra.Command{
		Use:   string(action),
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)
			if f.rule != "" && f.category != "" {
				return fmt.Errorf("--rule and --category are exclusive")
			}
			sess, err := check(cmd.Context(), cfg, action, f)
			if err != nil {
				return err
			}
			for _, r := range sess.Results {
				if !r.Passed() {
					return errFindings
				}
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func isBatch() bool {
	fd := os.Stdout.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

func consoleOptions(cfg shared.Config, batch bool) reporting.ConsoleOptions {
	return reporting.ConsoleOptions{
		ShowSuccess: cfg.Reporting.ShowSuccess,
		ShowErrors:  cfg.Reporting.ShowErrors,
		ShowNodes:   cfg.Reporting.ShowNodes,
		ShowTime:    cfg.Reporting.ShowTime,
		NoColor:     batch,
	}
}

// newRunner wires a runner for one scene against the registry in h.
func newRunner(cfg shared.Config, h *runner.Holder, pack rulesdsl.Pack, s *loadedScene, sink runner.Sink, ind progress.Indicator, waivers []storage.Waiver) (*runner.Runner, error) {
	sel, err := runner.ParseSelection(cfg.Checks.Preset)
	if err != nil {
		return nil, err
	}
	batch := isBatch()
	enable := append(append([]string(nil), cfg.Checks.Enable...), pack.Enable...)
	disable := append(append([]string(nil), cfg.Checks.Disable...), pack.Disable...)
	return runner.New(nil, s.mem,
		runner.WithHolder(h),
		runner.WithSink(sink),
		runner.WithLogger(slog.Default()),
		runner.WithIndicator(ind),
		runner.WithBatch(batch),
		runner.WithSelection(sel, enable, disable),
		runner.WithWaivers(waivers),
	), nil
}

// interactiveIndicator draws progress on stderr. With a terminal on stdin,
// pressing Enter cancels the running rule and the rest of the batch.
func interactiveIndicator(cfg shared.Config) progress.Indicator {
	term := progress.NewTerminal(os.Stderr)
	if cfg.Checks.Verbose && !isBatch() && isatty.IsTerminal(os.Stdin.Fd()) {
		term.CancelOn(os.Stdin)
		colorYellow.Fprintln(os.Stderr, "Press Enter to cancel")
	}
	return term
}

// loadedScene is a parsed fixture and where it came from.
type loadedScene struct {
	mem *scene.Memory
	src parser.Source
}

func loadScene(path string) (*loadedScene, error) {
	if path == "" {
		return nil, fmt.Errorf("no scene: pass --scene or set scene.path in config")
	}
	m, src, diags, err := parser.Parse(path)
	if err != nil {
		return nil, err
	}
	if len(diags.Warnings) > 0 {
		slog.Warn("scene warnings", "scene", path, "warnings", diags.Warnings)
	}
	return &loadedScene{mem: m, src: src}, nil
}

func invoke(ctx context.Context, r *runner.Runner, action ir.Action, f *runFlags, mode ir.SelectionMode, verbose bool) ([]ir.RunResult, error) {
	switch {
	case f.rule != "" && action == ir.ActionFix:
		res, err := r.FixRule(ctx, f.rule, mode, verbose)
		return []ir.RunResult{res}, err
	case f.rule != "":
		res, err := r.RunRule(ctx, f.rule, mode, verbose)
		return []ir.RunResult{res}, err
	case f.category != "" && action == ir.ActionFix:
		return r.FixCategory(ctx, f.category, mode, verbose)
	case f.category != "":
		return r.RunCategory(ctx, f.category, mode, verbose)
	case action == ir.ActionFix:
		return r.FixAll(ctx, mode, verbose)
	default:
		return r.RunAll(ctx, mode, verbose)
	}
}

// check runs one session end to end: load, run or fix, print, persist.
func check(ctx context.Context, cfg shared.Config, action ir.Action, f *runFlags) (*ir.Session, error) {
	if _, err := ir.ParseMode(cfg.Checks.Mode); err != nil {
		return nil, err
	}
	s, err := loadScene(cfg.Scene.Path)
	if err != nil {
		return nil, err
	}
	reg, pack, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	waivers, err := db.ListWaivers(true)
	if err != nil {
		return nil, fmt.Errorf("load waivers: %w", err)
	}

	var sink runner.Sink = reporting.NewConsole(os.Stdout, consoleOptions(cfg, isBatch()))
	collect := &reporting.Collector{}
	if f.selectOutput {
		sink = collect
	}
	r, err := newRunner(cfg, runner.NewHolder(reg), pack, s, sink, interactiveIndicator(cfg), waivers)
	if err != nil {
		return nil, err
	}

	return execute(ctx, cfg, db, r, s, action, f, collect)
}

// execute runs one session on a wired runner, prints the selected entities
// when asked, then records it.
func execute(ctx context.Context, cfg shared.Config, db *storage.DB, r *runner.Runner, s *loadedScene, action ir.Action, f *runFlags, collect *reporting.Collector) (*ir.Session, error) {
	mode, err := ir.ParseMode(cfg.Checks.Mode)
	if err != nil {
		return nil, err
	}
	sess := &ir.Session{
		ID:           fmt.Sprintf("session-%d", time.Now().UnixMilli()),
		StartedAt:    time.Now().UTC(),
		Source:       s.src.Path,
		SourceDigest: s.src.Digest,
		Mode:         mode,
		Action:       action,
		Version:      ir.Version,
	}
	sess.Results, err = invoke(ctx, r, action, f, mode, cfg.Checks.Verbose)
	if err != nil {
		return nil, err
	}

	if f.selectOutput && collect != nil {
		for _, e := range collect.Entries {
			for _, x := range e.Findings {
				fmt.Println(x)
			}
		}
	}
	if f.noSave {
		return sess, nil
	}
	return sess, persist(db, cfg, sess)
}

func persist(db *storage.DB, cfg shared.Config, sess *ir.Session) error {
	if err := db.SaveSession(sess); err != nil {
		return fmt.Errorf("db save session: %w", err)
	}
	if sess.Action == ir.ActionFix {
		fixed := 0
		for _, r := range sess.Results {
			fixed += max(len(r.Initial)-len(r.Findings), 0)
		}
		meta := map[string]any{"rules": len(sess.Results), "fixed": fixed, "remaining": sess.FindingCount(), "scene": sess.Source}
		if err := db.LogAudit(currentUser(), "scene.fix", sess.ID, meta); err != nil {
			slog.Warn("audit log failed", "err", err)
		}
	}

	var jsonPath, htmlPath string
	var err error
	if cfg.Reporting.JSON {
		if jsonPath, err = reporting.WriteJSON(sess.ID, cfg.Reporting.OutDir, sess); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
	}
	if cfg.Reporting.HTML {
		if htmlPath, err = reporting.WriteHTML(sess.ID, cfg.Reporting.OutDir, sess); err != nil {
			return fmt.Errorf("write html: %w", err)
		}
	}
	slog.Info("session recorded",
		"session", sess.ID,
		"rules", len(sess.Results),
		"findings", sess.FindingCount(),
		"json", jsonPath,
		"html", htmlPath,
		"db", filepath.Clean(cfg.Database.DSN),
	)
	return nil
}
