package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/gregoiredehame/checker/internal/ir"
	"github.com/gregoiredehame/checker/internal/progress"
	"github.com/gregoiredehame/checker/internal/reporting"
	"github.com/gregoiredehame/checker/internal/runner"
)

var watchFlags = &runFlags{}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run rules whenever the scene or a rule pack changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		watchFlags.apply(cmd, &cfg)
		f := watchFlags
		ctx := cmd.Context()

		if cfg.Scene.Path == "" {
			return fmt.Errorf("watch: no scene: pass --scene or set scene.path in config")
		}
		reg, pack, err := buildRegistry(cfg)
		if err != nil {
			return err
		}
		holder := runner.NewHolder(reg)

		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("watch init failed: %w", err)
		}
		defer watcher.Close()

		// directories, since editors save by rename
		packs := map[string]bool{}
		dirs := map[string]bool{filepath.Dir(cfg.Scene.Path): true}
		for _, p := range cfg.Checks.RulePacks {
			packs[filepath.Clean(p)] = true
			dirs[filepath.Dir(p)] = true
		}
		for d := range dirs {
			if err := watcher.Add(d); err != nil {
				return fmt.Errorf("watch %s: %w", d, err)
			}
		}

		console := reporting.NewConsole(os.Stdout, consoleOptions(cfg, isBatch()))
		trigger := func() {
			s, err := loadScene(cfg.Scene.Path)
			if err != nil {
				colorRed.Fprintf(os.Stderr, "scene: %v\n", err)
				return
			}
			waivers, err := db.ListWaivers(true)
			if err != nil {
				slog.Warn("load waivers", "err", err)
			}
			r, err := newRunner(cfg, holder, pack, s, console, progress.NewTerminal(os.Stderr), waivers)
			if err != nil {
				colorRed.Fprintf(os.Stderr, "runner: %v\n", err)
				return
			}
			colorCyan.Printf("--- %s %s\n", time.Now().Format("15:04:05"), cfg.Scene.Path)
			if _, err := execute(ctx, cfg, db, r, s, ir.ActionRun, f, nil); err != nil {
				colorRed.Fprintf(os.Stderr, "run: %v\n", err)
			}
		}
		reload := func() {
			next, nextPack, err := buildRegistry(cfg)
			if err != nil {
				colorRed.Fprintf(os.Stderr, "rule packs: %v (keeping previous rules)\n", err)
				return
			}
			holder.Swap(next)
			pack = nextPack
			slog.Info("rules reloaded", "rules", next.Len())
		}

		trigger()

		const debounce = 300 * time.Millisecond
		timer := time.NewTimer(debounce)
		timer.Stop()
		sceneDirty, packDirty := false, false
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				name := filepath.Clean(ev.Name)
				switch {
				case packs[name]:
					packDirty = true
				case name == filepath.Clean(cfg.Scene.Path):
					sceneDirty = true
				default:
					continue
				}
				timer.Reset(debounce)
			case <-timer.C:
				if packDirty {
					reload()
				}
				if packDirty || sceneDirty {
					trigger()
				}
				sceneDirty, packDirty = false, false
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				colorRed.Fprintf(os.Stderr, "watch error: %v\n", err)
			}
		}
	},
}

func init() {
	watchFlags.bind(watchCmd)
}
