package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gregoiredehame/checker/internal/reporting"
)

var (
	reportSession string
	reportOut     string
	reportList    int

	diffBase string
	diffHead string
	diffOut  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write JSON/HTML for a recorded session (latest by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		if reportOut == "" {
			reportOut = cfg.Reporting.OutDir
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if reportList > 0 {
			rows, err := db.ListSessions(reportList, 0)
			if err != nil {
				return err
			}
			for _, r := range rows {
				fmt.Printf("%s  %s  %-4s %-9s %4d findings  %s\n",
					r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Action, r.Mode, r.Findings, r.Source)
			}
			return nil
		}

		id := reportSession
		if id == "" {
			latest, ok, err := db.LatestSession()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("report: no sessions recorded yet")
			}
			id = latest
		}
		sess, err := db.LoadSession(id)
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		if err := os.MkdirAll(reportOut, 0o755); err != nil {
			return fmt.Errorf("cannot create out dir: %w", err)
		}
		jsonPath, err := reporting.WriteJSON(sess.ID, reportOut, &sess)
		if err != nil {
			return err
		}
		htmlPath, err := reporting.WriteHTML(sess.ID, reportOut, &sess)
		if err != nil {
			return err
		}
		colorGreen.Println("Report OK")
		fmt.Printf("  Session: %s\n  JSON: %s\n  HTML: %s\n", sess.ID, jsonPath, htmlPath)
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare the findings of two recorded sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		if diffOut == "" {
			diffOut = cfg.Reporting.OutDir
		}
		if diffBase == "" || diffHead == "" {
			return fmt.Errorf("diff: --base and --head are required")
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		bs, err := db.LoadSession(diffBase)
		if err != nil {
			return fmt.Errorf("load base session: %w", err)
		}
		hs, err := db.LoadSession(diffHead)
		if err != nil {
			return fmt.Errorf("load head session: %w", err)
		}
		path, err := reporting.WriteDiffJSON(diffBase, diffHead, diffOut, &bs, &hs)
		if err != nil {
			return err
		}
		colorGreen.Println("Diff OK")
		fmt.Printf("  %s\n", path)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportSession, "session", "", "Session ID (default: latest)")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "Output directory")
	reportCmd.Flags().IntVar(&reportList, "list", 0, "List the N most recent sessions instead")

	diffCmd.Flags().StringVar(&diffBase, "base", "", "Base session ID")
	diffCmd.Flags().StringVar(&diffHead, "head", "", "Head session ID")
	diffCmd.Flags().StringVar(&diffOut, "out", "", "Output directory")
}
