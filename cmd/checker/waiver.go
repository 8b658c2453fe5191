package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	waiverRule    string
	waiverPattern string
	waiverReason  string
	waiverFor     time.Duration
	waiverAll     bool
)

var waiverCmd = &cobra.Command{
	Use:   "waiver",
	Short: "Manage waivers that suppress known findings",
}

var waiverAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Waive findings of a rule whose entity contains --pattern",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		if waiverRule == "" || waiverReason == "" {
			return fmt.Errorf("waiver add: --rule and --reason are required")
		}
		reg, _, err := buildRegistry(cfg)
		if err != nil {
			return err
		}
		if waiverRule != "*" {
			rule, err := reg.Lookup(waiverRule)
			if err != nil {
				return err
			}
			waiverRule = rule.Qualified()
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		expires := time.Now().Add(waiverFor)
		id, err := db.CreateWaiver(waiverRule, waiverPattern, waiverReason, currentUser(), expires)
		if err != nil {
			return fmt.Errorf("create waiver: %w", err)
		}
		meta := map[string]any{"rule": waiverRule, "pattern": waiverPattern, "expires_at": expires.UTC()}
		if err := db.LogAudit(currentUser(), "waiver.create", strconv.FormatInt(id, 10), meta); err != nil {
			return err
		}
		colorGreen.Printf("Waiver %d created", id)
		fmt.Printf(" (%s until %s)\n", waiverRule, expires.Format(time.RFC3339))
		return nil
	},
}

var waiverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active waivers (--all for every waiver)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ws, err := db.ListWaivers(!waiverAll)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, w := range ws {
			state := colorGreen.Sprint("active")
			switch {
			case w.RevokedAt != nil:
				state = colorRed.Sprint("revoked")
			case !w.Active(now):
				state = colorYellow.Sprint("expired")
			}
			fmt.Printf("%4d  %-8s %-32s %-20q %s  by %s: %s\n",
				w.ID, state, w.Rule, w.Pattern, w.ExpiresAt.Format("2006-01-02"), w.CreatedBy, w.Reason)
		}
		return nil
	},
}

var waiverRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke a waiver",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("waiver id: %w", err)
		}
		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.RevokeWaiver(id, currentUser()); err != nil {
			return err
		}
		colorGreen.Printf("Waiver %d revoked\n", id)
		return nil
	},
}

func init() {
	waiverAddCmd.Flags().StringVar(&waiverRule, "rule", "", "Rule, bare or Category/name, or * for every rule")
	waiverAddCmd.Flags().StringVar(&waiverPattern, "pattern", "", "Substring of the entity to waive (empty: all)")
	waiverAddCmd.Flags().StringVar(&waiverReason, "reason", "", "Why the finding is acceptable")
	waiverAddCmd.Flags().DurationVar(&waiverFor, "for", 30*24*time.Hour, "How long the waiver lasts")
	waiverListCmd.Flags().BoolVar(&waiverAll, "all", false, "Include expired and revoked waivers")

	waiverCmd.AddCommand(waiverAddCmd, waiverListCmd, waiverRevokeCmd)
}
