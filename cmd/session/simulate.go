package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/session-core/internal/infrastructure/scenario"
)

func newSimulateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "simulate <scenario-file>",
		Short: "Replay a scripted scenario against a fresh session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full report as JSON")
	return cmd
}

func runSimulate(cmd *cobra.Command, path string, asJSON bool) error {
	scn, err := scenario.LoadFile(path)
	if err != nil {
		return err
	}

	return withDeps(func(d *Deps) error {
		runner := scenario.NewRunner(d.Sessions)
		report, err := runner.Run(cmd.Context(), scn)
		if err != nil {
			return fmt.Errorf("running scenario %q: %w", scn.Name, err)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Printf("Scenario %q finished\n", scn.Name)
		fmt.Printf("  session:        %s\n", report.SessionID)
		fmt.Printf("  turns played:   %d (%d applied, %d held)\n", report.TurnsPlayed, report.TurnsApplied, report.TurnsHeld)
		fmt.Printf("  open conflicts: %d\n", report.OpenConflicts)
		fmt.Printf("  sync progress:  %.2f (synchronized: %v)\n", report.Health.Progress, report.Health.IsSynchronized)
		if !report.Validation.Valid {
			fmt.Printf("  validation:     %d issues\n", len(report.Validation.Issues))
			for _, rec := range report.Validation.Recommendations {
				fmt.Printf("    - %s\n", rec)
			}
		} else {
			fmt.Println("  validation:     clean")
		}
		return nil
	})
}
