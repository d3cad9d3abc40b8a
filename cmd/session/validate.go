package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/session-core/internal/infrastructure/scenario"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario-file>",
		Short: "Check a scenario file without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	scn, err := scenario.LoadFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Scenario %q is valid\n", scn.Name)
	fmt.Printf("  participants: %d\n", len(scn.Participants))
	fmt.Printf("  entities:     %d\n", len(scn.World.Entities))
	fmt.Printf("  turns:        %d\n", len(scn.Turns))
	return nil
}
