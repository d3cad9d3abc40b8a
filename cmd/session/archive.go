package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/session-core/internal/infrastructure/relationaldb/sqlite"
)

// Default limits for archive commands.
const (
	DefaultListLimit  = 50
	DefaultAuditLimit = 100
)

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived sessions, turns and the audit trail",
	}
	cmd.AddCommand(
		newArchiveListCmd(),
		newArchiveTurnsCmd(),
		newArchiveAuditCmd(),
		newArchiveSnapshotCmd(),
	)
	return cmd
}

func newArchiveListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(func(archive *sqlite.Repository) error {
				records, err := archive.ListSessions(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Println("No archived sessions.")
					return nil
				}
				for _, rec := range records {
					fmt.Printf("%s  %-20s %-8s participants=%d turns=%d\n",
						rec.ID, rec.Name, rec.Status, rec.Participants, rec.TurnCount)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", DefaultListLimit, "Maximum sessions to list")
	return cmd
}

func newArchiveTurnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "turns <session-id>",
		Short: "Show a session's archived turn history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(func(archive *sqlite.Repository) error {
				turns, err := archive.FindTurns(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(turns) == 0 {
					fmt.Println("No archived turns.")
					return nil
				}
				for _, turn := range turns {
					desc := ""
					if turn.Action != nil {
						desc = turn.Action.Description
					}
					fmt.Printf("#%-4d %-10s %-12s %s  %s\n",
						turn.TurnNumber, turn.Status, turn.Type, turn.ParticipantID, desc)
				}
				return nil
			})
		},
	}
}

func newArchiveAuditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit <session-id>",
		Short: "Show a session's audit trail, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(func(archive *sqlite.Repository) error {
				logEntries, err := archive.FindAuditLog(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if len(logEntries) == 0 {
					fmt.Println("No audit entries.")
					return nil
				}
				for _, entry := range logEntries {
					fmt.Printf("%s  %-24s %s\n",
						entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.Action, entry.RefID)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", DefaultAuditLimit, "Maximum entries to show")
	return cmd
}

func newArchiveSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <session-id>",
		Short: "Print a session's most recent world snapshot as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(func(archive *sqlite.Repository) error {
				snapshot, err := archive.FindLatestSnapshot(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if snapshot == nil {
					fmt.Println("No archived snapshot.")
					return nil
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(snapshot)
			})
		},
	}
}
