package main

import (
	"fmt"
	"time"

	"github.com/monocle-dev/staffing/db"
	"github.com/monocle-dev/staffing/internal/services"
	"github.com/spf13/cobra"
)

func newPruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Permanently delete assignments trashed before a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := connect(); err != nil {
				return err
			}

			service := services.NewAssignmentService(db.DB, newAssignmentRepository())

			n, err := service.Prune(cmd.Context(), olderThan)

			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d assignments\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Only prune rows trashed longer ago than this")

	return cmd
}
