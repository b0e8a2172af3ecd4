package main

import (
	"fmt"
	"time"

	"github.com/monocle-dev/staffing/internal/auth"
	"github.com/monocle-dev/staffing/internal/config"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		name    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()

			if err != nil {
				return err
			}

			if err := auth.InitJWTSecret(cfg.JWTSecret); err != nil {
				return err
			}

			token, err := auth.GenerateJWT(subject, name, ttl)

			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "sub", "", "Subject of the token")
	cmd.Flags().StringVar(&name, "name", "", "Name recorded as assigned_by")
	cmd.Flags().DurationVar(&ttl, "ttl", 168*time.Hour, "Lifetime of the token")
	_ = cmd.MarkFlagRequired("sub")

	return cmd
}
