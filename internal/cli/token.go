package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmaster-ai/taskmaster/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print an API token for the configured admin user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireAuth(); err != nil {
				return err
			}
			issuer, err := auth.NewIssuer(a.cfg.JWTSecret, auth.DefaultTokenTTL)
			if err != nil {
				return err
			}
			token, err := issuer.Generate(a.cfg.AdminUser)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
