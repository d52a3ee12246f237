package cmd

import (
	"github.com/spf13/cobra"
)

func newLogoutCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the current token",
		Long: `Revoke the current token at the authorization server and remove it from
local storage. The local token is removed even when revocation fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := o.restore(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			wasLoggedIn := env.session.IsLoggedIn()
			if err := env.session.Logout(cmd.Context()); err != nil {
				return err
			}

			if wasLoggedIn {
				o.printf(cmd, "Logged out of %s\n", env.cfg.Server)
			} else {
				o.printf(cmd, "Not logged in\n")
			}
			return nil
		},
	}
}
