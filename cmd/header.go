package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHeaderCmd(o *options) *cobra.Command {
	var valueOnly bool

	cmd := &cobra.Command{
		Use:   "header",
		Short: "Print the Authorization header for the current token",
		Long: `Print the Authorization header for the current token, refreshing it first
if it has expired.

Examples:
  curl -H "$(oauth-session header)" https://api.example.com/me/
  oauth-session header --value-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := o.requireLogin(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			for name, value := range env.session.AuthHeader() {
				if valueOnly {
					fmt.Fprintln(cmd.OutOrStdout(), value)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, value)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&valueOnly, "value-only", false, "Print only the header value")
	return cmd
}
