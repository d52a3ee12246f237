package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/giantswarm/oauth-session/internal/session"
)

func newFetchCmd(o *options) *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "fetch <path>",
		Short: "Call an API endpoint with the current token",
		Long: `Call an endpoint below the configured API base URL (apiBaseUrl, or the
server URL) and print the JSON response.

The path is normalised to carry exactly one trailing slash.

Examples:
  oauth-session fetch me
  oauth-session fetch /projects/42 --method DELETE`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := o.requireLogin(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			client := session.NewAPIClient(env.cfg.APIBase(), env.session)

			var out interface{}
			if err := client.FetchJSON(cmd.Context(), strings.ToUpper(method), args[0], &out); err != nil {
				return err
			}
			if out == nil {
				return nil
			}

			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	return cmd
}
