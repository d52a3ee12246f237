package cmd

import (
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/giantswarm/oauth-session/pkg/oauth"
)

func newStatusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the login status",
		Long: `Show whether a token is held for the configured client.

An expired token is refreshed first, exactly as any other command would.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := o.restore(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleRounded)
			t.AppendRow(table.Row{"Server", env.cfg.Server})
			t.AppendRow(table.Row{"Client ID", env.cfg.ClientID})
			t.AppendRow(table.Row{"Storage", storageLabel(env.cfg.Storage.Type)})

			token := env.session.Token()
			if token == nil {
				t.AppendRow(table.Row{"Status", text.FgYellow.Sprint("Not logged in")})
				t.Render()
				return nil
			}

			t.AppendRow(table.Row{"Status", text.FgGreen.Sprint("Logged in")})
			t.AppendRow(table.Row{"Token type", token.TokenType})
			if scopes := token.Scopes(); len(scopes) > 0 {
				t.AppendRow(table.Row{"Scope", strings.Join(scopes, ", ")})
			}
			t.AppendRow(table.Row{"Issued", time.Unix(token.IssuedAt, 0).Format(time.RFC3339)})
			t.AppendRow(table.Row{"Expires", formatExpiry(token, time.Now())})
			if token.RefreshToken != "" {
				t.AppendRow(table.Row{"Refresh", text.FgGreen.Sprint("Available")})
			} else {
				t.AppendRow(table.Row{"Refresh", "None"})
			}
			t.Render()
			return nil
		},
	}
}

func storageLabel(storageType string) string {
	if storageType == "" {
		return "file"
	}
	return storageType
}

func formatExpiry(token *oauth.Token, now time.Time) string {
	expiresAt, ok := token.ExpiresAt()
	if !ok {
		return "Never"
	}
	remaining := expiresAt.Sub(now).Round(time.Second)
	if remaining <= 0 {
		return text.FgRed.Sprintf("%s (expired)", expiresAt.Format(time.RFC3339))
	}
	return expiresAt.Format(time.RFC3339) + " (in " + remaining.String() + ")"
}
