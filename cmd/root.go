package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/giantswarm/oauth-session/pkg/oauth"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeNotLoggedIn indicates the command needs a token and none is held.
	ExitCodeNotLoggedIn = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
	// ExitCodeInsecureContext indicates the redirect URI is not a secure context.
	ExitCodeInsecureContext = 4
)

// rootCmd represents the base command for the oauth-session application.
var rootCmd = newRootCmd()

// newRootCmd builds the command tree. Flag values live in a fresh options
// value per tree.
func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "oauth-session",
		Short: "Log in to an OAuth 2.0 authorization server and call its APIs",
		Long: `oauth-session runs the OAuth 2.0 authorization code flow with PKCE
against a configured authorization server, keeps the resulting token
in local storage, refreshes it when it expires and revokes it on logout.

Configuration is read from ~/.config/oauth-session/config.yaml, then
from OAUTH_SESSION_* environment variables, then from flags.`,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
	}

	o.addFlags(cmd)

	cmd.AddCommand(newLoginCmd(o))
	cmd.AddCommand(newStatusCmd(o))
	cmd.AddCommand(newHeaderCmd(o))
	cmd.AddCommand(newFetchCmd(o))
	cmd.AddCommand(newLogoutCmd(o))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "oauth-session version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, oauth.ErrInsecureContext):
		return ExitCodeInsecureContext
	case errors.Is(err, oauth.ErrNotLoggedIn):
		return ExitCodeNotLoggedIn
	case errors.Is(err, ErrLoginFailed),
		errors.Is(err, oauth.ErrAuthorizationIncomplete),
		errors.Is(err, oauth.ErrTokenExchangeFailed),
		errors.Is(err, oauth.ErrRefreshFailed),
		oauth.IsAuthorizationError(err):
		return ExitCodeAuthFailed
	default:
		return ExitCodeError
	}
}
