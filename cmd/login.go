package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/giantswarm/oauth-session/internal/config"
	"github.com/giantswarm/oauth-session/internal/page"
	"github.com/giantswarm/oauth-session/internal/storage"
	"github.com/giantswarm/oauth-session/pkg/oauth"
)

// ErrLoginFailed is returned when the login flow ends without a token.
var ErrLoginFailed = errors.New("login failed")

func notLoggedIn() error {
	return fmt.Errorf("%w: run 'oauth-session login' first", oauth.ErrNotLoggedIn)
}

func newLoginCmd(o *options) *cobra.Command {
	var (
		noBrowser bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the authorization server",
		Long: `Log in using the OAuth 2.0 authorization code flow with PKCE.

The authorization page is opened in your browser. For loopback redirect
URIs a local listener receives the redirect; for any other redirect URI
paste the URL the browser landed on.

Examples:
  oauth-session login
  oauth-session login --no-browser
  oauth-session login --server https://auth.example.com --client-id my-app`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, o, noBrowser, timeout)
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, fmt.Sprintf("How long to wait for the redirect (default %s)", config.DefaultCallbackTimeout))
	return cmd
}

func runLogin(cmd *cobra.Command, o *options, noBrowser bool, timeout time.Duration) error {
	ctx := cmd.Context()

	var loopback *page.Loopback
	env, err := o.openSession(cmd, func(cfg config.Config, store storage.FlowStorage) (page.Context, error) {
		lb, err := page.NewLoopback(redirectURI(cfg), store, page.LoopbackOptions{
			OpenBrowser: cfg.Callback.OpenBrowser && !noBrowser,
			Out:         cmd.ErrOrStderr(),
			In:          cmd.InOrStdin(),
			Opener:      browserOpener,
		})
		if err != nil {
			return nil, err
		}
		if err := lb.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start callback listener: %w", err)
		}
		loopback = lb
		return lb, nil
	})
	if loopback != nil {
		defer loopback.Close()
	}
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.session.RedirectToLogin(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	if timeout == 0 {
		timeout = env.cfg.Callback.Timeout
	}
	var (
		waitCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		waitCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	stop := startSpinner(cmd, o, " Waiting for authorization...")
	_, err = loopback.WaitForRedirect(waitCtx)
	stop()
	if err != nil {
		return fmt.Errorf("%w: no redirect received: %w", ErrLoginFailed, err)
	}

	if err := env.session.RestoreLogin(ctx); err != nil {
		return err
	}
	if !env.session.IsLoggedIn() {
		if errs := env.reported(); len(errs) > 0 {
			return fmt.Errorf("%w: %w", ErrLoginFailed, errors.Join(errs...))
		}
		return ErrLoginFailed
	}

	o.printf(cmd, "Logged in to %s as client %s\n", env.cfg.Server, env.cfg.ClientID)
	return nil
}

// startSpinner shows a spinner on stderr until the returned func is called.
func startSpinner(cmd *cobra.Command, o *options, suffix string) func() {
	if o.quiet {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = suffix
	s.Start()
	return s.Stop
}
