package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"

	"github.com/giantswarm/oauth-session/pkg/oauth"
)

func TestSetVersion(t *testing.T) {
	original := rootCmd.Version
	defer func() { rootCmd.Version = original }()

	SetVersion("1.2.3-test")
	if GetVersion() != "1.2.3-test" {
		t.Errorf("Expected version to be 1.2.3-test, got %s", GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()

	if root.Use != "oauth-session" {
		t.Errorf("Expected Use to be 'oauth-session', got %s", root.Use)
	}
	if root.Short == "" || root.Long == "" {
		t.Error("Expected Short and Long descriptions to be set")
	}
	if !root.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}

	want := map[string]bool{"login": false, "status": false, "header": false, "fetch": false, "logout": false, "version": false}
	for _, sub := range root.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected subcommand %q to be registered", name)
		}
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "oauth-session version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	if err := testCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	if buf.String() != "oauth-session version 1.0.0\n" {
		t.Errorf("Unexpected version output %q", buf.String())
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	root.Version = "1.2.3-test"

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Error executing version: %v", err)
	}

	expected := "oauth-session version 1.2.3-test\n"
	if buf.String() != expected {
		t.Errorf("Expected output %q, got %q", expected, buf.String())
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitCodeSuccess},
		{"generic", errors.New("boom"), ExitCodeError},
		{"not logged in", notLoggedIn(), ExitCodeNotLoggedIn},
		{"insecure context", fmt.Errorf("wrapped: %w", oauth.ErrInsecureContext), ExitCodeInsecureContext},
		{"login failed", ErrLoginFailed, ExitCodeAuthFailed},
		{"incomplete", fmt.Errorf("%w: state mismatch", oauth.ErrAuthorizationIncomplete), ExitCodeAuthFailed},
		{"exchange", fmt.Errorf("%w: 400", oauth.ErrTokenExchangeFailed), ExitCodeAuthFailed},
		{"refresh", oauth.ErrRefreshFailed, ExitCodeAuthFailed},
		{"denied", &oauth.AuthorizationError{Code: "access_denied"}, ExitCodeAuthFailed},
		{"revoke is general", oauth.ErrRevokeFailed, ExitCodeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
