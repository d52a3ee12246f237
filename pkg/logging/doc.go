// Package logging provides the structured logging used across oauth-session.
//
// It is a thin layer over Go's standard slog package that adds a subsystem
// attribute to every record and a dedicated audit channel for security
// relevant events of the login lifecycle.
//
// # Log Levels
//   - **Debug**: Detailed information for debugging and development
//   - **Info**: General informational messages about application operation
//   - **Warn**: Warning messages that indicate potential issues
//   - **Error**: Error messages for failures and exceptional conditions
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Session", "Restored login for client %s", clientID)
//	logging.Warn("Coordinator", "Stored authorization request could not be decoded")
//	logging.Error("Exchange", err, "Token refresh failed")
//
// # Subsystems
//
//   - **Coordinator**: authorization request start/resolve and storage sweeps
//   - **Exchange**: token, refresh and revocation endpoint calls
//   - **Session**: token lifecycle (restore, refresh, logout)
//   - **Storage**: persistence backends
//   - **Page**: host page (browser navigation, loopback callback)
//   - **Config**: configuration loading
//   - **CLI**: command line front-end
//
// # Audit Logging
//
//	logging.Audit(logging.AuditEvent{
//	    Action:   "token_issued",
//	    Outcome:  "success",
//	    ClientID: clientID,
//	    Target:   tokenEndpoint,
//	})
//
// Audit events are logged at INFO level with an [AUDIT] prefix for easy filtering
// by log aggregation systems. Token values are never logged.
//
// Before InitForCLI is called only warnings and errors reach stderr.
package logging
