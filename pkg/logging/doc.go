// Package logging provides the structured logger used by afctl.
//
// It wraps Go's slog text handler and exposes subsystem-tagged helpers:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Activation", "Activated application %s", appID)
//	logging.Debug("Gateway", "POST %s -> %d", path, status)
//	logging.Warn("Reconciler", "Could not sync with server: %v", err)
//	logging.Error("Store", err, "Failed to delete %s", appID)
//
// # Subsystems
//
//   - Config: configuration loading and saving
//   - Session: operator login state
//   - Gateway: HTTP calls to the authorization service
//   - Activation: application register / activate / delete
//   - Connection: tool connection lifecycle and the OAuth handshake
//   - Reconciler: orphan cleanup of the local application cache
//   - Store: local credential cache
//
// # Audit Logging
//
// Actions touching credentials are reported with Audit. Secret values are
// never logged; use TruncateSecret when a hint is needed.
//
//	logging.Audit(logging.AuditEvent{
//	    Action:  "secret_stored",
//	    Outcome: "success",
//	    Target:  appID,
//	})
package logging
