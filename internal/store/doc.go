// Package store caches activated application credentials on the operator's
// workstation.
//
// A cached Application holds the permanent secret key, which the gateway
// never returns again. Two backends implement Store:
//
//   - FileStore keeps one JSON file per application under
//     <config dir>/applications/{app_id}.json. Files are written with 0600
//     permissions inside a 0700 directory.
//   - SQLiteStore keeps every record in a single <config dir>/state.db
//     database using the pure-Go modernc.org/sqlite driver.
//
// Secrets are never logged. Writes and deletes emit audit events through
// pkg/logging so an operator can trace when a credential entered or left the
// cache.
//
// Neither backend coordinates between processes. Running several afctl
// commands at once against the same directory may lose updates.
package store
