// Package config provides configuration management for afctl.
//
// Configuration lives in a single directory, ~/.af by default. The directory
// can be changed with the --config-path flag or the AF_CONFIG_DIR environment
// variable. It contains:
//   - config.yaml (this package)
//   - session.json (operator session, see internal/session)
//   - applications/ or state.db (cached application credentials, see internal/store)
//
// # Lifecycle
//
// Configuration is an explicit value. Commands call Load once, pass the
// resulting Config into every flow constructor, and call Save only when the
// operator changes a setting. Nothing in this package keeps process-wide state.
//
// # Precedence
//
// Later sources override earlier ones:
//  1. Built-in defaults (Default)
//  2. config.yaml in the configuration directory
//  3. A .env file in the working directory (loaded with godotenv, never
//     overriding variables that are already set)
//  4. AF_* environment variables
//
// Environment overrides are applied on Load but never written back by Save.
package config
