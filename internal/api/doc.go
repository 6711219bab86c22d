// Package api holds the domain types shared by every afctl package:
// applications and their activation tickets, tool connections and their
// credential methods, and the error kinds provisioning operations fail with.
//
// It imports nothing from the rest of the module so that the flows, the
// stores and the command layer can all depend on it without cycles.
package api
