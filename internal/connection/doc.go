// Package connection manages the operator's tool connections.
//
// A connection binds the operator's platform account to one external tool
// account and is addressed by an operator-chosen connection id. Its state
// lives entirely on the gateway; this package only drives transitions and
// observes the connected flag:
//
//	add        -> configured (credentials or OAuth client stored)
//	connect    -> connected  (browser authorization, see Handshake)
//	disconnect -> configured (credentials removed, entry kept)
//	remove     -> gone       (entry removed, gateway cascades credentials)
//
// Namespaces and routing parameters come from internal/credmethod. Input is
// validated before any call leaves the workstation.
package connection
