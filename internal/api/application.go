package api

import (
	"time"
)

// ActivationTokenTTL is how long the server keeps an activation token valid.
const ActivationTokenTTL = time.Hour

// Application is the identity record of an automation agent.
//
// The full record, including SecretKey, is cached locally right after
// activation. The server never returns SecretKey again.
type Application struct {
	AppID     string `json:"app_id"`
	SecretKey string `json:"secret_key"`
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id"`
	// ToolConnections maps connection id to its ordered scope list.
	ToolConnections map[string][]string `json:"tool_connections"`
	CreatedAt       Timestamp           `json:"created_at"`
	// GatewayURL is the gateway that activated the application. Local only.
	GatewayURL string `json:"gateway_url,omitempty"`
}

// Key returns the identifier used for cache lookups and reconciliation.
func (a Application) Key() string {
	return a.AppID
}

// Redacted returns a copy with SecretKey masked, for display.
func (a Application) Redacted() Application {
	if a.SecretKey != "" {
		a.SecretKey = "••••••••"
	}
	return a
}

// RegistrationTicket is the result of registering an application: a
// single-use activation token. It is shown to the operator and never cached.
type RegistrationTicket struct {
	AppID           string    `json:"app_id"`
	ActivationToken string    `json:"activation_token"`
	ExpiresAt       Timestamp `json:"expires_at"`
}

// ExpiresIn returns how long the token remains valid as seen from now.
// The server is authoritative; this is only a hint for the operator.
func (t RegistrationTicket) ExpiresIn(now time.Time) time.Duration {
	return t.ExpiresAt.Time.Sub(now)
}

// Expired reports whether the token is past its expiry as seen from now.
func (t RegistrationTicket) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt.Time)
}

// ServerApplication is an application as listed by the server. It never
// carries the secret.
type ServerApplication struct {
	AppID           string              `json:"app_id"`
	UserID          string              `json:"user_id,omitempty"`
	TenantID        string              `json:"tenant_id,omitempty"`
	ToolConnections map[string][]string `json:"tool_connections,omitempty"`
	CreatedAt       Timestamp           `json:"created_at"`
}
