package api

import (
	"fmt"
	"strings"
)

// CredentialMethod is how a tool connection obtains its credentials.
type CredentialMethod string

const (
	// MethodAPICredentials stores an operator-supplied token or OAuth client pair.
	MethodAPICredentials CredentialMethod = "api_credentials"
	// MethodOAuth3 uses the platform-managed OAuth application.
	MethodOAuth3 CredentialMethod = "oauth3"
	// MethodOAuth is the deprecated legacy method.
	MethodOAuth CredentialMethod = "oauth"
)

// ParseCredentialMethod validates a method name.
func ParseCredentialMethod(s string) (CredentialMethod, error) {
	switch CredentialMethod(strings.TrimSpace(s)) {
	case MethodAPICredentials:
		return MethodAPICredentials, nil
	case MethodOAuth3:
		return MethodOAuth3, nil
	case MethodOAuth:
		return MethodOAuth, nil
	default:
		return "", NewError(KindUnsupportedMethod, "method must be 'api_credentials', 'oauth3', or 'oauth', got %q", s)
	}
}

// ConnectionState is the lifecycle state of a tool connection as observed by the client.
type ConnectionState string

const (
	StateUnconfigured ConnectionState = "unconfigured"
	StateConfigured   ConnectionState = "configured"
	StateConnected    ConnectionState = "connected"
)

// ToolConnection binds the operator's account to one external tool account.
type ToolConnection struct {
	ConnectionID string           `json:"connection_id"`
	Tool         string           `json:"tool"`
	Method       CredentialMethod `json:"method,omitempty"`
	DisplayName  string           `json:"display_name,omitempty"`
	Connected    bool             `json:"connected"`

	// Provider-specific metadata.
	Email         string   `json:"email,omitempty"`
	TeamName      string   `json:"team_name,omitempty"`
	TeamID        string   `json:"team_id,omitempty"`
	BotUserID     string   `json:"bot_user_id,omitempty"`
	Login         string   `json:"login,omitempty"`
	WorkspaceName string   `json:"workspace_name,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Key returns the connection id.
func (c ToolConnection) Key() string {
	return c.ConnectionID
}

// State returns configured or connected.
func (c ToolConnection) State() ConnectionState {
	if c.Connected {
		return StateConnected
	}
	return StateConfigured
}

// Name returns the display name, falling back to the connection id.
func (c ToolConnection) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.ConnectionID
}

// EffectiveMethod returns the method, defaulting legacy records to oauth.
func (c ToolConnection) EffectiveMethod() CredentialMethod {
	if c.Method == "" {
		return MethodOAuth
	}
	return c.Method
}

// ToolTitle formats a tool id for display, e.g. "google_docs" -> "Google Docs".
func ToolTitle(tool string) string {
	if tool == "" {
		return "N/A"
	}
	parts := strings.Split(tool, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// Details returns the provider-specific fields that are set, in display order.
func (c ToolConnection) Details() [][2]string {
	var out [][2]string
	add := func(label, value string) {
		if value != "" {
			out = append(out, [2]string{label, value})
		}
	}
	add("Team Name", c.TeamName)
	add("Team ID", c.TeamID)
	add("Bot User ID", c.BotUserID)
	add("Email", c.Email)
	add("GitHub Login", c.Login)
	add("Workspace Name", c.WorkspaceName)
	if len(c.Scopes) > 0 {
		add("Scopes", strings.Join(c.Scopes, ", "))
	}
	return out
}

// String implements fmt.Stringer.
func (c ToolConnection) String() string {
	return fmt.Sprintf("%s (%s, %s)", c.ConnectionID, c.Tool, c.State())
}
