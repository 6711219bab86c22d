package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"afctl/internal/api"
	"afctl/internal/config"
	"afctl/pkg/logging"

	"golang.org/x/oauth2"
)

const sessionFileName = "session.json"

// Manager loads, stores and refreshes the operator session.
type Manager struct {
	mu    sync.Mutex
	path  string
	oauth *oauth2.Config
	now   func() time.Time
}

// NewManager returns a Manager storing the session in cfg.Dir and using the
// configured Keycloak realm for login and refresh.
func NewManager(cfg config.Config) *Manager {
	return &Manager{
		path:  filepath.Join(cfg.Dir, sessionFileName),
		oauth: OAuthConfig(cfg),
		now:   time.Now,
	}
}

// OAuthConfig builds the Keycloak OAuth client configuration.
func OAuthConfig(cfg config.Config) *oauth2.Config {
	realmURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect", cfg.KeycloakURL, cfg.KeycloakRealm)
	return &oauth2.Config{
		ClientID: cfg.KeycloakClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   realmURL + "/auth",
			TokenURL:  realmURL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"openid", "profile", "email", "offline_access"},
	}
}

// Path returns the session file path.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the stored session. It returns nil without error when no
// session exists.
func (m *Manager) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *Manager) load() (*Session, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", m.path, err)
	}
	return &s, nil
}

// Save persists the session with owner-only permissions.
func (m *Manager) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(s)
}

func (m *Manager) save(s *Session) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0600); err != nil {
		logging.Audit(logging.AuditEvent{Action: "session_stored", Outcome: "failure", Target: s.Issuer, Error: err.Error()})
		return fmt.Errorf("failed to write session: %w", err)
	}
	logging.Audit(logging.AuditEvent{Action: "session_stored", Outcome: "success", Target: s.Issuer})
	return nil
}

// Clear removes the stored session. A missing session is not an error.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	logging.Audit(logging.AuditEvent{Action: "session_cleared", Outcome: "success", Target: m.path})
	return nil
}

// Valid reports whether a usable session exists: either an unexpired access
// token or a refresh token to renew it with.
func (m *Manager) Valid() bool {
	s, err := m.Load()
	if err != nil || s == nil {
		return false
	}
	return s.Valid(m.now()) || s.Refreshable()
}

// LoginWithToken stores a caller-supplied access token as the session.
func (m *Manager) LoginWithToken(raw string) (*Session, error) {
	if raw == "" {
		return nil, api.NewError(api.KindUnauthenticated, "token is empty")
	}
	s := FromToken(&oauth2.Token{AccessToken: raw, TokenType: "Bearer"}, m.now())
	if !s.Valid(m.now()) {
		return nil, api.NewError(api.KindUnauthenticated, "token expired at %s", s.Expiry.Format(time.RFC3339))
	}
	if err := m.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}

// TokenSource exposes the stored session to the gateway client.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &sessionTokenSource{ctx: ctx, m: m})
}

type sessionTokenSource struct {
	ctx context.Context
	m   *Manager
}

func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	m := ts.m
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.load()
	if err != nil {
		return nil, api.WrapError(api.KindUnauthenticated, err, "cannot read session")
	}
	if s == nil {
		return nil, api.NewError(api.KindUnauthenticated, "not logged in, run 'afctl auth login'")
	}
	if s.Valid(m.now()) {
		return s.Token(), nil
	}
	if !s.Refreshable() || m.oauth == nil {
		return nil, api.NewError(api.KindUnauthenticated, "session expired, run 'afctl auth login'")
	}

	// Force the refresh: the stored access token is already considered expired.
	stale := s.Token()
	stale.Expiry = time.Unix(1, 0)
	tok, err := m.oauth.TokenSource(ts.ctx, stale).Token()
	if err != nil {
		logging.Audit(logging.AuditEvent{Action: "session_refreshed", Outcome: "failure", Target: s.Issuer, Error: err.Error()})
		return nil, api.WrapError(api.KindUnauthenticated, err, "session expired and could not be refreshed, run 'afctl auth login'")
	}

	refreshed := FromToken(tok, m.now())
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = s.RefreshToken
	}
	if err := m.save(refreshed); err != nil {
		logging.Warn("Session", "Refreshed session could not be saved: %v", err)
	}
	logging.Audit(logging.AuditEvent{Action: "session_refreshed", Outcome: "success", Target: refreshed.Issuer})
	return refreshed.Token(), nil
}
