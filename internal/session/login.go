package session

import (
	"context"
	"errors"
	"time"

	"afctl/internal/api"
	"afctl/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// DefaultLoginTimeout bounds how long login waits for the browser redirect.
const DefaultLoginTimeout = 5 * time.Minute

// LoginOptions configures the browser login.
type LoginOptions struct {
	// CallbackPort is the loopback redirect port. 0 selects
	// DefaultCallbackPort and AnyPort lets the OS choose.
	CallbackPort int
	// Timeout overrides DefaultLoginTimeout.
	Timeout time.Duration
	// OpenBrowser opens the authorization URL. Defaults to OpenBrowser.
	OpenBrowser func(string) error
	// OnAuthURL is called with the authorization URL before the browser is
	// opened, so it can be shown to the operator.
	OnAuthURL func(string)
}

// Login runs the Authorization Code flow with PKCE against the configured
// Keycloak realm and stores the resulting session.
func (m *Manager) Login(ctx context.Context, opts LoginOptions) (*Session, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultLoginTimeout
	}
	openBrowser := opts.OpenBrowser
	if openBrowser == nil {
		openBrowser = OpenBrowser
	}

	loginCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state := uuid.NewString()
	receiver := newRedirectReceiver(opts.CallbackPort, state)
	redirectURI, err := receiver.listen()
	if err != nil {
		return nil, err
	}
	defer receiver.stop()

	conf := *m.oauth
	conf.RedirectURL = redirectURI

	verifier := oauth2.GenerateVerifier()
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	if opts.OnAuthURL != nil {
		opts.OnAuthURL(authURL)
	}
	if err := openBrowser(authURL); err != nil {
		logging.Warn("Session", "Could not open browser: %v", err)
	}

	code, err := receiver.wait(loginCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, api.NewError(api.KindAuthorizationTimeout, "no login callback received within %s", timeout)
		}
		return nil, err
	}

	tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, api.WrapError(api.KindUnauthenticated, err, "token exchange failed")
	}

	s := FromToken(tok, m.now())
	if err := m.Save(s); err != nil {
		return nil, err
	}
	logging.Audit(logging.AuditEvent{Action: "login", Outcome: "success", Target: s.Issuer})
	return s, nil
}
