package connection

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"afctl/internal/api"
	"afctl/internal/credmethod"
	"afctl/internal/gateway"
	"afctl/pkg/logging"
)

const (
	// DefaultMaxAttempts bounds the status polls after the browser opens.
	DefaultMaxAttempts = 120
	// DefaultPollInterval separates two status polls.
	DefaultPollInterval = time.Second
)

// State is a handshake state.
type State string

const (
	StateUnconfigured          State = "Unconfigured"
	StateInitiating            State = "Initiating"
	StateAwaitingAuthorization State = "AwaitingAuthorization"
	StateConnected             State = "Connected"
	StateTimedOut              State = "TimedOut"
	StateCancelled             State = "Cancelled"
)

// authURLFields are the response fields that may carry the authorization
// URL, in order of preference.
var authURLFields = []string{"authorization_url", "auth_url", "oauth_url"}

// Handshake drives the browser authorization of one connection:
// initiate, open the browser once, then poll until connected or the bound
// is exhausted.
type Handshake struct {
	service *Service

	// Browser opens the authorization URL. It must not block on the browser.
	Browser func(url string) error
	// Sleep waits between polls and returns early with ctx.Err().
	Sleep func(ctx context.Context, d time.Duration) error
	// MaxAttempts and PollInterval bound the polling.
	MaxAttempts  int
	PollInterval time.Duration
	// ConfirmReauthorize is asked before re-authorizing a connected
	// connection. When nil, connected connections are skipped.
	ConfirmReauthorize ConfirmFunc
	// OnAuthorizationURL is called once with the URL before the browser opens.
	OnAuthorizationURL func(url string)
	// OnPoll is called before every status poll with the attempt number.
	OnPoll func(attempt int)
}

// NewHandshake returns a Handshake with the default bounds.
func NewHandshake(service *Service, browser func(string) error) *Handshake {
	return &Handshake{
		service:      service,
		Browser:      browser,
		Sleep:        sleepContext,
		MaxAttempts:  DefaultMaxAttempts,
		PollInterval: DefaultPollInterval,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result is the terminal observation of a handshake.
type Result struct {
	State            State              `json:"state"`
	Connection       api.ToolConnection `json:"connection"`
	AuthorizationURL string             `json:"authorization_url,omitempty"`
	// Attempts is the number of status polls made.
	Attempts int `json:"attempts"`
}

// Run authorizes connectionID. A declined re-authorization returns a
// Cancelled result with no error. Timing out returns a TimedOut result
// together with an AuthorizationTimeout error.
func (h *Handshake) Run(ctx context.Context, connectionID string) (*Result, error) {
	conn, err := h.service.find(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	result := &Result{State: StateUnconfigured, Connection: *conn}

	if conn.Connected {
		if h.ConfirmReauthorize == nil || !h.ConfirmReauthorize(*conn) {
			logging.Info("Connection", "Skipping authorization of %s: already connected", connectionID)
			result.State = StateCancelled
			return result, nil
		}
	}

	result.State = StateInitiating
	res, err := credmethod.Resolve(conn.Tool, conn.EffectiveMethod())
	if err != nil {
		return result, err
	}

	authURL, err := h.initiate(ctx, res, connectionID)
	if err != nil {
		return result, err
	}
	result.AuthorizationURL = authURL

	if h.OnAuthorizationURL != nil {
		h.OnAuthorizationURL(authURL)
	}
	if h.Browser != nil {
		if err := h.Browser(authURL); err != nil {
			logging.Warn("Connection", "Could not open browser: %v", err)
		}
	}
	result.State = StateAwaitingAuthorization

	return h.poll(ctx, result, connectionID)
}

func (h *Handshake) initiate(ctx context.Context, res credmethod.Resolution, connectionID string) (string, error) {
	path := fmt.Sprintf("%s/%s/connect/initiate", toolsPath, res.AuthorizeNamespace)
	resp, err := h.service.gw.Post(ctx, path, res.AuthorizeQuery(connectionID), map[string]any{})
	if err != nil {
		return "", fmt.Errorf("initiate authorization for %s: %w", connectionID, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", gateway.ResponseError(resp, api.KindRemote, "initiate authorization")
	}

	var body map[string]any
	if err := resp.Decode(&body); err != nil {
		return "", err
	}
	for _, field := range authURLFields {
		if u, ok := body[field].(string); ok && u != "" {
			return u, nil
		}
	}

	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	return "", api.NewError(api.KindNoAuthorizationURL, "gateway response has no authorization URL (fields: %v)", keys)
}

func (h *Handshake) poll(ctx context.Context, result *Result, connectionID string) (*Result, error) {
	maxAttempts := h.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	sleep := h.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := sleep(ctx, h.PollInterval); err != nil {
			result.State = StateCancelled
			return result, err
		}
		if h.OnPoll != nil {
			h.OnPoll(attempt)
		}

		result.Attempts = attempt
		conns, err := h.service.List(ctx, ListOptions{})
		if err != nil {
			if ctx.Err() != nil {
				result.State = StateCancelled
			}
			return result, err
		}
		// An entry missing from the listing counts as not connected yet.
		for i := range conns {
			if conns[i].ConnectionID == connectionID && conns[i].Connected {
				result.State = StateConnected
				result.Connection = conns[i]
				logging.Info("Connection", "Connection %s authorized after %d poll(s)", connectionID, attempt)
				return result, nil
			}
		}
	}

	result.State = StateTimedOut
	wait := time.Duration(maxAttempts) * h.PollInterval
	return result, api.NewError(api.KindAuthorizationTimeout,
		"authorization of %s not completed within %s, run 'afctl tools connect %s' to retry", connectionID, wait, connectionID)
}
