package session

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"afctl/internal/api"
	"afctl/pkg/logging"
)

const (
	// DefaultCallbackPort is the loopback port registered with the Keycloak client.
	DefaultCallbackPort = 8765

	// AnyPort lets the operating system choose the callback port.
	AnyPort = -1

	callbackPath = "/callback"
)

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

var (
	successPage = template.Must(template.New("success").Parse(callbackSuccessHTML))
	failurePage = template.Must(template.New("failure").Parse(callbackErrorHTML))
)

// redirectOutcome is what one login redirect resolved to: an authorization
// code, or the reason the login failed.
type redirectOutcome struct {
	code string
	err  error
}

// redirectReceiver accepts the Keycloak redirect of a single PKCE login on a
// loopback address. It knows the state it issued and resolves the login
// with the first redirect that reaches the callback path.
type redirectReceiver struct {
	port  int
	state string

	server   *http.Server
	listener net.Listener

	outcome  chan redirectOutcome
	resolved sync.Once
	stopped  sync.Once
}

// newRedirectReceiver prepares a receiver for the given state. Port 0
// selects DefaultCallbackPort and AnyPort lets the OS choose.
func newRedirectReceiver(port int, state string) *redirectReceiver {
	if port == 0 {
		port = DefaultCallbackPort
	}
	return &redirectReceiver{
		port:    port,
		state:   state,
		outcome: make(chan redirectOutcome, 1),
	}
}

// listen binds the loopback port, starts serving and returns the redirect
// URI to put into the authorization request.
func (rr *redirectReceiver) listen() (string, error) {
	port := rr.port
	if port == AnyPort {
		port = 0
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen for the login redirect on %s (try --port 0): %w", addr, err)
	}
	rr.listener = listener
	rr.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, rr.handleRedirect)
	rr.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := rr.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rr.resolve(redirectOutcome{err: fmt.Errorf("login redirect listener failed: %w", err)})
		}
	}()

	logging.Debug("Session", "Waiting for login redirect on %s", rr.redirectURI())
	return rr.redirectURI(), nil
}

func (rr *redirectReceiver) redirectURI() string {
	return fmt.Sprintf("http://localhost:%d%s", rr.port, callbackPath)
}

// wait blocks until the login is resolved or ctx is done.
func (rr *redirectReceiver) wait(ctx context.Context) (string, error) {
	select {
	case out := <-rr.outcome:
		return out.code, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// resolve records the first outcome and reports whether it was the first.
func (rr *redirectReceiver) resolve(out redirectOutcome) bool {
	first := false
	rr.resolved.Do(func() {
		first = true
		rr.outcome <- out
	})
	return first
}

func (rr *redirectReceiver) handleRedirect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	out := rr.evaluate(r)
	if !rr.resolve(out) {
		http.Error(w, "login already completed", http.StatusConflict)
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if out.err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = failurePage.Execute(w, map[string]string{
			"Error":       errorCode(r),
			"Description": out.err.Error(),
		})
		return
	}
	_ = successPage.Execute(w, nil)
}

// evaluate turns the redirect query into an outcome. The state is checked
// before anything else, so a forged redirect never yields a code.
func (rr *redirectReceiver) evaluate(r *http.Request) redirectOutcome {
	q := r.URL.Query()
	if q.Get("state") != rr.state {
		logging.Audit(logging.AuditEvent{Action: "login", Outcome: "failure", Target: "loopback redirect", Error: "state mismatch"})
		return redirectOutcome{err: api.NewError(api.KindUnauthenticated, "login failed: state mismatch")}
	}
	if code := q.Get("error"); code != "" {
		detail := code
		if desc := q.Get("error_description"); desc != "" {
			detail = code + ": " + desc
		}
		return redirectOutcome{err: api.NewError(api.KindUnauthenticated, "login failed: %s", detail)}
	}
	code := q.Get("code")
	if code == "" {
		return redirectOutcome{err: api.NewError(api.KindUnauthenticated, "login failed: redirect carried no authorization code")}
	}
	return redirectOutcome{code: code}
}

func errorCode(r *http.Request) string {
	if code := r.URL.Query().Get("error"); code != "" {
		return code
	}
	return "invalid_request"
}

// stop shuts the listener down, letting an in-flight page finish rendering.
func (rr *redirectReceiver) stop() {
	rr.stopped.Do(func() {
		if rr.server == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rr.server.Shutdown(ctx)
	})
}
