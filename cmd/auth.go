package cmd

import (
	"fmt"
	"time"

	"afctl/internal/cli"
	"afctl/internal/session"

	"github.com/spf13/cobra"
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the operator session",
	Long: `Sign in to Agentic Fabriq and manage the stored session.

Examples:
  afctl auth login                 # browser login with PKCE
  afctl auth login --token <jwt>   # store an existing access token
  afctl auth status                # show the current identity
  afctl auth logout                # remove the stored session`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the browser or with an access token",
	Long: `Sign in to Agentic Fabriq.

Without --token a browser window opens on the Keycloak login page and the
authorization code is received on a loopback callback. The session is stored
in session.json in the configuration directory with 0600 permissions.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var (
	loginToken     string
	loginNoBrowser bool
	loginPort      int
	loginTimeout   time.Duration
)

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)

	authLoginCmd.Flags().StringVar(&loginToken, "token", "", "Store this access token instead of opening the browser")
	authLoginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the login URL instead of opening a browser")
	authLoginCmd.Flags().IntVar(&loginPort, "port", session.DefaultCallbackPort, "Local port for the login callback (0 picks a free port)")
	authLoginCmd.Flags().DurationVar(&loginTimeout, "timeout", session.DefaultLoginTimeout, "How long to wait for the browser login")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	p := env.printer

	if loginToken != "" {
		s, err := env.sessions.LoginWithToken(loginToken)
		if err != nil {
			return err
		}
		p.Success("Logged in as %s", identity(s))
		return nil
	}

	port := loginPort
	if port == 0 {
		port = session.AnyPort
	}
	opts := session.LoginOptions{
		CallbackPort: port,
		Timeout:      loginTimeout,
		OnAuthURL: func(url string) {
			p.Info("Opening the browser for login. If it does not open, visit:")
			p.Notice("  %s", url)
		},
	}
	if loginNoBrowser {
		opts.OpenBrowser = func(string) error { return nil }
	}

	sp := p.StartSpinner("Waiting for browser login...")
	s, err := env.sessions.Login(cmd.Context(), opts)
	if err != nil {
		sp.Fail("Login failed")
		return err
	}
	sp.Stop()

	p.Success("Logged in as %s", identity(s))
	if s.TenantID != "" {
		p.Hint("Tenant: %s", s.TenantID)
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}

	s, err := env.sessions.Load()
	if err != nil {
		return err
	}
	if s == nil {
		env.printer.Info("Not logged in.")
		return nil
	}
	if err := env.sessions.Clear(); err != nil {
		return err
	}
	env.printer.Success("Logged out %s", identity(s))
	return nil
}

// authStatus is the structured form of auth status.
type authStatus struct {
	Authenticated bool      `json:"authenticated"`
	State         string    `json:"state"`
	UserID        string    `json:"user_id,omitempty"`
	Username      string    `json:"username,omitempty"`
	Email         string    `json:"email,omitempty"`
	TenantID      string    `json:"tenant_id,omitempty"`
	Issuer        string    `json:"issuer,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	Refreshable   bool      `json:"refreshable"`
	SessionFile   string    `json:"session_file"`
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}

	s, err := env.sessions.Load()
	if err != nil {
		return err
	}
	status := buildAuthStatus(s, time.Now())
	status.SessionFile = env.sessions.Path()

	p := env.printer
	if p.Structured() {
		return p.Data(status)
	}
	if s == nil {
		p.Warn("Not logged in")
		p.Hint("Run 'afctl auth login' to sign in.")
		return nil
	}

	pairs := [][2]string{
		{"State", cli.StatusText(status.State)},
		{"User", identity(s)},
	}
	if s.Email != "" {
		pairs = append(pairs, [2]string{"Email", s.Email})
	}
	pairs = append(pairs,
		[2]string{"User ID", valueOrNA(s.UserID)},
		[2]string{"Tenant ID", valueOrNA(s.TenantID)},
		[2]string{"Issuer", valueOrNA(s.Issuer)},
	)
	if !s.Expiry.IsZero() {
		pairs = append(pairs, [2]string{"Expires", formatExpiry(s.Expiry, time.Now())})
	}
	pairs = append(pairs, [2]string{"Session File", status.SessionFile})
	p.KeyValues("Authentication", pairs)

	if status.State == "expired" {
		p.Hint("Run 'afctl auth login' to sign in again.")
	}
	return nil
}

func buildAuthStatus(s *session.Session, now time.Time) authStatus {
	if s == nil {
		return authStatus{State: "none"}
	}
	st := authStatus{
		UserID:      s.UserID,
		Username:    s.Username,
		Email:       s.Email,
		TenantID:    s.TenantID,
		Issuer:      s.Issuer,
		ExpiresAt:   s.Expiry,
		Refreshable: s.Refreshable(),
	}
	switch {
	case s.Valid(now):
		st.State = "valid"
		st.Authenticated = true
	case s.Refreshable():
		st.State = "refreshable"
		st.Authenticated = true
	default:
		st.State = "expired"
	}
	return st
}

// identity names the session owner for messages.
func identity(s *session.Session) string {
	switch {
	case s.Username != "":
		return s.Username
	case s.Email != "":
		return s.Email
	case s.UserID != "":
		return s.UserID
	default:
		return "unknown user"
	}
}

func formatExpiry(expiry, now time.Time) string {
	local := expiry.Local().Format("2006-01-02 15:04:05 MST")
	if expiry.Before(now) {
		return fmt.Sprintf("%s (expired)", local)
	}
	return fmt.Sprintf("%s (in %s)", local, expiry.Sub(now).Round(time.Minute))
}

func valueOrNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
