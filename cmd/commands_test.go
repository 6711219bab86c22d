package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"afctl/internal/api"
	"afctl/internal/config"
	"afctl/internal/session"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	text.DisableColors()
	os.Exit(m.Run())
}

// fakeGateway is an in-memory gateway for command tests.
type fakeGateway struct {
	mu          sync.Mutex
	serverApps  []string
	connections []api.ToolConnection
	requests    []string
	lastQuery   map[string]string
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, r.Method+" "+r.URL.Path)
	g.lastQuery = map[string]string{}
	for k := range r.URL.Query() {
		g.lastQuery[k] = r.URL.Query().Get(k)
	}

	if r.Header.Get("Authorization") != "Bearer op-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var body map[string]any
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/applications/register":
		g.serverApps = append(g.serverApps, body["app_id"].(string))
		respond(w, http.StatusCreated, map[string]any{
			"app_id":           body["app_id"],
			"activation_token": "act-1",
			"expires_at":       "2099-01-01T00:00:00Z",
		})
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/applications/activate":
		if body["activation_token"] != "act-1" {
			respond(w, http.StatusNotFound, map[string]string{"detail": "Invalid or expired activation token"})
			return
		}
		respond(w, http.StatusCreated, map[string]any{
			"app_id":           "reporter",
			"secret_key":       "sk-live-123",
			"user_id":          "u-1",
			"tenant_id":        "t-1",
			"tool_connections": map[string][]string{"work": {}},
			"created_at":       "2026-10-17T10:00:00",
		})
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/applications":
		apps := make([]map[string]string, 0, len(g.serverApps))
		for _, id := range g.serverApps {
			apps = append(apps, map[string]string{"app_id": id})
		}
		respond(w, http.StatusOK, map[string]any{"applications": apps})
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/v1/applications/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/applications/")
		for i, a := range g.serverApps {
			if a == id {
				g.serverApps = append(g.serverApps[:i], g.serverApps[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		respond(w, http.StatusNotFound, map[string]string{"detail": "Application not found"})
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/user-connections":
		respond(w, http.StatusOK, g.connections)
	case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/connection"):
		for i := range g.connections {
			if g.connections[i].ConnectionID == r.URL.Query().Get("connection_id") {
				g.connections[i].Connected = false
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type testEnv struct {
	dir     string
	gateway *fakeGateway
}

// newTestEnv points afctl at a temporary config directory and a fake
// gateway.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fg := &fakeGateway{}
	server := httptest.NewServer(fg)
	t.Cleanup(server.Close)

	for _, name := range []string{config.EnvKeycloakURL, config.EnvOutputFormat, config.EnvPageSize, config.EnvCacheBackend, config.EnvConfigDir} {
		t.Setenv(name, "")
	}
	t.Setenv(config.EnvGatewayURL, server.URL)

	return &testEnv{dir: t.TempDir(), gateway: fg}
}

// login stores a non-expiring opaque session.
func (e *testEnv) login(t *testing.T) {
	t.Helper()
	m := session.NewManager(config.Config{Dir: e.dir})
	require.NoError(t, m.Save(&session.Session{AccessToken: "op-token", TenantID: "t-1", Username: "ops"}))
}

// run executes the root command with args and returns stdout and stderr.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--config-path", e.dir}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestAuthCommands(t *testing.T) {
	e := newTestEnv(t)

	out, _, err := e.run(t, "", "auth", "status", "-o", "json")
	require.NoError(t, err)
	var status authStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.False(t, status.Authenticated)
	assert.Equal(t, "none", status.State)

	_, _, err = e.run(t, "", "auth", "login", "--token", "op-token")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(e.dir, "session.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	out, _, err = e.run(t, "", "auth", "status", "-o", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Authenticated)
	assert.Equal(t, "valid", status.State)

	out, _, err = e.run(t, "", "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	assert.NoFileExists(t, filepath.Join(e.dir, "session.json"))
}

func TestConfigCommands(t *testing.T) {
	e := newTestEnv(t)

	_, _, err := e.run(t, "", "config", "set", "page_size", "50")
	require.NoError(t, err)

	out, _, err := e.run(t, "", "config", "get", "page_size")
	require.NoError(t, err)
	assert.Equal(t, "50\n", out)

	saved, err := config.LoadFile(e.dir)
	require.NoError(t, err)
	assert.Equal(t, 50, saved.PageSize)
	assert.Equal(t, config.DefaultGatewayURL, saved.GatewayURL, "environment overrides are not persisted")

	_, _, err = e.run(t, "", "config", "set", "page_size", "500")
	assert.Error(t, err)

	_, _, err = e.run(t, "", "config", "set", "keycloak_realm", "other")
	assert.Error(t, err)

	e.login(t)
	out, _, err = e.run(t, "", "config", "get", "tenant_id")
	require.NoError(t, err)
	assert.Equal(t, "t-1\n", out)

	out, _, err = e.run(t, "", "config", "show", "-o", "json")
	require.NoError(t, err)
	var values map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &values))
	assert.Equal(t, "50", values["page_size"])
	assert.Equal(t, "t-1", values["tenant_id"])

	_, _, err = e.run(t, "n\n", "config", "reset")
	require.NoError(t, err)
	saved, _ = config.LoadFile(e.dir)
	assert.Equal(t, 50, saved.PageSize, "declined reset keeps settings")

	_, _, err = e.run(t, "", "config", "reset", "--yes")
	require.NoError(t, err)
	saved, _ = config.LoadFile(e.dir)
	assert.Equal(t, config.DefaultPageSize, saved.PageSize)
}

func TestApplicationsLifecycle(t *testing.T) {
	e := newTestEnv(t)

	_, _, err := e.run(t, "", "applications", "register", "--app-id", "reporter", "--connections", "slack:work")
	assert.Equal(t, ExitCodeAuthRequired, getExitCode(err))

	e.login(t)
	out, _, err := e.run(t, "", "applications", "register", "--app-id", "reporter", "--connections", "slack:work", "--scopes", "chat:write")
	require.NoError(t, err)
	assert.Contains(t, out, "act-1")
	assert.Contains(t, out, "afctl applications connect reporter --token act-1")

	_, _, err = e.run(t, "", "applications", "connect", "reporter", "--token", "wrong")
	assert.ErrorIs(t, err, api.ErrTokenInvalidOrExpired)

	out, errOut, err := e.run(t, "", "applications", "connect", "reporter", "--token", "act-1", "-o", "json")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(e.dir, "applications", "reporter.json"))
	var activated api.Application
	require.NoError(t, json.Unmarshal([]byte(out), &activated))
	assert.Equal(t, "sk-live-123", activated.SecretKey, "secret is shown once at activation")
	assert.Contains(t, errOut, "won't be shown again")

	out, _, err = e.run(t, "", "applications", "show", "reporter", "-o", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-live-123")

	out, _, err = e.run(t, "", "applications", "show", "reporter", "--reveal-secret", "-o", "json")
	require.NoError(t, err)
	var app api.Application
	require.NoError(t, json.Unmarshal([]byte(out), &app))
	assert.Equal(t, "sk-live-123", app.SecretKey)
	assert.Equal(t, "2026-10-17", app.CreatedAt.Date())

	out, _, err = e.run(t, "", "applications", "list", "--no-headers")
	require.NoError(t, err)
	assert.Contains(t, out, "reporter")

	// The server forgets the application: the next synced list purges it.
	e.gateway.mu.Lock()
	e.gateway.serverApps = nil
	e.gateway.mu.Unlock()

	out, _, err = e.run(t, "", "applications", "list", "--no-sync", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "reporter")

	out, errOut, err = e.run(t, "", "applications", "list", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
	assert.Contains(t, errOut, "removed 1 orphaned record(s)")
	assert.NoFileExists(t, filepath.Join(e.dir, "applications", "reporter.json"))
}

func TestApplicationsDelete(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	_, _, err := e.run(t, "", "applications", "register", "--app-id", "reporter", "--connections", "slack:work")
	require.NoError(t, err)
	_, _, err = e.run(t, "", "applications", "connect", "reporter", "--token", "act-1")
	require.NoError(t, err)

	out, _, err := e.run(t, "no\n", "applications", "delete", "reporter")
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted.")
	assert.FileExists(t, filepath.Join(e.dir, "applications", "reporter.json"))

	out, errOut, err := e.run(t, "y\n", "applications", "delete", "reporter")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted application reporter")
	assert.Contains(t, errOut, "Delete application reporter? Agents using its credentials will stop working. [y/N]")
	assert.NoFileExists(t, filepath.Join(e.dir, "applications", "reporter.json"))

	_, errOut, err = e.run(t, "", "applications", "delete", "reporter", "--yes")
	require.NoError(t, err)
	assert.Contains(t, errOut, "already deleted on the server")
	assert.Contains(t, errOut, "not cached locally")
}

func TestToolsCommands(t *testing.T) {
	e := newTestEnv(t)

	_, _, err := e.run(t, "", "tools", "list")
	assert.Equal(t, ExitCodeAuthRequired, getExitCode(err))

	e.login(t)
	e.gateway.connections = []api.ToolConnection{
		{ConnectionID: "docs", Tool: "google_docs", Method: api.MethodOAuth3, Connected: true},
		{ConnectionID: "work", Tool: "slack", Method: api.MethodAPICredentials},
	}

	out, _, err := e.run(t, "", "tools", "list", "--page-size", "5", "--no-headers")
	require.NoError(t, err)
	assert.Contains(t, out, "docs")
	assert.Contains(t, out, "Google Docs")
	assert.Equal(t, "5", e.gateway.lastQuery["page_size"])

	saved, err := config.LoadFile(e.dir)
	require.NoError(t, err)
	assert.Equal(t, 5, saved.PageSize)

	out, _, err = e.run(t, "", "tools", "get", "docs", "-o", "json")
	require.NoError(t, err)
	var conn api.ToolConnection
	require.NoError(t, json.Unmarshal([]byte(out), &conn))
	assert.True(t, conn.Connected)

	_, _, err = e.run(t, "", "tools", "disconnect", "docs", "--force")
	require.NoError(t, err)
	assert.Contains(t, e.gateway.requests, "DELETE /api/v1/tools/google/connection")

	_, _, err = e.run(t, "", "tools", "disconnect", "docs", "--force")
	assert.ErrorIs(t, err, api.ErrAlreadyDisconnected)
}

func TestToolsAddValidatesLocally(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	_, _, err := e.run(t, "", "tools", "add", "github", "--connection-id", "gh", "--method", "oauth3")
	assert.ErrorIs(t, err, api.ErrUnsupportedMethod)

	_, _, err = e.run(t, "", "tools", "add", "slack", "--connection-id", "s", "--method", "api_credentials", "--client-id", "only-id")
	assert.ErrorIs(t, err, api.ErrMissingCredentialInput)

	_, _, err = e.run(t, "", "tools", "add", "slack", "--connection-id", "s", "--method", "magic")
	assert.ErrorIs(t, err, api.ErrUnsupportedMethod)

	assert.Empty(t, e.gateway.requests)
}

func TestToolsInvokeRejectsBadParams(t *testing.T) {
	e := newTestEnv(t)
	_, _, err := e.run(t, "", "tools", "invoke", "work", "--method", "post", "--params", "[1,2]")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--params must be a JSON object")
}
