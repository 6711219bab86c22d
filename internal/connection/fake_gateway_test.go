package connection

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"afctl/internal/api"
	"afctl/internal/gateway"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type call struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

// fakeGateway serves the connection endpoints from memory.
type fakeGateway struct {
	mu    sync.Mutex
	conns []api.ToolConnection
	calls []call

	// connectedAfter flips a connection to connected on the Nth list call
	// after initiation. Zero means never.
	connectedAfter int
	listsSinceInit int
	initiated      bool

	// hiddenPolls omits every entry from the first N list calls after
	// initiation.
	hiddenPolls int

	initiateResponse map[string]any
	statusOverride   map[string]int
}

func newFakeGateway(t *testing.T, conns ...api.ToolConnection) (*fakeGateway, *Service) {
	t.Helper()
	fg := &fakeGateway{
		conns:            conns,
		initiateResponse: map[string]any{"authorization_url": "https://accounts.example.com/auth?x=1"},
		statusOverride:   map[string]int{},
	}
	server := httptest.NewServer(http.HandlerFunc(fg.serve))
	t.Cleanup(server.Close)

	gw, err := gateway.New(gateway.Options{
		BaseURL:     server.URL,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "op"}),
	})
	require.NoError(t, err)
	return fg, NewService(gw)
}

func (fg *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	c := call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &c.Body)
	}
	fg.calls = append(fg.calls, c)

	if status, ok := fg.statusOverride[r.Method+" "+r.URL.Path]; ok {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"detail":"overridden"}`))
		return
	}

	connID := r.URL.Query().Get("connection_id")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == userConnectionsPath:
		if fg.initiated {
			fg.listsSinceInit++
			if fg.connectedAfter > 0 && fg.listsSinceInit >= fg.connectedAfter {
				for i := range fg.conns {
					fg.conns[i].Connected = true
				}
			}
			if fg.listsSinceInit <= fg.hiddenPolls {
				writeJSON(w, http.StatusOK, []api.ToolConnection{})
				return
			}
		}
		writeJSON(w, http.StatusOK, fg.conns)

	case r.Method == http.MethodPost && r.URL.Path == userConnectionsPath:
		fg.conns = append(fg.conns, api.ToolConnection{
			ConnectionID: c.Body["connection_id"].(string),
			Tool:         c.Body["tool"].(string),
			Method:       api.CredentialMethod(c.Body["method"].(string)),
		})
		writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/connect/initiate"):
		fg.initiated = true
		writeJSON(w, http.StatusOK, fg.initiateResponse)

	case r.Method == http.MethodPost && (strings.HasSuffix(r.URL.Path, "/config") || strings.HasSuffix(r.URL.Path, "/connection")):
		writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})

	case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/connection"):
		for i := range fg.conns {
			if fg.conns[i].ConnectionID == connID {
				fg.conns[i].Connected = false
			}
		}
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, userConnectionsPath+"/"):
		id := strings.TrimPrefix(r.URL.Path, userConnectionsPath+"/")
		for i := range fg.conns {
			if fg.conns[i].ConnectionID == id {
				fg.conns = append(fg.conns[:i], fg.conns[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/invoke"):
		writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"ok": true}})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (fg *fakeGateway) callsMatching(method, pathSuffix string) []call {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	var out []call
	for _, c := range fg.calls {
		if c.Method == method && strings.HasSuffix(c.Path, pathSuffix) {
			out = append(out, c)
		}
	}
	return out
}

func (fg *fakeGateway) callCount() int {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	return len(fg.calls)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
