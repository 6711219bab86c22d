package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"afctl/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Options{
		BaseURL:     server.URL,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "op-token"}),
		UserAgent:   "afctl-test",
	})
	require.NoError(t, err)
	return c
}

type failingSource struct{ err error }

func (f failingSource) Token() (*oauth2.Token, error) { return nil, f.err }

func TestNew_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "not-a-url", "/relative"} {
		_, err := New(Options{BaseURL: raw})
		assert.Error(t, err, raw)
	}
}

func TestClient_Do_SendsHeadersAndBody(t *testing.T) {
	var (
		gotAuth, gotRequestID, gotUA, gotQuery string
		gotBody                                map[string]any
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(RequestIDHeader)
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "/api/v1/applications/register", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"app_id":"bot"}`))
	})

	resp, err := c.Post(context.Background(), "/api/v1/applications/register", map[string][]string{"x": {"1"}}, map[string]string{"app_id": "bot"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Bearer op-token", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, gotRequestID, resp.RequestID)
	assert.Equal(t, "afctl-test", gotUA)
	assert.Equal(t, "x=1", gotQuery)
	assert.Equal(t, "bot", gotBody["app_id"])

	var out struct {
		AppID string `json:"app_id"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "bot", out.AppID)
}

func TestClient_Do_UniqueRequestIDs(t *testing.T) {
	seen := map[string]bool{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen[r.Header.Get(RequestIDHeader)] = true
	})

	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), "/x", nil)
		require.NoError(t, err)
	}
	assert.Len(t, seen, 3)
}

func TestClient_Do_NonSuccessStatusIsReturned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Activation token not found"}`))
	})

	resp, err := c.Get(context.Background(), "/api/v1/applications", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Activation token not found", resp.Detail())

	rerr := ResponseError(resp, api.KindRemote, "list applications")
	assert.ErrorIs(t, rerr, api.ErrRemote)
	assert.Contains(t, rerr.Error(), "HTTP 404")
	assert.Contains(t, rerr.Error(), "Activation token not found")
	var apiErr *api.Error
	require.True(t, errors.As(rerr, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClient_Do_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Token expired"}`))
	})

	_, err := c.Get(context.Background(), "/api/v1/user-connections", nil)
	assert.ErrorIs(t, err, api.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "Token expired")
}

func TestClient_Do_NoSession(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	t.Run("nil token source", func(t *testing.T) {
		c, err := New(Options{BaseURL: server.URL})
		require.NoError(t, err)

		_, err = c.Get(context.Background(), "/x", nil)
		assert.ErrorIs(t, err, api.ErrUnauthenticated)
	})

	t.Run("token source reports expiry", func(t *testing.T) {
		c, err := New(Options{BaseURL: server.URL, TokenSource: failingSource{err: api.NewError(api.KindUnauthenticated, "session expired")}})
		require.NoError(t, err)

		_, err = c.Get(context.Background(), "/x", nil)
		assert.ErrorIs(t, err, api.ErrUnauthenticated)
	})

	assert.False(t, called, "no request may reach the server without a session")
}

func TestClient_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := New(Options{BaseURL: url, TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"})})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/api/v1/applications", nil)
	assert.ErrorIs(t, err, api.ErrNetwork)
}

func TestClient_Do_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, "/x", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_BaseURL(t *testing.T) {
	c, err := New(Options{BaseURL: "https://gw.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example.com", c.BaseURL())
}
