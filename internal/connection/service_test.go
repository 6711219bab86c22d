package connection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"afctl/internal/api"
	"afctl/internal/credmethod"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_PassesPagingParameters(t *testing.T) {
	fg, svc := newFakeGateway(t, api.ToolConnection{ConnectionID: "slack-work", Tool: "slack"})

	conns, err := svc.List(context.Background(), ListOptions{Page: 2, PageSize: 10, Search: "work", ToolFilter: "slack"})
	require.NoError(t, err)
	require.Len(t, conns, 1)

	calls := fg.callsMatching(http.MethodGet, userConnectionsPath)
	require.Len(t, calls, 1)
	q, err := url.ParseQuery(calls[0].Query)
	require.NoError(t, err)
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "10", q.Get("page_size"))
	assert.Equal(t, "work", q.Get("search"))
	assert.Equal(t, "slack", q.Get("tool_filter"))
}

func TestGet(t *testing.T) {
	_, svc := newFakeGateway(t,
		api.ToolConnection{ConnectionID: "work", Tool: "slack"},
		api.ToolConnection{ConnectionID: "docs", Tool: "google_docs"},
	)
	ctx := context.Background()

	conn, err := svc.Get(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "google_docs", conn.Tool)

	conn, err = svc.Get(ctx, "slack")
	require.NoError(t, err)
	assert.Equal(t, "work", conn.ConnectionID)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.Contains(t, err.Error(), "work, docs")
}

func TestAdd_RejectsBeforeAnyNetworkCall(t *testing.T) {
	tests := []struct {
		name string
		req  AddRequest
		want error
	}{
		{
			name: "oauth3 outside allow-list",
			req:  AddRequest{Tool: "github", ConnectionID: "gh", Method: api.MethodOAuth3},
			want: api.ErrUnsupportedMethod,
		},
		{
			name: "api_credentials without input",
			req:  AddRequest{Tool: "slack", ConnectionID: "s", Method: api.MethodAPICredentials},
			want: api.ErrMissingCredentialInput,
		},
		{
			name: "partial client pair",
			req: AddRequest{Tool: "google_drive", ConnectionID: "d", Method: api.MethodAPICredentials,
				Credentials: credmethod.CredentialInput{ClientID: "id"}},
			want: api.ErrMissingCredentialInput,
		},
		{
			name: "bare umbrella",
			req:  AddRequest{Tool: "google", ConnectionID: "g", Method: api.MethodOAuth3},
			want: api.ErrAmbiguousTool,
		},
		{
			name: "deprecated oauth",
			req:  AddRequest{Tool: "github", ConnectionID: "gh", Method: api.MethodOAuth},
			want: api.ErrUnsupportedMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fg, svc := newFakeGateway(t)
			_, err := svc.Add(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, fg.callCount(), "no request may be sent")
		})
	}
}

func TestAdd_StoresCredentials(t *testing.T) {
	tests := []struct {
		name        string
		req         AddRequest
		wantPath    string
		wantQuery   url.Values
		wantBody    map[string]any
		noStoreCall bool
	}{
		{
			name:      "token for generic tool",
			req:       AddRequest{Tool: "github", ConnectionID: "gh", Method: api.MethodAPICredentials, Credentials: credmethod.CredentialInput{Token: "ghp_x"}},
			wantPath:  "/api/v1/tools/github/connection",
			wantQuery: url.Values{"connection_id": {"gh"}},
			wantBody:  map[string]any{"api_token": "ghp_x"},
		},
		{
			name:      "notion integration token",
			req:       AddRequest{Tool: "notion", ConnectionID: "n", Method: api.MethodAPICredentials, Credentials: credmethod.CredentialInput{Token: "secret_x"}},
			wantPath:  "/api/v1/tools/notion/config",
			wantQuery: url.Values{"connection_id": {"n"}},
			wantBody:  map[string]any{"integration_token": "secret_x"},
		},
		{
			name: "google client pair uses umbrella namespace",
			req: AddRequest{Tool: "google_docs", ConnectionID: "docs", Method: api.MethodAPICredentials,
				Credentials: credmethod.CredentialInput{ClientID: "cid", ClientSecret: "csecret"}},
			wantPath:  "/api/v1/tools/google/config",
			wantQuery: url.Values{"connection_id": {"docs"}, "tool_type": {"google_docs"}},
			wantBody:  map[string]any{"client_id": "cid", "client_secret": "csecret"},
		},
		{
			name:        "oauth3 stores nothing",
			req:         AddRequest{Tool: "slack", ConnectionID: "s", Method: api.MethodOAuth3},
			noStoreCall: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fg, svc := newFakeGateway(t)
			_, err := svc.Add(context.Background(), tt.req)
			require.NoError(t, err)

			creates := fg.callsMatching(http.MethodPost, userConnectionsPath)
			require.Len(t, creates, 1)
			assert.Equal(t, tt.req.Tool, creates[0].Body["tool"])
			assert.Equal(t, tt.req.ConnectionID, creates[0].Body["connection_id"])
			assert.Equal(t, tt.req.ConnectionID, creates[0].Body["display_name"])
			assert.Equal(t, string(tt.req.Method), creates[0].Body["method"])

			all := fg.callsMatching(http.MethodPost, "")
			if tt.noStoreCall {
				assert.Len(t, all, 1)
				return
			}
			require.Len(t, all, 2)
			store := all[1]
			assert.Equal(t, tt.wantPath, store.Path)
			q, _ := url.ParseQuery(store.Query)
			assert.Equal(t, tt.wantQuery, q)
			for k, v := range tt.wantBody {
				assert.Equal(t, v, store.Body[k])
			}
		})
	}
}

func TestAdd_DefaultRedirectURI(t *testing.T) {
	fg, svc := newFakeGateway(t)
	result, err := svc.Add(context.Background(), AddRequest{
		Tool: "slack", ConnectionID: "s", Method: api.MethodAPICredentials,
		Credentials: credmethod.CredentialInput{ClientID: "id", ClientSecret: "secret"},
	})
	require.NoError(t, err)
	assert.True(t, result.StoredClient)
	assert.Equal(t, svc.gw.BaseURL()+"/api/v1/tools/slack/oauth/callback", result.RedirectURI)

	stores := fg.callsMatching(http.MethodPost, "/config")
	require.Len(t, stores, 1)
	assert.Equal(t, result.RedirectURI, stores[0].Body["redirect_uri"])
}

func TestAdd_CreateFailureSkipsCredentialStorage(t *testing.T) {
	fg, svc := newFakeGateway(t)
	fg.statusOverride[http.MethodPost+" "+userConnectionsPath] = http.StatusConflict

	_, err := svc.Add(context.Background(), AddRequest{Tool: "github", ConnectionID: "gh", Method: api.MethodAPICredentials, Credentials: credmethod.CredentialInput{Token: "t"}})
	assert.ErrorIs(t, err, api.ErrRemote)
	assert.Empty(t, fg.callsMatching(http.MethodPost, "/connection"))
}

func TestDisconnect_TwiceYieldsAlreadyDisconnected(t *testing.T) {
	fg, svc := newFakeGateway(t, api.ToolConnection{ConnectionID: "docs", Tool: "google_docs", Method: api.MethodOAuth3, Connected: true})
	ctx := context.Background()

	conn, err := svc.Disconnect(ctx, "docs", nil)
	require.NoError(t, err)
	assert.Equal(t, api.StateConfigured, conn.State())

	_, err = svc.Disconnect(ctx, "docs", nil)
	assert.ErrorIs(t, err, api.ErrAlreadyDisconnected)

	deletes := fg.callsMatching(http.MethodDelete, "/connection")
	require.Len(t, deletes, 1)
	assert.Equal(t, "/api/v1/tools/google/connection", deletes[0].Path)
	q, _ := url.ParseQuery(deletes[0].Query)
	assert.Equal(t, "google_docs", q.Get("tool_type"))
	assert.Equal(t, "docs", q.Get("connection_id"))
}

func TestDisconnect_DeclinedConfirmation(t *testing.T) {
	fg, svc := newFakeGateway(t, api.ToolConnection{ConnectionID: "s", Tool: "slack", Connected: true})

	_, err := svc.Disconnect(context.Background(), "s", func(api.ToolConnection) bool { return false })
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, fg.callsMatching(http.MethodDelete, ""))
}

func TestDisconnect_NotFound(t *testing.T) {
	_, svc := newFakeGateway(t)
	_, err := svc.Disconnect(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestRemove(t *testing.T) {
	fg, svc := newFakeGateway(t, api.ToolConnection{ConnectionID: "s", Tool: "slack"})
	ctx := context.Background()

	result, err := svc.Remove(ctx, "s", nil)
	require.NoError(t, err)
	assert.False(t, result.AlreadyGone)
	assert.Equal(t, "slack", result.Connection.Tool)

	deletes := fg.callsMatching(http.MethodDelete, "/user-connections/s")
	assert.Len(t, deletes, 1)

	_, err = svc.Remove(ctx, "s", nil)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestRemove_ServerAlreadyGone(t *testing.T) {
	fg, svc := newFakeGateway(t, api.ToolConnection{ConnectionID: "s", Tool: "slack"})
	fg.statusOverride[http.MethodDelete+" "+userConnectionsPath+"/s"] = http.StatusNotFound

	result, err := svc.Remove(context.Background(), "s", nil)
	require.NoError(t, err)
	assert.True(t, result.AlreadyGone)
}

func TestInvoke(t *testing.T) {
	fg, svc := newFakeGateway(t, api.ToolConnection{ConnectionID: "s", Tool: "slack", Connected: true})

	raw, err := svc.Invoke(context.Background(), "s", "post_message", map[string]any{"channel": "#general"})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, map[string]any{"ok": true}, out["result"])

	invokes := fg.callsMatching(http.MethodPost, "/invoke")
	require.Len(t, invokes, 1)
	assert.Equal(t, "/api/v1/tools/connections/s/invoke", invokes[0].Path)
	assert.Equal(t, "post_message", invokes[0].Body["method"])
	assert.Equal(t, map[string]any{"channel": "#general"}, invokes[0].Body["parameters"])

	_, err = svc.Invoke(context.Background(), "ghost", "x", nil)
	assert.ErrorIs(t, err, api.ErrNotFound)
}
