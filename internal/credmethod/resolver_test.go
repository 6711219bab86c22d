package credmethod

import (
	"testing"

	"afctl/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_UmbrellaNamespaceForWorkspaceMembers(t *testing.T) {
	methods := []api.CredentialMethod{api.MethodAPICredentials, api.MethodOAuth3, api.MethodOAuth}
	tools := append(GoogleMembers(), "google_keep")

	for _, tool := range tools {
		for _, method := range methods {
			t.Run(tool+"/"+string(method), func(t *testing.T) {
				res, err := Resolve(tool, method)
				require.NoError(t, err)
				assert.Equal(t, GoogleUmbrella, res.Namespace)
				assert.Equal(t, tool, res.ToolType)
				assert.NotEqual(t, tool, res.Namespace)
				assert.NotEqual(t, tool, res.AuthorizeNamespace)
			})
		}
	}
}

func TestResolve_OAuth3OutsideAllowList(t *testing.T) {
	for _, tool := range []string{"github", "jira", "confluence", "custom_tool"} {
		t.Run(tool, func(t *testing.T) {
			_, err := Resolve(tool, api.MethodOAuth3)
			assert.ErrorIs(t, err, api.ErrUnsupportedMethod)
		})
	}
}

func TestResolve_Table(t *testing.T) {
	tests := []struct {
		tool          string
		method        api.CredentialMethod
		wantNS        string
		wantAuthNS    string
		wantToolType  string
		wantErrorKind api.ErrorKind
	}{
		{tool: "google_docs", method: api.MethodOAuth3, wantNS: "google", wantAuthNS: "google_oauth", wantToolType: "google_docs"},
		{tool: "gmail", method: api.MethodAPICredentials, wantNS: "google", wantAuthNS: "google", wantToolType: "gmail"},
		{tool: "notion", method: api.MethodOAuth3, wantNS: "notion", wantAuthNS: "notion_oauth"},
		{tool: "notion", method: api.MethodAPICredentials, wantNS: "notion", wantAuthNS: "notion"},
		{tool: "slack", method: api.MethodOAuth3, wantNS: "slack", wantAuthNS: "slack"},
		{tool: "github", method: api.MethodAPICredentials, wantNS: "github", wantAuthNS: "github"},
		{tool: "github", method: api.MethodOAuth, wantNS: "github", wantAuthNS: "github"},
		{tool: "google", method: api.MethodOAuth3, wantErrorKind: api.KindAmbiguousTool},
		{tool: "google", method: api.MethodAPICredentials, wantErrorKind: api.KindAmbiguousTool},
		{tool: "slack", method: "saml", wantErrorKind: api.KindUnsupportedMethod},
	}

	for _, tt := range tests {
		t.Run(tt.tool+"/"+string(tt.method), func(t *testing.T) {
			res, err := Resolve(tt.tool, tt.method)
			if tt.wantErrorKind != "" {
				assert.Equal(t, tt.wantErrorKind, api.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNS, res.Namespace)
			assert.Equal(t, tt.wantAuthNS, res.AuthorizeNamespace)
			assert.Equal(t, tt.wantToolType, res.ToolType)
		})
	}
}

func TestResolve_AmbiguousToolListsMembers(t *testing.T) {
	_, err := Resolve("google", api.MethodAPICredentials)
	require.Error(t, err)
	for _, m := range GoogleMembers() {
		assert.Contains(t, err.Error(), m)
	}
}

func TestResolution_Query(t *testing.T) {
	res, err := Resolve("google_sheets", api.MethodOAuth3)
	require.NoError(t, err)

	q := res.Query("sheets-1")
	assert.Equal(t, "sheets-1", q.Get("connection_id"))
	assert.Equal(t, "google_sheets", q.Get("tool_type"))
	assert.Empty(t, q.Get("method"))

	aq := res.AuthorizeQuery("sheets-1")
	assert.Equal(t, "oauth3", aq.Get("method"))

	res, err = Resolve("github", api.MethodAPICredentials)
	require.NoError(t, err)
	aq = res.AuthorizeQuery("gh")
	assert.Equal(t, "connection_id=gh", aq.Encode())
}

func TestValidateCredentialInput(t *testing.T) {
	tests := []struct {
		name     string
		method   api.CredentialMethod
		in       CredentialInput
		wantKind api.ErrorKind
	}{
		{name: "token", method: api.MethodAPICredentials, in: CredentialInput{Token: "xoxb"}},
		{name: "client pair", method: api.MethodAPICredentials, in: CredentialInput{ClientID: "id", ClientSecret: "secret"}},
		{name: "neither", method: api.MethodAPICredentials, wantKind: api.KindMissingCredentialInput},
		{name: "whitespace token", method: api.MethodAPICredentials, in: CredentialInput{Token: "  "}, wantKind: api.KindMissingCredentialInput},
		{name: "id only", method: api.MethodAPICredentials, in: CredentialInput{ClientID: "id"}, wantKind: api.KindMissingCredentialInput},
		{name: "secret only", method: api.MethodAPICredentials, in: CredentialInput{ClientSecret: "s"}, wantKind: api.KindMissingCredentialInput},
		{name: "oauth3 needs nothing", method: api.MethodOAuth3},
		{name: "legacy oauth rejected", method: api.MethodOAuth, wantKind: api.KindUnsupportedMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredentialInput(tt.method, tt.in)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantKind, api.KindOf(err))
		})
	}
}
