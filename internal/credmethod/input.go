package credmethod

import (
	"strings"

	"afctl/internal/api"
)

// CredentialInput is what the operator supplies for api_credentials.
type CredentialInput struct {
	Token        string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// HasToken reports whether a bearer token was supplied.
func (in CredentialInput) HasToken() bool {
	return strings.TrimSpace(in.Token) != ""
}

// HasClientPair reports whether both halves of an OAuth client were supplied.
func (in CredentialInput) HasClientPair() bool {
	return strings.TrimSpace(in.ClientID) != "" && strings.TrimSpace(in.ClientSecret) != ""
}

// ValidateCredentialInput checks the input against the method for a new
// connection. api_credentials needs a token or a complete client pair. The
// deprecated oauth method cannot be used for new connections.
func ValidateCredentialInput(method api.CredentialMethod, in CredentialInput) error {
	switch method {
	case api.MethodOAuth:
		return api.NewError(api.KindUnsupportedMethod,
			"method 'oauth' is deprecated, use 'oauth3' for platform-managed OAuth or 'api_credentials' with your own client")
	case api.MethodOAuth3:
		return nil
	case api.MethodAPICredentials:
		if in.HasToken() || in.HasClientPair() {
			return nil
		}
		partial := strings.TrimSpace(in.ClientID) != "" || strings.TrimSpace(in.ClientSecret) != ""
		if partial {
			return api.NewError(api.KindMissingCredentialInput,
				"both a client id and a client secret are required for OAuth client credentials")
		}
		return api.NewError(api.KindMissingCredentialInput,
			"api_credentials requires either a token or a client id and client secret")
	default:
		return api.NewError(api.KindUnsupportedMethod, "unknown credential method %q", method)
	}
}
