package cli

import (
	"afctl/internal/api"
	"afctl/internal/gateway"

	"github.com/jedib0t/go-pretty/v6/text"
)

// hints maps error kinds to the next command the operator should run.
var hints = map[api.ErrorKind]string{
	api.KindUnauthenticated:        "Run 'afctl auth login' to sign in, then retry.",
	api.KindTokenInvalidOrExpired:  "Activation tokens are single use and expire after one hour. Register the application again to get a new one.",
	api.KindTokenOwnershipMismatch: "The activation token belongs to another user. Sign in as that user or register the application yourself.",
	api.KindUnsupportedMethod:      "Use --method api_credentials with your own token or OAuth client.",
	api.KindAmbiguousTool:          "Name a specific Google Workspace tool, e.g. google_drive or gmail.",
	api.KindMissingCredentialInput: "Pass --token, or both --client-id and --client-secret.",
	api.KindAuthorizationTimeout:   "Finish the authorization in the browser, then run 'afctl tools connect <connection-id>' again.",
	api.KindAlreadyDisconnected:    "Run 'afctl tools connect <connection-id>' to authorize it again.",
	api.KindNotFound:               "Run 'afctl tools list' or 'afctl applications list' to see what exists.",
}

// Hint returns the remediation hint for err, or "" when none applies.
func Hint(err error) string {
	if err == nil {
		return ""
	}
	kind := api.KindOf(err)
	if kind == api.KindNetwork {
		return networkHint(gateway.ClassifyConnectionError(err))
	}
	return hints[kind]
}

func networkHint(t gateway.ConnectionErrorType) string {
	switch t {
	case gateway.ConnectionErrorTLS:
		return "The gateway certificate could not be verified. Check gateway_url and your system trust store."
	case gateway.ConnectionErrorDNS:
		return "The gateway host name could not be resolved. Check gateway_url ('afctl config get gateway_url')."
	case gateway.ConnectionErrorTimeout:
		return "The gateway did not answer in time. Retry, or check your network connection."
	default:
		return "Check your network connection and the gateway_url setting ('afctl config get gateway_url')."
	}
}

// FormatError renders err for the terminal, followed by its hint.
func FormatError(err error) string {
	msg := text.FgRed.Sprint("Error: ") + err.Error()
	if hint := Hint(err); hint != "" {
		msg += "\n" + text.FgHiBlack.Sprint(hint)
	}
	return msg
}
