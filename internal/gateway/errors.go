package gateway

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"afctl/internal/api"
)

// ConnectionErrorType categorizes the type of connection error.
type ConnectionErrorType int

const (
	// ConnectionErrorUnknown indicates an unclassified connection error.
	ConnectionErrorUnknown ConnectionErrorType = iota
	// ConnectionErrorTLS indicates a TLS/certificate verification error.
	ConnectionErrorTLS
	// ConnectionErrorNetwork indicates a network connectivity error (e.g., refused, unreachable).
	ConnectionErrorNetwork
	// ConnectionErrorTimeout indicates a connection timeout.
	ConnectionErrorTimeout
	// ConnectionErrorDNS indicates a DNS resolution failure.
	ConnectionErrorDNS
)

// String returns a human-readable name for the connection error type.
func (t ConnectionErrorType) String() string {
	switch t {
	case ConnectionErrorTLS:
		return "TLS certificate error"
	case ConnectionErrorNetwork:
		return "Network error"
	case ConnectionErrorTimeout:
		return "Connection timeout"
	case ConnectionErrorDNS:
		return "DNS resolution error"
	default:
		return "Connection error"
	}
}

// ClassifyConnectionError inspects a transport error and returns its category.
func ClassifyConnectionError(err error) ConnectionErrorType {
	if err == nil {
		return ConnectionErrorUnknown
	}

	if isTLSError(err) {
		return ConnectionErrorTLS
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ConnectionErrorDNS
	}

	if isTimeoutError(err) {
		return ConnectionErrorTimeout
	}

	if isNetworkError(err.Error()) {
		return ConnectionErrorNetwork
	}

	return ConnectionErrorUnknown
}

// networkError wraps a transport failure as an api NetworkError.
func networkError(err error, method, endpoint string) error {
	kind := ClassifyConnectionError(err)
	return api.WrapError(api.KindNetwork, err, "%s talking to %s %s", kind, method, endpoint)
}

func isTLSError(err error) bool {
	var certErr *x509.CertificateInvalidError
	var hostErr *x509.HostnameError
	var unknownAuthErr *x509.UnknownAuthorityError
	var systemRootsErr *x509.SystemRootsError

	if errors.As(err, &certErr) || errors.As(err, &hostErr) ||
		errors.As(err, &unknownAuthErr) || errors.As(err, &systemRootsErr) {
		return true
	}

	// "certificate" covers most TLS-related messages
	errStr := err.Error()
	for _, keyword := range []string{"x509:", "certificate", "tls:", "TLS handshake"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

func isTimeoutError(err error) bool {
	// net.Error is an interface, walk the chain by hand
	for e := err; e != nil; {
		if ne, ok := e.(net.Error); ok && ne.Timeout() {
			return true
		}
		if u, ok := e.(interface{ Unwrap() error }); ok {
			e = u.Unwrap()
		} else {
			break
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

func isNetworkError(errStr string) bool {
	networkKeywords := []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
		"connect:",
	}

	for _, keyword := range networkKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

const maxRawDetail = 300

// ExtractDetail pulls the human-readable error text out of a response body.
// It understands {"detail": "..."}, validation lists such as
// {"detail": [{"msg": "..."}]}, and {"message"} or {"error"} bodies, and
// falls back to the raw text.
func ExtractDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return truncate(trimmed)
	}

	for _, field := range []string{"detail", "message", "error"} {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		if text := detailText(raw); text != "" {
			return text
		}
	}
	return truncate(trimmed)
}

func detailText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
		Loc []any  `json:"loc"`
	}
	if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg == "" {
				continue
			}
			if len(item.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", item.Loc[len(item.Loc)-1], item.Msg))
			} else {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		if msg, ok := obj["message"].(string); ok {
			return msg
		}
		return string(raw)
	}
	return ""
}

func truncate(s string) string {
	if len(s) > maxRawDetail {
		return s[:maxRawDetail] + "..."
	}
	return s
}
