package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"afctl/internal/api"
	"afctl/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout bounds a single gateway call.
	DefaultTimeout = 30 * time.Second

	// RequestIDHeader carries the per-call correlation id.
	RequestIDHeader = "X-Request-ID"

	maxResponseBody = 10 << 20
)

// Options configures a Client.
type Options struct {
	// BaseURL is the gateway root, e.g. https://dashboard.agenticfabriq.com.
	BaseURL string
	// TokenSource supplies the operator's bearer token. When nil every call
	// fails with Unauthenticated.
	TokenSource oauth2.TokenSource
	// HTTPClient is the underlying client. Its Transport is wrapped.
	HTTPClient *http.Client
	// Timeout overrides DefaultTimeout.
	Timeout time.Duration
	// UserAgent is sent with every request.
	UserAgent string
}

// Client performs authenticated calls against the gateway.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	anonymous bool
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid gateway URL %q", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	var baseTransport http.RoundTripper = http.DefaultTransport
	if opts.HTTPClient != nil && opts.HTTPClient.Transport != nil {
		baseTransport = opts.HTTPClient.Transport
	}

	transport := baseTransport
	if opts.TokenSource != nil {
		transport = &oauth2.Transport{Source: opts.TokenSource, Base: transport}
	}

	return &Client{
		baseURL:   base,
		http:      &http.Client{Transport: transport, Timeout: timeout},
		userAgent: opts.UserAgent,
		anonymous: opts.TokenSource == nil,
	}, nil
}

// BaseURL returns the gateway root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Response is a completed gateway call.
type Response struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	RequestID  string
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return api.WrapError(api.KindRemote, err, "unexpected response from %s %s", r.Method, r.Path)
	}
	return nil
}

// Detail returns the server-supplied error text.
func (r *Response) Detail() string {
	return ExtractDetail(r.Body)
}

// ResponseError builds an error of the given kind from a response, carrying
// the status code and the server detail.
func ResponseError(r *Response, kind api.ErrorKind, action string) error {
	detail := r.Detail()
	if detail == "" {
		detail = http.StatusText(r.StatusCode)
	}
	return &api.Error{
		Kind:       kind,
		Detail:     fmt.Sprintf("%s failed (HTTP %d): %s", action, r.StatusCode, detail),
		StatusCode: r.StatusCode,
	}
}

// Get issues a GET.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, query url.Values, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, query, body)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, query, nil)
}

// Do sends one request. Transport failures and 401 responses are returned as
// errors; every other status is returned in the Response for the caller to
// interpret.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	if c.anonymous {
		return nil, api.NewError(api.KindUnauthenticated, "not logged in, run 'afctl auth login'")
	}

	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, api.ErrUnauthenticated) {
			return nil, api.WrapError(api.KindUnauthenticated, err, "no valid session")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logging.Debug("Gateway", "%s %s failed: %v", method, path, err)
		return nil, networkError(err, method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, networkError(err, method, path)
	}

	out := &Response{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       data,
		RequestID:  req.Header.Get(RequestIDHeader),
	}
	logging.Debug("Gateway", "%s %s -> %d in %s (request_id=%s)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond), out.RequestID)

	if resp.StatusCode == http.StatusUnauthorized {
		err := ResponseError(out, api.KindUnauthenticated, method+" "+path)
		return nil, fmt.Errorf("%w; run 'afctl auth login'", err)
	}
	return out, nil
}
