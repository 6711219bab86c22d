package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"afctl/internal/api"
	"afctl/internal/credmethod"
	"afctl/internal/gateway"
	"afctl/pkg/logging"
)

const (
	userConnectionsPath = "/api/v1/user-connections"
	toolsPath           = "/api/v1/tools"
)

// ErrCancelled is returned when the operator declines a confirmation.
var ErrCancelled = errors.New("cancelled")

// ConfirmFunc asks the operator to approve an action on conn. A nil
// ConfirmFunc approves everything.
type ConfirmFunc func(conn api.ToolConnection) bool

// Gateway is the subset of the gateway client the service needs.
type Gateway interface {
	Get(ctx context.Context, path string, query url.Values) (*gateway.Response, error)
	Post(ctx context.Context, path string, query url.Values, body any) (*gateway.Response, error)
	Delete(ctx context.Context, path string, query url.Values) (*gateway.Response, error)
	BaseURL() string
}

// Service performs connection lifecycle calls.
type Service struct {
	gw Gateway
}

// NewService returns a Service using gw.
func NewService(gw Gateway) *Service {
	return &Service{gw: gw}
}

// ListOptions filters and pages List.
type ListOptions struct {
	Page       int
	PageSize   int
	Search     string
	ToolFilter string
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.ToolFilter != "" {
		q.Set("tool_filter", o.ToolFilter)
	}
	return q
}

// List returns the operator's connections.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]api.ToolConnection, error) {
	resp, err := s.gw.Get(ctx, userConnectionsPath, opts.query())
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, gateway.ResponseError(resp, api.KindRemote, "list connections")
	}

	var conns []api.ToolConnection
	if err := resp.Decode(&conns); err != nil {
		return nil, err
	}
	return conns, nil
}

// find returns the connection with exactly this id.
func (s *Service) find(ctx context.Context, connectionID string) (*api.ToolConnection, error) {
	conns, err := s.List(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	for i := range conns {
		if conns[i].ConnectionID == connectionID {
			return &conns[i], nil
		}
	}
	return nil, notFound(connectionID, conns)
}

func notFound(connectionID string, available []api.ToolConnection) error {
	if len(available) == 0 {
		return api.NewError(api.KindNotFound, "connection %q not found, no connections exist", connectionID)
	}
	ids := make([]string, 0, len(available))
	for _, c := range available {
		ids = append(ids, c.ConnectionID)
	}
	return api.NewError(api.KindNotFound, "connection %q not found, available: %s", connectionID, strings.Join(ids, ", "))
}

// Get returns a connection by id. When no id matches, a connection of that
// tool is returned instead.
func (s *Service) Get(ctx context.Context, connectionID string) (*api.ToolConnection, error) {
	conns, err := s.List(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	for i := range conns {
		if conns[i].ConnectionID == connectionID {
			return &conns[i], nil
		}
	}
	for i := range conns {
		if conns[i].Tool == connectionID {
			return &conns[i], nil
		}
	}
	return nil, notFound(connectionID, conns)
}

// AddRequest describes a new connection.
type AddRequest struct {
	Tool         string
	ConnectionID string
	DisplayName  string
	Method       api.CredentialMethod
	Credentials  credmethod.CredentialInput
}

// AddResult reports what Add stored.
type AddResult struct {
	Resolution credmethod.Resolution `json:"resolution"`
	// StoredToken is set when a bearer token was stored.
	StoredToken bool `json:"stored_token"`
	// StoredClient is set when an OAuth client pair was stored.
	StoredClient bool `json:"stored_client"`
	// RedirectURI is the redirect registered for a client pair.
	RedirectURI string `json:"redirect_uri,omitempty"`
}

type createRequest struct {
	Tool         string `json:"tool"`
	ConnectionID string `json:"connection_id"`
	DisplayName  string `json:"display_name,omitempty"`
	Method       string `json:"method"`
}

// Add creates the connection entry and stores its credentials. Every check
// runs before the first gateway call.
func (s *Service) Add(ctx context.Context, req AddRequest) (*AddResult, error) {
	if strings.TrimSpace(req.ConnectionID) == "" {
		return nil, fmt.Errorf("connection id is required")
	}
	res, err := credmethod.Resolve(req.Tool, req.Method)
	if err != nil {
		return nil, err
	}
	if err := credmethod.ValidateCredentialInput(req.Method, req.Credentials); err != nil {
		return nil, err
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.ConnectionID
	}
	resp, err := s.gw.Post(ctx, userConnectionsPath, nil, createRequest{
		Tool:         res.Tool,
		ConnectionID: req.ConnectionID,
		DisplayName:  displayName,
		Method:       string(req.Method),
	})
	if err != nil {
		return nil, fmt.Errorf("create connection %s: %w", req.ConnectionID, err)
	}
	if !success(resp.StatusCode) {
		return nil, gateway.ResponseError(resp, api.KindRemote, "create connection")
	}
	logging.Info("Connection", "Created connection %s for %s (%s)", req.ConnectionID, res.Tool, req.Method)

	result := &AddResult{Resolution: res}
	if req.Method != api.MethodAPICredentials {
		return result, nil
	}

	if req.Credentials.HasToken() {
		if err := s.storeToken(ctx, res, req.ConnectionID, req.Credentials.Token); err != nil {
			return nil, err
		}
		result.StoredToken = true
		return result, nil
	}

	redirect := req.Credentials.RedirectURI
	if redirect == "" {
		redirect = fmt.Sprintf("%s%s/%s/oauth/callback", s.gw.BaseURL(), toolsPath, res.Namespace)
	}
	if err := s.storeClient(ctx, res, req.ConnectionID, req.Credentials, redirect); err != nil {
		return nil, err
	}
	result.StoredClient = true
	result.RedirectURI = redirect
	return result, nil
}

func (s *Service) storeToken(ctx context.Context, res credmethod.Resolution, connectionID, token string) error {
	var (
		path string
		body map[string]string
	)
	// Notion keeps integration tokens with its config, everything else
	// stores the token as the connection credential.
	if res.Namespace == "notion" {
		path = toolsPath + "/notion/config"
		body = map[string]string{"integration_token": token}
	} else {
		path = fmt.Sprintf("%s/%s/connection", toolsPath, res.Namespace)
		body = map[string]string{"api_token": token}
	}

	resp, err := s.gw.Post(ctx, path, res.Query(connectionID), body)
	if err != nil {
		return fmt.Errorf("store credentials for %s: %w", connectionID, err)
	}
	if !success(resp.StatusCode) {
		return gateway.ResponseError(resp, api.KindRemote, "store credentials")
	}
	logging.Audit(logging.AuditEvent{Action: "tool_token_stored", Outcome: "success", Target: connectionID})
	return nil
}

func (s *Service) storeClient(ctx context.Context, res credmethod.Resolution, connectionID string, in credmethod.CredentialInput, redirect string) error {
	body := map[string]string{
		"client_id":     in.ClientID,
		"client_secret": in.ClientSecret,
		"redirect_uri":  redirect,
	}
	resp, err := s.gw.Post(ctx, fmt.Sprintf("%s/%s/config", toolsPath, res.Namespace), res.Query(connectionID), body)
	if err != nil {
		return fmt.Errorf("store OAuth client for %s: %w", connectionID, err)
	}
	if !success(resp.StatusCode) {
		return gateway.ResponseError(resp, api.KindRemote, "store OAuth client")
	}
	logging.Audit(logging.AuditEvent{Action: "tool_client_stored", Outcome: "success", Target: connectionID})
	return nil
}

// Disconnect deletes the stored credentials of a connected connection. The
// entry is kept in the configured state.
func (s *Service) Disconnect(ctx context.Context, connectionID string, confirm ConfirmFunc) (*api.ToolConnection, error) {
	conn, err := s.find(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.Connected {
		return nil, api.NewError(api.KindAlreadyDisconnected, "connection %q is not connected", connectionID)
	}
	if confirm != nil && !confirm(*conn) {
		return nil, ErrCancelled
	}

	res, err := credmethod.Resolve(conn.Tool, conn.EffectiveMethod())
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s/%s/connection", toolsPath, res.Namespace)
	resp, err := s.gw.Delete(ctx, path, res.Query(connectionID))
	if err != nil {
		return nil, fmt.Errorf("disconnect %s: %w", connectionID, err)
	}
	switch {
	case success(resp.StatusCode):
	case resp.StatusCode == http.StatusNotFound:
		logging.Warn("Connection", "Credentials of %s were already gone", connectionID)
	default:
		return nil, gateway.ResponseError(resp, api.KindRemote, "disconnect")
	}

	logging.Audit(logging.AuditEvent{Action: "tool_disconnected", Outcome: "success", Target: connectionID})
	conn.Connected = false
	return conn, nil
}

// RemoveResult reports what Remove found.
type RemoveResult struct {
	Connection api.ToolConnection `json:"connection"`
	// AlreadyGone is set when the gateway answered 404 to the delete.
	AlreadyGone bool `json:"already_gone"`
}

// Remove deletes the connection entry. The gateway cascades the credential
// deletion.
func (s *Service) Remove(ctx context.Context, connectionID string, confirm ConfirmFunc) (*RemoveResult, error) {
	conn, err := s.find(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if confirm != nil && !confirm(*conn) {
		return nil, ErrCancelled
	}

	resp, err := s.gw.Delete(ctx, userConnectionsPath+"/"+url.PathEscape(connectionID), nil)
	if err != nil {
		return nil, fmt.Errorf("remove %s: %w", connectionID, err)
	}

	result := &RemoveResult{Connection: *conn}
	switch {
	case success(resp.StatusCode):
	case resp.StatusCode == http.StatusNotFound:
		logging.Warn("Connection", "Connection %s was already removed on the server", connectionID)
		result.AlreadyGone = true
	default:
		return nil, gateway.ResponseError(resp, api.KindRemote, "remove connection")
	}

	logging.Audit(logging.AuditEvent{Action: "tool_removed", Outcome: "success", Target: connectionID})
	return result, nil
}

type invokeRequest struct {
	Method     string         `json:"method"`
	Parameters map[string]any `json:"parameters"`
}

// Invoke calls a tool method through a connection and returns the raw
// gateway response.
func (s *Service) Invoke(ctx context.Context, connectionID, method string, params map[string]any) (json.RawMessage, error) {
	if strings.TrimSpace(method) == "" {
		return nil, fmt.Errorf("method is required")
	}
	if _, err := s.find(ctx, connectionID); err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}

	path := fmt.Sprintf("%s/connections/%s/invoke", toolsPath, url.PathEscape(connectionID))
	resp, err := s.gw.Post(ctx, path, nil, invokeRequest{Method: method, Parameters: params})
	if err != nil {
		return nil, fmt.Errorf("invoke %s on %s: %w", method, connectionID, err)
	}
	if !success(resp.StatusCode) {
		return nil, gateway.ResponseError(resp, api.KindRemote, "invoke "+method)
	}
	return json.RawMessage(resp.Body), nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}
