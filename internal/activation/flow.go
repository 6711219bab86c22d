package activation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"afctl/internal/api"
	"afctl/internal/gateway"
	"afctl/internal/reconciler"
	"afctl/internal/store"
	"afctl/pkg/logging"
)

const applicationsPath = "/api/v1/applications"

// Gateway is the subset of the gateway client the flow needs.
type Gateway interface {
	Get(ctx context.Context, path string, query url.Values) (*gateway.Response, error)
	Post(ctx context.Context, path string, query url.Values, body any) (*gateway.Response, error)
	Delete(ctx context.Context, path string, query url.Values) (*gateway.Response, error)
	BaseURL() string
}

// Flow drives application registration, activation and deletion.
type Flow struct {
	gw           Gateway
	store        store.Store
	sessionValid func() bool
	now          func() time.Time
}

// NewFlow wires a Flow. sessionValid gates reconciliation in List; nil means
// the session is always considered valid.
func NewFlow(gw Gateway, st store.Store, sessionValid func() bool) *Flow {
	return &Flow{
		gw:           gw,
		store:        st,
		sessionValid: sessionValid,
		now:          time.Now,
	}
}

type registerRequest struct {
	AppID           string              `json:"app_id"`
	ToolConnections map[string][]string `json:"tool_connections"`
}

// Register creates an application and returns its activation ticket.
// Every call creates an independent registration.
func (f *Flow) Register(ctx context.Context, appID string, connections map[string][]string) (*api.RegistrationTicket, error) {
	if appID == "" {
		return nil, fmt.Errorf("app id is required")
	}
	if connections == nil {
		connections = map[string][]string{}
	}

	resp, err := f.gw.Post(ctx, applicationsPath+"/register", nil, registerRequest{AppID: appID, ToolConnections: connections})
	if err != nil {
		return nil, fmt.Errorf("register application %s: %w", appID, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, gateway.ResponseError(resp, api.KindRemote, "register application")
	}

	var ticket api.RegistrationTicket
	if err := resp.Decode(&ticket); err != nil {
		return nil, err
	}
	if ticket.AppID == "" {
		ticket.AppID = appID
	}
	if ticket.ExpiresAt.IsZero() {
		ticket.ExpiresAt = api.NewTimestamp(f.now().Add(api.ActivationTokenTTL))
	}
	logging.Info("Activation", "Registered application %s, activation token expires at %s", appID, ticket.ExpiresAt)
	return &ticket, nil
}

type activateRequest struct {
	ActivationToken string `json:"activation_token"`
}

// Activate exchanges an activation token for the permanent credentials and
// caches them.
func (f *Flow) Activate(ctx context.Context, appID, token string) (*api.Application, error) {
	if token == "" {
		return nil, api.NewError(api.KindTokenInvalidOrExpired, "activation token is required")
	}

	resp, err := f.gw.Post(ctx, applicationsPath+"/activate", nil, activateRequest{ActivationToken: token})
	if err != nil {
		return nil, fmt.Errorf("activate application %s: %w", appID, err)
	}

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusNotFound:
		return nil, gateway.ResponseError(resp, api.KindTokenInvalidOrExpired, "activate application")
	case http.StatusForbidden:
		return nil, gateway.ResponseError(resp, api.KindTokenOwnershipMismatch, "activate application")
	default:
		return nil, gateway.ResponseError(resp, api.KindRemote, "activate application")
	}

	var app api.Application
	if err := resp.Decode(&app); err != nil {
		return nil, err
	}
	if app.AppID == "" {
		app.AppID = appID
	}
	if appID != "" && app.AppID != appID {
		logging.Warn("Activation", "Token was issued for application %s, not %s; caching it as %s", app.AppID, appID, app.AppID)
	}
	if app.SecretKey == "" {
		return nil, api.NewError(api.KindRemote, "activation response did not include a secret key")
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = api.NewTimestamp(f.now().UTC())
	}
	app.GatewayURL = f.gw.BaseURL()

	if err := f.store.Save(ctx, app); err != nil {
		return nil, fmt.Errorf("application %s was activated but its credentials could not be cached: %w", app.AppID, err)
	}
	return &app, nil
}

// DeleteResult reports what Delete found.
type DeleteResult struct {
	// AlreadyGone is set when the gateway no longer knew the application.
	AlreadyGone bool
	// LocalMissing is set when nothing was cached locally.
	LocalMissing bool
}

// Delete removes the application on the gateway, then from the local cache.
// A gateway 404 is treated as already deleted. Any other gateway failure
// leaves the local cache untouched.
func (f *Flow) Delete(ctx context.Context, appID string) (DeleteResult, error) {
	var result DeleteResult

	resp, err := f.gw.Delete(ctx, applicationsPath+"/"+url.PathEscape(appID), nil)
	if err != nil {
		return result, fmt.Errorf("delete application %s: %w", appID, err)
	}
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
	case http.StatusNotFound:
		logging.Warn("Activation", "Application %s was not found on the server, removing local credentials only", appID)
		result.AlreadyGone = true
	default:
		return result, gateway.ResponseError(resp, api.KindRemote, "delete application")
	}

	if err := f.store.Delete(ctx, appID); err != nil {
		if !api.IsKind(err, api.KindNotFound) {
			return result, err
		}
		result.LocalMissing = true
	}
	return result, nil
}

type listResponse struct {
	Applications []api.ServerApplication `json:"applications"`
}

// ListServer returns the operator's applications as known to the gateway.
func (f *Flow) ListServer(ctx context.Context) ([]api.ServerApplication, error) {
	resp, err := f.gw.Get(ctx, applicationsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, gateway.ResponseError(resp, api.KindRemote, "list applications")
	}

	var out listResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Applications, nil
}

// ServerIDs returns the app ids known to the gateway.
func (f *Flow) ServerIDs(ctx context.Context) ([]string, error) {
	apps, err := f.ListServer(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.AppID)
	}
	return ids, nil
}

// List returns the cached applications. With sync set, orphaned records are
// first purged against the gateway; the returned Result says whether that
// happened.
func (f *Flow) List(ctx context.Context, sync bool) ([]api.Application, reconciler.Result, error) {
	local, err := f.store.List(ctx)
	if err != nil {
		return nil, reconciler.Result{}, err
	}
	if !sync {
		return local, reconciler.Result{Outcome: reconciler.OutcomeDisabled}, nil
	}

	engine := reconciler.Engine[api.Application]{
		Name:         "applications",
		Key:          api.Application.Key,
		SessionValid: f.sessionValid,
		Fetch:        f.ServerIDs,
		Delete:       f.store.Delete,
	}
	view, result := engine.Reconcile(ctx, local)
	return view, result, nil
}

// Show returns one cached application or a NotFound error.
func (f *Flow) Show(ctx context.Context, appID string) (*api.Application, error) {
	app, err := f.store.Get(ctx, appID)
	if err != nil {
		return nil, err
	}
	return &app, nil
}
