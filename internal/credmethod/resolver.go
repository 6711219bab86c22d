// Package credmethod decides which gateway namespace and routing parameters
// apply to a (tool, credential method) pair.
//
// The rules are a declarative table of provider families rather than
// per-provider code paths, so adding a provider means adding a row.
package credmethod

import (
	"net/url"
	"sort"
	"strings"

	"afctl/internal/api"
)

// GoogleUmbrella is the shared namespace of the Google Workspace family.
const GoogleUmbrella = "google"

// googleMembers are the Workspace tools routed through the umbrella namespace.
var googleMembers = []string{
	"google_drive",
	"google_docs",
	"google_sheets",
	"google_slides",
	"gmail",
	"google_calendar",
	"google_meet",
	"google_forms",
	"google_classroom",
	"google_people",
	"google_chat",
	"google_tasks",
}

// family describes how a group of tools maps onto gateway namespaces.
type family struct {
	// namespace is the storage and management namespace.
	namespace string
	// umbrella families route members by tool_type.
	umbrella bool
	// oauth3 reports whether platform-managed OAuth is offered.
	oauth3 bool
	// oauth3Suffix, when set, is appended to the namespace for oauth3
	// authorization.
	oauth3Suffix string
}

var (
	googleFamily = family{namespace: GoogleUmbrella, umbrella: true, oauth3: true, oauth3Suffix: "_oauth"}

	families = map[string]family{
		"slack":  {namespace: "slack", oauth3: true},
		"notion": {namespace: "notion", oauth3: true, oauth3Suffix: "_oauth"},
	}
)

// GoogleMembers returns the Workspace tool ids in display order.
func GoogleMembers() []string {
	return append([]string(nil), googleMembers...)
}

// IsGoogleMember reports whether tool belongs to the Google Workspace family.
func IsGoogleMember(tool string) bool {
	if strings.HasPrefix(tool, GoogleUmbrella+"_") {
		return true
	}
	for _, m := range googleMembers {
		if m == tool {
			return true
		}
	}
	return false
}

func lookup(tool string) family {
	if IsGoogleMember(tool) {
		return googleFamily
	}
	if f, ok := families[tool]; ok {
		return f
	}
	return family{namespace: tool}
}

// OAuth3Tools lists the tool families that accept oauth3, for messages.
func OAuth3Tools() []string {
	out := []string{"google_*", "gmail"}
	names := make([]string, 0, len(families))
	for name, f := range families {
		if f.oauth3 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return append(out, names...)
}

// Resolution is the outcome of resolving a tool and method.
type Resolution struct {
	Tool   string               `json:"tool"`
	Method api.CredentialMethod `json:"method"`
	// Namespace is used for credential storage and credential deletion.
	Namespace string `json:"namespace"`
	// AuthorizeNamespace is used to initiate the browser authorization.
	AuthorizeNamespace string `json:"authorize_namespace"`
	// ToolType is the member routing parameter of umbrella families.
	ToolType string `json:"tool_type,omitempty"`
}

// Query returns the connection_id and, when set, tool_type query parameters.
func (r Resolution) Query(connectionID string) url.Values {
	q := url.Values{}
	q.Set("connection_id", connectionID)
	if r.ToolType != "" {
		q.Set("tool_type", r.ToolType)
	}
	return q
}

// AuthorizeQuery extends Query with the method parameter for oauth3.
func (r Resolution) AuthorizeQuery(connectionID string) url.Values {
	q := r.Query(connectionID)
	if r.Method == api.MethodOAuth3 {
		q.Set("method", string(r.Method))
	}
	return q
}

// Resolve applies the decision table. Rules are evaluated in order:
//  1. oauth3 on a tool outside the allow-listed families is UnsupportedMethod
//  2. Workspace members resolve to the umbrella namespace with tool_type set
//  3. oauth3 authorizes through the family's suffixed namespace when it has one
//  4. any other tool is its own namespace
//  5. the bare umbrella name is AmbiguousTool
func Resolve(tool string, method api.CredentialMethod) (Resolution, error) {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return Resolution{}, api.NewError(api.KindNotFound, "tool is required")
	}
	switch method {
	case api.MethodAPICredentials, api.MethodOAuth3, api.MethodOAuth:
	default:
		return Resolution{}, api.NewError(api.KindUnsupportedMethod, "unknown credential method %q", method)
	}

	if tool == GoogleUmbrella {
		return Resolution{}, api.NewError(api.KindAmbiguousTool,
			"'google' is not a specific tool, choose one of: %s", strings.Join(googleMembers, ", "))
	}

	f := lookup(tool)
	if method == api.MethodOAuth3 && !f.oauth3 {
		return Resolution{}, api.NewError(api.KindUnsupportedMethod,
			"method 'oauth3' is not available for %s, supported tools: %s", tool, strings.Join(OAuth3Tools(), ", "))
	}

	res := Resolution{
		Tool:               tool,
		Method:             method,
		Namespace:          f.namespace,
		AuthorizeNamespace: f.namespace,
	}
	if f.umbrella {
		res.ToolType = tool
	}
	if method == api.MethodOAuth3 && f.oauth3Suffix != "" {
		res.AuthorizeNamespace = f.namespace + f.oauth3Suffix
	}
	return res, nil
}
