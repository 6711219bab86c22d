package activation

import (
	"fmt"
	"strings"
)

// ParseConnections parses "tool:connection-id,..." into a connection id to
// scope map with empty scope lists.
func ParseConnections(spec string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		tool, connID, ok := strings.Cut(pair, ":")
		tool, connID = strings.TrimSpace(tool), strings.TrimSpace(connID)
		if !ok || tool == "" || connID == "" || strings.Contains(connID, ":") {
			return nil, fmt.Errorf("invalid connection %q, expected format tool:connection-id", pair)
		}
		out[connID] = []string{}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one connection is required")
	}
	return out, nil
}

// ParseScopes splits a comma-separated scope list, dropping blanks.
func ParseScopes(spec string) []string {
	var out []string
	for _, s := range strings.Split(spec, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ApplyScopes grants every scope to every connection.
func ApplyScopes(connections map[string][]string, scopes []string) {
	for id := range connections {
		connections[id] = append([]string(nil), scopes...)
	}
}
