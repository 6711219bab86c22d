package reconciler

import (
	"context"

	"afctl/pkg/logging"
)

// Engine reconciles a local cache of T against the server.
type Engine[T any] struct {
	// Name labels log lines, e.g. "applications".
	Name string
	// Key returns the identifier shared by the local and server records.
	Key func(T) string
	// SessionValid reports whether the operator holds a usable session.
	SessionValid func() bool
	// Fetch lists the server-side identifiers.
	Fetch FetchFunc
	// Delete removes one local entity.
	Delete DeleteFunc
}

// Reconcile purges local entities whose key the server no longer reports and
// returns the resulting local view in the original order.
func (e Engine[T]) Reconcile(ctx context.Context, local []T) ([]T, Result) {
	if e.SessionValid != nil && !e.SessionValid() {
		logging.Debug("Reconciler", "Skipping %s reconciliation: no valid session", e.Name)
		return local, Result{Outcome: OutcomeNoSession}
	}

	serverKeys, err := e.Fetch(ctx)
	if err != nil {
		logging.Warn("Reconciler", "Skipping %s reconciliation, server fetch failed: %v", e.Name, err)
		return local, Result{Outcome: OutcomeFetchFailed, Err: err}
	}

	onServer := make(map[string]struct{}, len(serverKeys))
	for _, k := range serverKeys {
		onServer[k] = struct{}{}
	}

	result := Result{Outcome: OutcomeReconciled}
	view := make([]T, 0, len(local))
	for _, item := range local {
		key := e.Key(item)
		if _, ok := onServer[key]; ok {
			view = append(view, item)
			continue
		}

		if err := e.Delete(ctx, key); err != nil {
			logging.Warn("Reconciler", "Failed to remove orphaned %s record %s: %v", e.Name, key, err)
			result.Failed = append(result.Failed, DeleteFailure{Key: key, Err: err})
			view = append(view, item)
			continue
		}
		logging.Info("Reconciler", "Removed orphaned %s record %s", e.Name, key)
		result.Purged = append(result.Purged, key)
	}

	return view, result
}
