package reconciler

import (
	"context"
	"fmt"
	"strings"
)

// Outcome describes how a reconciliation pass ended.
type Outcome string

const (
	// OutcomeReconciled means the server set was fetched and orphans handled.
	OutcomeReconciled Outcome = "Reconciled"
	// OutcomeNoSession means the pass was skipped without contacting the server.
	OutcomeNoSession Outcome = "NoSession"
	// OutcomeFetchFailed means the server fetch failed and nothing was deleted.
	OutcomeFetchFailed Outcome = "FetchFailed"
	// OutcomeDisabled means the caller asked not to sync.
	OutcomeDisabled Outcome = "Disabled"
)

// FetchFunc returns the identifiers of every entity known to the server.
type FetchFunc func(ctx context.Context) ([]string, error)

// DeleteFunc removes one entity from the local cache.
type DeleteFunc func(ctx context.Context, key string) error

// DeleteFailure records an orphan that could not be removed locally.
type DeleteFailure struct {
	Key string
	Err error
}

// Result summarizes one reconciliation pass.
type Result struct {
	Outcome Outcome

	// Purged lists the orphans removed from the local cache, in local order.
	Purged []string

	// Failed lists orphans whose local delete failed.
	Failed []DeleteFailure

	// Err is the fetch error when Outcome is OutcomeFetchFailed.
	Err error
}

// Skipped reports whether the pass did not compare against the server.
func (r Result) Skipped() bool {
	return r.Outcome != OutcomeReconciled
}

// Summary returns a one-line description for logs and operator output.
func (r Result) Summary(name string) string {
	switch r.Outcome {
	case OutcomeNoSession:
		return fmt.Sprintf("%s: not logged in, showing local cache only", name)
	case OutcomeDisabled:
		return fmt.Sprintf("%s: sync disabled, showing local cache", name)
	case OutcomeFetchFailed:
		return fmt.Sprintf("%s: could not sync with server (%v), showing local cache", name, r.Err)
	}
	if len(r.Purged) == 0 && len(r.Failed) == 0 {
		return fmt.Sprintf("%s: local cache in sync", name)
	}
	msg := fmt.Sprintf("%s: removed %d orphaned record(s)", name, len(r.Purged))
	if len(r.Purged) > 0 {
		msg += " (" + strings.Join(r.Purged, ", ") + ")"
	}
	if len(r.Failed) > 0 {
		msg += fmt.Sprintf(", %d could not be removed", len(r.Failed))
	}
	return msg
}
