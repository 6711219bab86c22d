// Package reconciler keeps a local cache consistent with the server.
//
// # Overview
//
// Reconciliation is pull-only cleanup: the engine fetches the authoritative
// set of identifiers from the server, computes the locally cached entities
// that are missing from it (the orphans) and deletes them from the local
// cache. Entities that exist on the server but not locally are never created
// by this pass.
//
// # Failure handling
//
//   - No valid session: the server is not contacted and the local view is
//     returned unchanged.
//   - The server fetch fails: reconciliation is skipped entirely, a warning
//     is logged and the local view is returned unchanged. Nothing is deleted.
//   - Deleting one orphan fails: the failure is recorded, that entity stays
//     in the returned view (it is still cached), and the remaining orphans
//     are purged.
//
// # Usage
//
//	engine := reconciler.Engine[api.Application]{
//	    Name:         "applications",
//	    Key:          api.Application.Key,
//	    SessionValid: sess.Valid,
//	    Fetch:        flow.ServerIDs,
//	    Delete:       st.Delete,
//	}
//	view, result := engine.Reconcile(ctx, local)
package reconciler
