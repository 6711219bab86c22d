package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"afctl/internal/api"
	"afctl/internal/config"
)

// Store is a keyed cache of Application records.
type Store interface {
	// Save inserts or replaces the record keyed by app.AppID.
	Save(ctx context.Context, app api.Application) error
	// Get returns the record or an api.ErrNotFound error.
	Get(ctx context.Context, appID string) (api.Application, error)
	// List returns every cached record ordered by app id.
	List(ctx context.Context) ([]api.Application, error)
	// Delete removes the record or returns an api.ErrNotFound error.
	Delete(ctx context.Context, appID string) error
	// Close releases resources held by the backend.
	Close() error
}

const (
	applicationsDirName = "applications"
	sqliteFileName      = "state.db"
)

// Open returns the backend selected by cfg.CacheBackend, rooted at cfg.Dir.
func Open(cfg config.Config) (Store, error) {
	switch cfg.CacheBackend {
	case config.CacheSQLite:
		return NewSQLiteStore(filepath.Join(cfg.Dir, sqliteFileName))
	case config.CacheFile, "":
		return NewFileStore(filepath.Join(cfg.Dir, applicationsDirName))
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// validateAppID rejects ids that cannot be used as a record key.
func validateAppID(appID string) error {
	if strings.TrimSpace(appID) == "" {
		return fmt.Errorf("app_id is required")
	}
	if strings.ContainsAny(appID, `/\`) || appID == "." || appID == ".." {
		return fmt.Errorf("invalid app_id %q", appID)
	}
	return nil
}

func notFound(appID string) error {
	return api.NewError(api.KindNotFound, "application %q not found in local cache", appID)
}
