package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"afctl/internal/api"
	"afctl/pkg/logging"
)

// FileStore keeps one JSON file per application.
//
// SECURITY: files contain permanent secrets. They are created with 0600
// permissions in a 0700 directory and their contents are never logged.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore creates the storage directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create application storage directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(appID string) string {
	return filepath.Join(s.dir, appID+".json")
}

// Save writes the record atomically via a temp file and rename.
func (s *FileStore) Save(_ context.Context, app api.Application) error {
	if err := validateAppID(app.AppID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal application: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+app.AppID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write application: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write application: %w", err)
	}
	if err := os.Rename(tmpName, s.path(app.AppID)); err != nil {
		logging.Audit(logging.AuditEvent{Action: "secret_stored", Outcome: "failure", Target: app.AppID, Error: err.Error()})
		return fmt.Errorf("failed to persist application: %w", err)
	}

	logging.Audit(logging.AuditEvent{Action: "secret_stored", Outcome: "success", Target: app.AppID})
	return nil
}

// Get reads one record.
func (s *FileStore) Get(_ context.Context, appID string) (api.Application, error) {
	if err := validateAppID(appID); err != nil {
		return api.Application{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readFile(s.path(appID), appID)
}

func (s *FileStore) readFile(path, appID string) (api.Application, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return api.Application{}, notFound(appID)
	}
	if err != nil {
		return api.Application{}, fmt.Errorf("failed to read application %q: %w", appID, err)
	}

	var app api.Application
	if err := json.Unmarshal(data, &app); err != nil {
		return api.Application{}, fmt.Errorf("failed to parse application %q: %w", appID, err)
	}
	if app.AppID == "" {
		app.AppID = appID
	}
	return app, nil
}

// List reads every *.json file in the directory. In-flight temp files end in
// .tmp and are never listed. Unreadable files are skipped with a warning.
func (s *FileStore) List(_ context.Context) ([]api.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	var apps []api.Application
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		appID := strings.TrimSuffix(name, ".json")
		app, err := s.readFile(filepath.Join(s.dir, name), appID)
		if err != nil {
			logging.Warn("Store", "Skipping cached application %s: %v", appID, err)
			continue
		}
		apps = append(apps, app)
	}

	sort.Slice(apps, func(i, j int) bool { return apps[i].AppID < apps[j].AppID })
	return apps, nil
}

// Delete removes one record file.
func (s *FileStore) Delete(_ context.Context, appID string) error {
	if err := validateAppID(appID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(appID))
	if errors.Is(err, os.ErrNotExist) {
		return notFound(appID)
	}
	if err != nil {
		logging.Audit(logging.AuditEvent{Action: "secret_deleted", Outcome: "failure", Target: appID, Error: err.Error()})
		return fmt.Errorf("failed to delete application %q: %w", appID, err)
	}

	logging.Audit(logging.AuditEvent{Action: "secret_deleted", Outcome: "success", Target: appID})
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}
