package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"afctl/internal/api"
	"afctl/pkg/logging"
)

//go:embed schema.sql
var schemaSQL string

const defaultBusyTimeout = 5 * time.Second

// SQLiteStore keeps every cached application in one SQLite database.
type SQLiteStore struct {
	db          *sql.DB
	busyTimeout time.Duration
	enableWAL   bool
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithBusyTimeout sets how long a statement waits on a locked database.
func WithBusyTimeout(timeout time.Duration) SQLiteOption {
	return func(s *SQLiteStore) {
		if timeout >= 0 {
			s.busyTimeout = timeout
		}
	}
}

// WithWAL toggles write-ahead logging.
func WithWAL(enabled bool) SQLiteOption {
	return func(s *SQLiteStore) {
		s.enableWAL = enabled
	}
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	s := &SQLiteStore{
		busyTimeout: defaultBusyTimeout,
		enableWAL:   true,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s.db = db
	if err := s.initialize(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := os.Chmod(path, 0600); err != nil {
		logging.Warn("Store", "Could not restrict permissions on %s: %v", path, err)
	}

	return s, nil
}

func (s *SQLiteStore) initialize(ctx context.Context) error {
	if s.busyTimeout > 0 {
		ms := int(s.busyTimeout / time.Millisecond)
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d;", ms)); err != nil {
			return fmt.Errorf("failed to set busy_timeout: %w", err)
		}
	}
	if s.enableWAL {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable wal: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Save upserts the record.
func (s *SQLiteStore) Save(ctx context.Context, app api.Application) error {
	if err := validateAppID(app.AppID); err != nil {
		return err
	}

	connsRaw, err := json.Marshal(app.ToolConnections)
	if err != nil {
		return fmt.Errorf("failed to marshal tool connections: %w", err)
	}

	const q = `
INSERT INTO applications (
  app_id, secret_key, user_id, tenant_id, tool_connections, gateway_url, created_at, cached_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(app_id) DO UPDATE SET
  secret_key=excluded.secret_key,
  user_id=excluded.user_id,
  tenant_id=excluded.tenant_id,
  tool_connections=excluded.tool_connections,
  gateway_url=excluded.gateway_url,
  created_at=excluded.created_at,
  cached_at=excluded.cached_at;
`
	_, err = s.db.ExecContext(ctx, q,
		app.AppID,
		app.SecretKey,
		app.UserID,
		app.TenantID,
		string(connsRaw),
		app.GatewayURL,
		toNullableTime(app.CreatedAt),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		logging.Audit(logging.AuditEvent{Action: "secret_stored", Outcome: "failure", Target: app.AppID, Error: err.Error()})
		return fmt.Errorf("failed to save application: %w", err)
	}

	logging.Audit(logging.AuditEvent{Action: "secret_stored", Outcome: "success", Target: app.AppID})
	return nil
}

const selectColumns = `app_id, secret_key, user_id, tenant_id, tool_connections, gateway_url, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (api.Application, error) {
	var (
		app       api.Application
		connsRaw  string
		createdAt sql.NullString
	)
	if err := row.Scan(&app.AppID, &app.SecretKey, &app.UserID, &app.TenantID, &connsRaw, &app.GatewayURL, &createdAt); err != nil {
		return api.Application{}, err
	}
	if connsRaw != "" {
		if err := json.Unmarshal([]byte(connsRaw), &app.ToolConnections); err != nil {
			return api.Application{}, fmt.Errorf("failed to parse tool connections of %q: %w", app.AppID, err)
		}
	}
	if createdAt.Valid && createdAt.String != "" {
		ts, err := api.ParseTimestamp(createdAt.String)
		if err != nil {
			return api.Application{}, fmt.Errorf("failed to parse created_at of %q: %w", app.AppID, err)
		}
		app.CreatedAt = ts
	}
	return app, nil
}

// Get loads one record.
func (s *SQLiteStore) Get(ctx context.Context, appID string) (api.Application, error) {
	if err := validateAppID(appID); err != nil {
		return api.Application{}, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM applications WHERE app_id = ?;`, appID)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Application{}, notFound(appID)
	}
	if err != nil {
		return api.Application{}, fmt.Errorf("failed to load application %q: %w", appID, err)
	}
	return app, nil
}

// List loads every record ordered by app id.
func (s *SQLiteStore) List(ctx context.Context) ([]api.Application, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM applications ORDER BY app_id ASC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []api.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applications: %w", err)
	}
	return apps, nil
}

// Delete removes one record.
func (s *SQLiteStore) Delete(ctx context.Context, appID string) error {
	if err := validateAppID(appID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE app_id = ?;`, appID)
	if err != nil {
		logging.Audit(logging.AuditEvent{Action: "secret_deleted", Outcome: "failure", Target: appID, Error: err.Error()})
		return fmt.Errorf("failed to delete application %q: %w", appID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete application %q: %w", appID, err)
	}
	if n == 0 {
		return notFound(appID)
	}

	logging.Audit(logging.AuditEvent{Action: "secret_deleted", Outcome: "success", Target: appID})
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toNullableTime(ts api.Timestamp) any {
	if ts.IsZero() {
		return nil
	}
	return ts.UTC().Format(time.RFC3339Nano)
}
