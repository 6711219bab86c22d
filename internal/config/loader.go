package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"afctl/pkg/logging"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".af"
	configFileName = "config.yaml"

	// EnvConfigDir overrides the configuration directory.
	EnvConfigDir = "AF_CONFIG_DIR"
)

// Environment variables that override individual settings.
const (
	EnvGatewayURL   = "AF_GATEWAY_URL"
	EnvKeycloakURL  = "AF_KEYCLOAK_URL"
	EnvOutputFormat = "AF_OUTPUT_FORMAT"
	EnvPageSize     = "AF_PAGE_SIZE"
	EnvCacheBackend = "AF_CACHE_BACKEND"
)

// osUserHomeDir is swapped in tests.
var osUserHomeDir = os.UserHomeDir

// DefaultDir returns the configuration directory: AF_CONFIG_DIR when set,
// otherwise ~/.af.
func DefaultDir() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir, nil
	}
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user home directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// FilePath returns the config.yaml path inside dir.
func FilePath(dir string) string {
	return filepath.Join(dir, configFileName)
}

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already present in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Debug("Config", "Ignoring unreadable .env file: %v", err)
	}
}

// Load reads config.yaml from dir, layered over the defaults, and applies
// environment overrides. A missing file is not an error.
func Load(dir string) (Config, error) {
	cfg, err := LoadFile(dir)
	if err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration in %s: %w", FilePath(dir), err)
	}
	return cfg, nil
}

// LoadFile reads config.yaml from dir over the defaults without applying
// environment overrides. Use it before Save.
func LoadFile(dir string) (Config, error) {
	cfg := Default()

	path := FilePath(dir)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("Config", "No config.yaml found at %s, using defaults", path)
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config from %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
		}
		logging.Debug("Config", "Loaded configuration from %s", path)
	}

	cfg.Dir = dir
	return cfg, nil
}

// Save writes cfg to config.yaml in dir, creating the directory if needed.
func Save(dir string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := FilePath(dir)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config to %s: %w", path, err)
	}
	logging.Debug("Config", "Saved configuration to %s", path)
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvGatewayURL); v != "" {
		cfg.GatewayURL = v
	}
	if v := os.Getenv(EnvKeycloakURL); v != "" {
		cfg.KeycloakURL = v
	}
	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.OutputFormat = strings.ToLower(v)
	}
	if v := os.Getenv(EnvCacheBackend); v != "" {
		cfg.CacheBackend = strings.ToLower(v)
	}
	if v := os.Getenv(EnvPageSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", EnvPageSize, v)
		}
		cfg.PageSize = n
	}
	return nil
}
