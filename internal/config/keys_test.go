package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Set(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
		check   func(t *testing.T, c Config)
	}{
		{key: "gateway_url", value: "https://gw.example.com/", check: func(t *testing.T, c Config) {
			assert.Equal(t, "https://gw.example.com", c.GatewayURL)
		}},
		{key: "gateway_url", value: "not a url", wantErr: true},
		{key: "output_format", value: "YAML", check: func(t *testing.T, c Config) {
			assert.Equal(t, OutputYAML, c.OutputFormat)
		}},
		{key: "output_format", value: "xml", wantErr: true},
		{key: "page_size", value: "100", check: func(t *testing.T, c Config) {
			assert.Equal(t, 100, c.PageSize)
		}},
		{key: "page_size", value: "101", wantErr: true},
		{key: "page_size", value: "abc", wantErr: true},
		{key: "verbose", value: "true", check: func(t *testing.T, c Config) {
			assert.True(t, c.Verbose)
		}},
		{key: "cache_backend", value: "sqlite", check: func(t *testing.T, c Config) {
			assert.Equal(t, CacheSQLite, c.CacheBackend)
		}},
		{key: "tenant_id", value: "t1", wantErr: true},
		{key: "keycloak_realm", value: "other", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := Default()
			err := cfg.Set(tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestConfig_Get(t *testing.T) {
	cfg := Default()
	cfg.Dir = "/home/op/.af"

	v, err := cfg.Get("page_size")
	require.NoError(t, err)
	assert.Equal(t, "20", v)

	v, err = cfg.Get("config_file")
	require.NoError(t, err)
	assert.Equal(t, "/home/op/.af/config.yaml", v)

	_, err = cfg.Get("nope")
	assert.Error(t, err)
}

func TestSettableKeys(t *testing.T) {
	assert.Equal(t, []string{"cache_backend", "gateway_url", "keycloak_url", "output_format", "page_size", "verbose"}, SettableKeys())
	assert.Contains(t, Keys(), "keycloak_realm")
}
