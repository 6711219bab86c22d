package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type key struct {
	get func(Config) string
	set func(*Config, string) error
}

var keys = map[string]key{
	"gateway_url": {
		get: func(c Config) string { return c.GatewayURL },
		set: func(c *Config, v string) error {
			if err := ValidateURL("gateway_url", v); err != nil {
				return err
			}
			c.GatewayURL = strings.TrimRight(v, "/")
			return nil
		},
	},
	"keycloak_url": {
		get: func(c Config) string { return c.KeycloakURL },
		set: func(c *Config, v string) error {
			if err := ValidateURL("keycloak_url", v); err != nil {
				return err
			}
			c.KeycloakURL = strings.TrimRight(v, "/")
			return nil
		},
	},
	"keycloak_realm": {
		get: func(c Config) string { return c.KeycloakRealm },
	},
	"keycloak_client_id": {
		get: func(c Config) string { return c.KeycloakClientID },
	},
	"output_format": {
		get: func(c Config) string { return c.OutputFormat },
		set: func(c *Config, v string) error {
			v = strings.ToLower(v)
			if err := ValidateOneOf("output_format", v, []string{OutputTable, OutputJSON, OutputYAML}); err != nil {
				return err
			}
			c.OutputFormat = v
			return nil
		},
	},
	"page_size": {
		get: func(c Config) string { return strconv.Itoa(c.PageSize) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return ValidationError{Field: "page_size", Value: v, Message: "must be an integer"}
			}
			if err := ValidatePageSize("page_size", n); err != nil {
				return err
			}
			c.PageSize = n
			return nil
		},
	},
	"verbose": {
		get: func(c Config) string { return strconv.FormatBool(c.Verbose) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return ValidationError{Field: "verbose", Value: v, Message: "must be true or false"}
			}
			c.Verbose = b
			return nil
		},
	},
	"cache_backend": {
		get: func(c Config) string { return c.CacheBackend },
		set: func(c *Config, v string) error {
			v = strings.ToLower(v)
			if err := ValidateOneOf("cache_backend", v, []string{CacheFile, CacheSQLite}); err != nil {
				return err
			}
			c.CacheBackend = v
			return nil
		},
	},
	"config_file": {
		get: func(c Config) string { return FilePath(c.Dir) },
	},
}

// Keys returns every readable key, sorted.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SettableKeys returns the keys accepted by Set, sorted.
func SettableKeys() []string {
	var out []string
	for k, v := range keys {
		if v.set != nil {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Get returns the string value of a configuration key.
func (c Config) Get(name string) (string, error) {
	k, ok := keys[name]
	if !ok {
		return "", fmt.Errorf("unknown configuration key %q, available keys: %s", name, strings.Join(Keys(), ", "))
	}
	return k.get(c), nil
}

// Set parses and assigns a configuration key. Read-only keys are rejected.
func (c *Config) Set(name, value string) error {
	k, ok := keys[name]
	if !ok || k.set == nil {
		return fmt.Errorf("configuration key %q cannot be set, settable keys: %s", name, strings.Join(SettableKeys(), ", "))
	}
	return k.set(c, strings.TrimSpace(value))
}
