package config

// Config is the operator-facing configuration of afctl.
type Config struct {
	// GatewayURL is the base URL of the authorization gateway.
	GatewayURL string `yaml:"gateway_url"`

	// Keycloak settings used by "auth login".
	KeycloakURL      string `yaml:"keycloak_url"`
	KeycloakRealm    string `yaml:"keycloak_realm"`
	KeycloakClientID string `yaml:"keycloak_client_id"`

	// OutputFormat is one of table, json or yaml.
	OutputFormat string `yaml:"output_format"`
	// PageSize is the default page size for "tools list".
	PageSize int `yaml:"page_size"`
	// Verbose enables info-level logging.
	Verbose bool `yaml:"verbose"`

	// CacheBackend selects the local application cache: file or sqlite.
	CacheBackend string `yaml:"cache_backend"`

	// Dir is the directory the configuration was loaded from.
	Dir string `yaml:"-"`
}

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// Cache backends.
const (
	CacheFile   = "file"
	CacheSQLite = "sqlite"
)
