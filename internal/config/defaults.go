package config

const (
	// DefaultGatewayURL is the hosted gateway.
	DefaultGatewayURL = "https://dashboard.agenticfabriq.com"

	DefaultKeycloakURL      = "https://auth.agenticfabriq.com"
	DefaultKeycloakRealm    = "agentic-fabriq"
	DefaultKeycloakClientID = "afctl"

	DefaultOutputFormat = OutputTable
	DefaultPageSize     = 20
	DefaultCacheBackend = CacheFile

	// MaxPageSize is the largest page size the gateway accepts.
	MaxPageSize = 100
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		GatewayURL:       DefaultGatewayURL,
		KeycloakURL:      DefaultKeycloakURL,
		KeycloakRealm:    DefaultKeycloakRealm,
		KeycloakClientID: DefaultKeycloakClientID,
		OutputFormat:     DefaultOutputFormat,
		PageSize:         DefaultPageSize,
		CacheBackend:     DefaultCacheBackend,
	}
}
