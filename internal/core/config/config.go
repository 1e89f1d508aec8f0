package config

import (
	"time"

	redisclient "github.com/vietddude/gqlgate/internal/infra/redis"
	"github.com/vietddude/gqlgate/internal/infra/rpc/budget"
	"github.com/vietddude/gqlgate/internal/infra/rpc/routing"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig        `yaml:"server"`
	Logging   LoggingConfig       `yaml:"logging"`
	API       APIConfig           `yaml:"api"`
	RateLimit budget.Config       `yaml:"rate_limit"`
	Retry     routing.RetryConfig `yaml:"retry"`
	Redis     redisclient.Config  `yaml:"redis"` // journal disabled when url is empty
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// APIConfig describes the remote GraphQL endpoint.
type APIConfig struct {
	Name       string        `yaml:"name"`
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"api_key"`
	AuthScheme string        `yaml:"auth_scheme"` // e.g. "Bearer"; empty sends the key as is
	Timeout    time.Duration `yaml:"timeout"`
}

// Authorization returns the Authorization header value, or "" without a key.
func (c APIConfig) Authorization() string {
	if c.APIKey == "" {
		return ""
	}
	if c.AuthScheme == "" {
		return c.APIKey
	}
	return c.AuthScheme + " " + c.APIKey
}

// Default returns the configuration used for keys missing from the file.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
		API: APIConfig{
			Name:    "graphql",
			Timeout: 30 * time.Second,
		},
		RateLimit: budget.DefaultConfig(),
		Retry:     routing.DefaultRetryConfig,
		Redis: redisclient.Config{
			KeyPrefix: "gqlgate",
			TTL:       24 * time.Hour,
		},
	}
}
