// Package config loads and validates the Portr admin configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the PORTR_ prefix (e.g., PORTR_DATABASE_HOST
// overrides database.host in the YAML). This layering allows the same binary to
// run with a config.yaml in local development and with pure environment variables
// in containerized deployments.
//
// The crypto.encryption_key value is a process-wide secret: it keys the AES-GCM
// cipher that protects fields stored encrypted at rest (SMTP password, GitHub
// access tokens). Changing it makes previously stored ciphertexts unreadable, so
// treat it like a database credential.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crypto    CryptoConfig    `mapstructure:"crypto"`
	Tunnel    TunnelConfig    `mapstructure:"tunnel"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Domain       string        `mapstructure:"domain"`
	Debug        bool          `mapstructure:"debug"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DomainAddress returns the externally reachable base URL for the admin UI and
// OAuth callbacks. Local domains (anything with a "localhost:" host) are served
// over plain HTTP; everything else is assumed to sit behind TLS.
func (s *ServerConfig) DomainAddress() string {
	if strings.Contains(s.Domain, "localhost:") {
		return "http://" + s.Domain
	}
	return "https://" + s.Domain
}

// GetAddress returns the server listen address in host:port format
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	GitHub GitHubConfig `mapstructure:"github"`

	// TrustedProxyHeader, when set, switches identity resolution from session
	// cookies to a reverse-proxy-asserted email header of that name (e.g.
	// "X-Auth-Request-Email" for oauth2-proxy). Exactly one of the two paths is
	// active per deployment.
	TrustedProxyHeader string `mapstructure:"trusted_proxy_header"`

	// StateSecret signs the short-lived OAuth state tokens. Falls back to the
	// encryption key when empty.
	StateSecret string `mapstructure:"state_secret"`
}

// GitHubConfig holds GitHub OAuth app credentials. GitHub login is disabled
// when the client id is empty.
type GitHubConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Enabled reports whether GitHub OAuth login is configured.
func (g *GitHubConfig) Enabled() bool {
	return g.ClientID != ""
}

// CryptoConfig holds at-rest encryption configuration
type CryptoConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

// TunnelConfig holds the connection endpoints advertised to CLI clients in the
// downloaded client config and setup script.
type TunnelConfig struct {
	ServerURL string `mapstructure:"server_url"`
	SSHURL    string `mapstructure:"ssh_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested structs during Unmarshal.
// viper.BindEnv only errors when called with zero keys; since every key here is a non-empty
// hardcoded string, any error indicates a programming bug and is surfaced to the caller.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.domain",
		"server.debug",
		"server.read_timeout",
		"server.write_timeout",

		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		// Auth
		"auth.github.client_id",
		"auth.github.client_secret",
		"auth.trusted_proxy_header",
		"auth.state_secret",

		// Crypto
		"crypto.encryption_key",

		// Tunnel endpoints
		"tunnel.server_url",
		"tunnel.ssh_url",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/portr-admin")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	v.SetEnvPrefix("PORTR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand ${VAR} references in sensitive fields so secrets can be injected
	// indirectly (e.g. database.password: ${DB_PASSWORD_FROM_VAULT}).
	cfg.Database.Password = os.ExpandEnv(cfg.Database.Password)
	cfg.Auth.GitHub.ClientSecret = os.ExpandEnv(cfg.Auth.GitHub.ClientSecret)
	cfg.Crypto.EncryptionKey = os.ExpandEnv(cfg.Crypto.EncryptionKey)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Log config file edits so operators can confirm a change was picked up.
	// Only the log level is consulted at runtime; everything else requires a restart.
	v.OnConfigChange(func(e fsnotify.Event) {
		slog.Info("config file changed", "file", e.Name, "level", v.GetString("logging.level"))
	})
	v.WatchConfig()

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.domain", "localhost:8000")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "portr")
	v.SetDefault("database.user", "portr")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Tunnel endpoint defaults
	v.SetDefault("tunnel.server_url", "localhost:8001")
	v.SetDefault("tunnel.ssh_url", "localhost:2222")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Domain == "" {
		return fmt.Errorf("server.domain is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	if c.Crypto.EncryptionKey == "" {
		return fmt.Errorf("crypto.encryption_key is required")
	}

	if c.Auth.GitHub.ClientID != "" && c.Auth.GitHub.ClientSecret == "" {
		return fmt.Errorf("auth.github.client_secret is required when auth.github.client_id is set")
	}

	if c.Tunnel.ServerURL == "" {
		return fmt.Errorf("tunnel.server_url is required")
	}
	if c.Tunnel.SSHURL == "" {
		return fmt.Errorf("tunnel.ssh_url is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// StateSigningSecret returns the secret used to sign OAuth state tokens.
func (c *Config) StateSigningSecret() string {
	if c.Auth.StateSecret != "" {
		return c.Auth.StateSecret
	}
	return c.Crypto.EncryptionKey
}
