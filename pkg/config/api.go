package config

import (
	"fmt"
	"time"
)

const (
	// DefaultListen is the default API listen address.
	DefaultListen = ":9090"

	// DefaultRefreshInterval is how often the API reloads the document.
	DefaultRefreshInterval = "30s"

	// DefaultIndexInterval is how often the indexer syncs the document.
	DefaultIndexInterval = "60s"

	// DefaultIndexConcurrency is the number of suites synced in parallel.
	DefaultIndexConcurrency = 4
)

// APIConfig contains all read API server configuration.
type APIConfig struct {
	Server APIServerConfig `yaml:"server" mapstructure:"server"`
	Auth   APIAuthConfig   `yaml:"auth" mapstructure:"auth"`
}

// APIServerConfig contains HTTP server settings.
type APIServerConfig struct {
	Listen          string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins     []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit       RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	RefreshInterval string          `yaml:"refresh_interval,omitempty" mapstructure:"refresh_interval"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// APIAuthConfig contains authentication settings. With basic auth disabled
// every endpoint is anonymous.
type APIAuthConfig struct {
	Basic BasicAuthConfig `yaml:"basic,omitempty" mapstructure:"basic"`
}

// BasicAuthConfig configures username/password authentication.
type BasicAuthConfig struct {
	Enabled bool            `yaml:"enabled" mapstructure:"enabled"`
	Users   []BasicAuthUser `yaml:"users,omitempty" mapstructure:"users"`
}

// BasicAuthUser defines a basic auth user. PasswordHash is a bcrypt hash.
type BasicAuthUser struct {
	Username     string `yaml:"username" mapstructure:"username"`
	PasswordHash string `yaml:"password_hash" mapstructure:"password_hash"`
}

// IndexConfig configures the SQL index of benchmark points and alerts.
type IndexConfig struct {
	Enabled     bool           `yaml:"enabled" mapstructure:"enabled"`
	Interval    string         `yaml:"interval,omitempty" mapstructure:"interval"`
	Concurrency int            `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
	Database    DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

func (c *APIConfig) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}

	if c.Server.RefreshInterval == "" {
		c.Server.RefreshInterval = DefaultRefreshInterval
	}
}

func (c *IndexConfig) applyDefaults() {
	if c.Interval == "" {
		c.Interval = DefaultIndexInterval
	}

	if c.Concurrency <= 0 {
		c.Concurrency = DefaultIndexConcurrency
	}

	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}
}

// IndexEnabled reports whether the SQL index is configured and enabled.
func (c *Config) IndexEnabled() bool {
	return c.Index != nil && c.Index.Enabled
}

// ValidateAPI checks the api section and everything it depends on.
func (c *Config) ValidateAPI() error {
	if c.API == nil {
		return fmt.Errorf("api section is required in config")
	}

	if _, err := c.API.RefreshIntervalDuration(); err != nil {
		return err
	}

	if c.API.Server.RateLimit.Enabled && c.API.Server.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("api.server.rate_limit.requests_per_minute must be positive")
	}

	if c.API.Auth.Basic.Enabled {
		if len(c.API.Auth.Basic.Users) == 0 {
			return fmt.Errorf("api.auth.basic: at least one user is required")
		}

		for i, u := range c.API.Auth.Basic.Users {
			if u.Username == "" || u.PasswordHash == "" {
				return fmt.Errorf("api.auth.basic.users[%d]: username and password_hash are required", i)
			}
		}
	}

	if c.IndexEnabled() {
		if err := c.ValidateIndex(); err != nil {
			return err
		}
	}

	return c.Validate()
}

// ValidateIndex checks the index section.
func (c *Config) ValidateIndex() error {
	if !c.IndexEnabled() {
		return fmt.Errorf("index section is not enabled in config")
	}

	if _, err := c.Index.IntervalDuration(); err != nil {
		return err
	}

	switch c.Index.Database.Driver {
	case "sqlite":
		if c.Index.Database.SQLite.Path == "" {
			return fmt.Errorf("index.database.sqlite.path is required")
		}
	case "postgres":
		if c.Index.Database.Postgres.Host == "" {
			return fmt.Errorf("index.database.postgres.host is required")
		}
	default:
		return fmt.Errorf("index.database.driver: unsupported driver %q", c.Index.Database.Driver)
	}

	return nil
}

// RefreshIntervalDuration parses the document refresh interval.
func (c *APIConfig) RefreshIntervalDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.RefreshInterval)
	if err != nil {
		return 0, fmt.Errorf("api.server.refresh_interval: %w", err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("api.server.refresh_interval must be positive")
	}

	return d, nil
}

// IntervalDuration parses the indexing interval.
func (c *IndexConfig) IntervalDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0, fmt.Errorf("index.interval: %w", err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("index.interval must be positive")
	}

	return d, nil
}
