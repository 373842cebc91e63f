// Package config loads service configuration from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the service configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Directory    DatabaseConfig     `mapstructure:"directory"`
	App          DatabaseConfig     `mapstructure:"app"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig holds listener settings
type ServerConfig struct {
	Env      string `mapstructure:"env"`
	HTTPPort int    `mapstructure:"http_port"`
	GRPCPort int    `mapstructure:"grpc_port"`
}

// DatabaseConfig holds connection pool settings for one database
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds tenant cache settings
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ProvisioningConfig holds schema provisioning settings
type ProvisioningConfig struct {
	// DDLPath is the tenant-table script location; empty selects the embedded script.
	DDLPath             string        `mapstructure:"ddl_path"`
	DropSchemaOnFailure bool          `mapstructure:"drop_schema_on_failure"`
	SyncInterval        time.Duration `mapstructure:"sync_interval"`
	// SyncGracePeriod keeps schema sync away from tenants whose provisioning may still be running.
	SyncGracePeriod time.Duration `mapstructure:"sync_grace_period"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from configPath (optional) and the environment.
// Environment variables use the TENANTS_ prefix with '.' replaced by '_',
// e.g. TENANTS_DIRECTORY_URL.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TENANTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindAliases(v); err != nil {
		return nil, err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The application database may be the directory database.
	if cfg.App.URL == "" {
		cfg.App.URL = cfg.Directory.URL
	}

	return &cfg, nil
}

// Validate checks the settings the service cannot start without
func (c *Config) Validate() error {
	var errs []error
	if c.Directory.URL == "" {
		errs = append(errs, errors.New("directory.url is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Server.HTTPPort <= 0 {
		errs = append(errs, errors.New("server.http_port must be positive"))
	}
	if c.Server.GRPCPort <= 0 {
		errs = append(errs, errors.New("server.grpc_port must be positive"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs in the development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "" || c.Server.Env == "development"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.env", "development")
	v.SetDefault("server.http_port", 3001)
	v.SetDefault("server.grpc_port", 50051)

	v.SetDefault("directory.url", "")
	v.SetDefault("directory.max_conns", 20)
	v.SetDefault("directory.min_conns", 2)
	v.SetDefault("directory.max_conn_lifetime", "30m")
	v.SetDefault("directory.max_conn_idle_time", "5m")

	v.SetDefault("app.url", "")
	v.SetDefault("app.max_conns", 10)
	v.SetDefault("app.min_conns", 1)
	v.SetDefault("app.max_conn_lifetime", "30m")
	v.SetDefault("app.max_conn_idle_time", "5m")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "1h")

	v.SetDefault("provisioning.ddl_path", "")
	v.SetDefault("provisioning.drop_schema_on_failure", false)
	v.SetDefault("provisioning.sync_interval", "0s")
	v.SetDefault("provisioning.sync_grace_period", "5m")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// bindAliases maps the environment variable names used by existing deployments.
func bindAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"directory.url":         {"TENANTS_DIRECTORY_URL", "DATABASE_URL"},
		"app.url":               {"TENANTS_APP_URL", "APP_DATABASE_URL"},
		"provisioning.ddl_path": {"TENANTS_PROVISIONING_DDL_PATH", "TENANT_DDL_PATH"},
		"auth.jwt_secret":       {"TENANTS_AUTH_JWT_SECRET", "JWT_SECRET"},
		"auth.token_ttl":        {"TENANTS_AUTH_TOKEN_TTL", "JWT_EXPIRES_IN"},
		"server.http_port":      {"TENANTS_SERVER_HTTP_PORT", "PORT"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}
