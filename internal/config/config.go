// Package config loads the server configuration from YAML with ${ENV} expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
	Limiter  LimiterConfig  `yaml:"limiter"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds listener configuration.
type ServerConfig struct {
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"` // empty disables /metrics
	TLSCert     string `yaml:"tls_cert"`
	TLSKey      string `yaml:"tls_key"`
	Dev         bool   `yaml:"dev"` // enables gRPC reflection
}

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// DatabaseConfig selects the durable store.
type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Store string `yaml:"store"`
}

// RedisConfig points at the ephemeral cache backend.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	OpTimeout time.Duration `yaml:"-"`

	OpTimeoutRaw string `yaml:"op_timeout"`
}

// AuthConfig holds token and code settings.
type AuthConfig struct {
	JWTKey            string `yaml:"jwt_key"`
	TokenHashKey      string `yaml:"token_hash_key"` // optional HMAC pepper for refresh hashes
	RefreshTokenBytes int    `yaml:"refresh_token_bytes"`
	CodeDigits        int    `yaml:"code_digits"`

	AccessTTL         time.Duration `yaml:"-"`
	RefreshTTL        time.Duration `yaml:"-"`
	CodeTTL           time.Duration `yaml:"-"`
	LogoutFallbackTTL time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	AccessTTLRaw         string `yaml:"access_ttl"`
	RefreshTTLRaw        string `yaml:"refresh_ttl"`
	CodeTTLRaw           string `yaml:"code_ttl"`
	LogoutFallbackTTLRaw string `yaml:"logout_fallback_ttl"`
}

// CacheConfig tunes the cache retry policy and health check.
type CacheConfig struct {
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBase      time.Duration `yaml:"-"`
	HealthInterval time.Duration `yaml:"-"`

	RetryBaseRaw      string `yaml:"retry_base"`
	HealthIntervalRaw string `yaml:"health_interval"`
}

// LimiterConfig controls login throttling.
type LimiterConfig struct {
	MaxFailures int           `yaml:"max_failures"`
	Window      time.Duration `yaml:"-"`
	BlockFor    time.Duration `yaml:"-"`

	WindowRaw   string `yaml:"window"`
	BlockForRaw string `yaml:"block_for"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{GRPCAddr: ":8443", MetricsAddr: ":9090"},
		Database: DatabaseConfig{Store: StorePostgres},
		Redis:    RedisConfig{Addr: "localhost:6379", OpTimeoutRaw: "1s"},
		Auth: AuthConfig{
			RefreshTokenBytes:    32,
			CodeDigits:           6,
			AccessTTLRaw:         "5m",
			RefreshTTLRaw:        "168h",
			CodeTTLRaw:           "5m",
			LogoutFallbackTTLRaw: "5m",
		},
		Cache:   CacheConfig{RetryAttempts: 3, RetryBaseRaw: "100ms", HealthIntervalRaw: "30s"},
		Limiter: LimiterConfig{MaxFailures: 5, WindowRaw: "15m", BlockForRaw: "15m"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the file at path over the defaults. Environment variables in the
// format ${VAR_NAME} are expanded. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or "" when unset.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envRef.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"redis.op_timeout", cfg.Redis.OpTimeoutRaw, &cfg.Redis.OpTimeout},
		{"auth.access_ttl", cfg.Auth.AccessTTLRaw, &cfg.Auth.AccessTTL},
		{"auth.refresh_ttl", cfg.Auth.RefreshTTLRaw, &cfg.Auth.RefreshTTL},
		{"auth.code_ttl", cfg.Auth.CodeTTLRaw, &cfg.Auth.CodeTTL},
		{"auth.logout_fallback_ttl", cfg.Auth.LogoutFallbackTTLRaw, &cfg.Auth.LogoutFallbackTTL},
		{"cache.retry_base", cfg.Cache.RetryBaseRaw, &cfg.Cache.RetryBase},
		{"cache.health_interval", cfg.Cache.HealthIntervalRaw, &cfg.Cache.HealthInterval},
		{"limiter.window", cfg.Limiter.WindowRaw, &cfg.Limiter.Window},
		{"limiter.block_for", cfg.Limiter.BlockForRaw, &cfg.Limiter.BlockFor},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("%s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks that the configuration can start a server. minKeyLen is the
// shortest signing key the token issuer accepts.
func (c *Config) Validate(minKeyLen int) error {
	if c.Server.GRPCAddr == "" {
		return errors.New("server.grpc_addr is required")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return errors.New("server.tls_cert and server.tls_key must be set together")
	}
	switch c.Database.Store {
	case StorePostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("database.store %q: want %s or %s", c.Database.Store, StorePostgres, StoreMemory)
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if len(c.Auth.JWTKey) < minKeyLen {
		return fmt.Errorf("auth.jwt_key must be at least %d bytes", minKeyLen)
	}
	for name, d := range map[string]time.Duration{
		"auth.access_ttl":  c.Auth.AccessTTL,
		"auth.refresh_ttl": c.Auth.RefreshTTL,
		"auth.code_ttl":    c.Auth.CodeTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Auth.CodeDigits < 4 || c.Auth.CodeDigits > 10 {
		return fmt.Errorf("auth.code_digits %d out of range 4..10", c.Auth.CodeDigits)
	}
	if c.Limiter.MaxFailures < 1 {
		return errors.New("limiter.max_failures must be >= 1")
	}
	return nil
}
