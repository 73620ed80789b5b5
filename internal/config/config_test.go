package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	require.Equal(t, 5*time.Minute, cfg.Auth.CodeTTL)
	require.Equal(t, 3, cfg.Cache.RetryAttempts)
	require.Equal(t, 100*time.Millisecond, cfg.Cache.RetryBase)
	require.Equal(t, 30*time.Second, cfg.Cache.HealthInterval)
	require.Equal(t, StorePostgres, cfg.Database.Store)
}

func TestLoad_ExpandsEnvAndOverrides(t *testing.T) {
	t.Setenv("AK_TEST_JWT", "0123456789abcdef0123456789abcdef")
	p := writeFile(t, `
server:
  grpc_addr: ":9000"
database:
  store: memory
auth:
  jwt_key: ${AK_TEST_JWT}
  access_ttl: 1m
limiter:
  max_failures: 2
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Server.GRPCAddr)
	require.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Auth.JWTKey)
	require.Equal(t, time.Minute, cfg.Auth.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL, "untouched default")
	require.Equal(t, 2, cfg.Limiter.MaxFailures)
	require.NoError(t, cfg.Validate(32))
}

func TestLoad_BadDuration(t *testing.T) {
	p := writeFile(t, "auth:\n  code_ttl: soon\n")
	_, err := Load(p)
	require.ErrorContains(t, err, "auth.code_ttl")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Database.Store = StoreMemory
		cfg.Auth.JWTKey = "0123456789abcdef0123456789abcdef"
		return cfg
	}
	require.NoError(t, base().Validate(32))

	cases := map[string]func(*Config){
		"short key":    func(c *Config) { c.Auth.JWTKey = "short" },
		"pg no dsn":    func(c *Config) { c.Database.Store = StorePostgres },
		"bad store":    func(c *Config) { c.Database.Store = "mongo" },
		"half tls":     func(c *Config) { c.Server.TLSCert = "cert.pem" },
		"zero ttl":     func(c *Config) { c.Auth.AccessTTL = 0 },
		"code digits":  func(c *Config) { c.Auth.CodeDigits = 2 },
		"no redis":     func(c *Config) { c.Redis.Addr = "" },
		"max failures": func(c *Config) { c.Limiter.MaxFailures = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			require.Error(t, cfg.Validate(32))
		})
	}
}
