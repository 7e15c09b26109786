package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Database.URL = "postgres://localhost/hiregate"
	cfg.Identity.JWTSecret = "secret"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 300, cfg.RateLimit.Read.RequestsPerWindow)
	assert.Equal(t, 80, cfg.RateLimit.Write.RequestsPerWindow)
	assert.Equal(t, time.Minute, cfg.RateLimit.Write.WindowDuration)
	assert.Equal(t, 168*time.Hour, cfg.JoinRequests.Cooldown)
	assert.Equal(t, IdentityJWT, cfg.Identity.Mode)
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HIREGATE_DATABASE_URL", "postgres://db/hiregate")
	t.Setenv("HIREGATE_JWT_SECRET", "s3cret")
	t.Setenv("HIREGATE_PORT", "9090")
	t.Setenv("HIREGATE_DEMO_ORG_SLUG", " demo , sandbox ,")
	t.Setenv("HIREGATE_RATE_LIMIT_WRITE", "10")
	t.Setenv("HIREGATE_RATE_LIMIT_WINDOW", "30s")
	t.Setenv("HIREGATE_JOIN_REQUEST_COOLDOWN", "1h")
	t.Setenv("HIREGATE_METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://db/hiregate", cfg.Database.URL)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"demo", "sandbox"}, cfg.Demo.Slugs)
	assert.Equal(t, 10, cfg.RateLimit.Write.RequestsPerWindow)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Write.WindowDuration)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Read.WindowDuration)
	assert.Equal(t, time.Hour, cfg.JoinRequests.Cooldown)
	assert.False(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hiregate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7070"
database:
  url: postgres://file/hiregate
identity:
  mode: oidc
  oidc:
    issuer_url: https://issuer.example.com
    client_id: hiregate
join_requests:
  cooldown: 48h
rate_limit:
  read:
    requests_per_window: 50
    window: 10s
`), 0o600))

	t.Setenv("HIREGATE_CONFIG_FILE", path)
	t.Setenv("HIREGATE_PORT", "6060")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "6060", cfg.Server.Port, "env overrides the file")
	assert.Equal(t, "postgres://file/hiregate", cfg.Database.URL)
	assert.Equal(t, IdentityOIDC, cfg.Identity.Mode)
	assert.Equal(t, "hiregate", cfg.Identity.OIDC.ClientID)
	assert.Equal(t, 48*time.Hour, cfg.JoinRequests.Cooldown)
	assert.Equal(t, 50, cfg.RateLimit.Read.RequestsPerWindow)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Read.WindowDuration)
	assert.Equal(t, 80, cfg.RateLimit.Write.RequestsPerWindow)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("HIREGATE_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "server port is required"},
		{name: "missing database", mutate: func(c *Config) { c.Database.URL = "" }, wantErr: "database URL is required"},
		{name: "jwt without secret", mutate: func(c *Config) { c.Identity.JWTSecret = "" }, wantErr: "jwt secret is required"},
		{name: "oidc without client", mutate: func(c *Config) {
			c.Identity.Mode = IdentityOIDC
			c.Identity.OIDC.IssuerURL = "https://issuer"
		}, wantErr: "oidc issuer URL and client ID are required"},
		{name: "unknown identity mode", mutate: func(c *Config) { c.Identity.Mode = "saml" }, wantErr: "invalid identity mode"},
		{name: "zero write budget", mutate: func(c *Config) { c.RateLimit.Write.RequestsPerWindow = 0 }, wantErr: "write rate limit"},
		{name: "zero budget ignored when disabled", mutate: func(c *Config) {
			c.RateLimit.Enabled = false
			c.RateLimit.Read.RequestsPerWindow = 0
		}},
		{name: "negative cooldown", mutate: func(c *Config) { c.JoinRequests.Cooldown = -time.Second }, wantErr: "cooldown cannot be negative"},
		{name: "otel without endpoint", mutate: func(c *Config) {
			c.Observability.OTel.Enabled = true
			c.Observability.OTel.Endpoint = ""
		}, wantErr: "OpenTelemetry endpoint is required"},
		{name: "scheduler without spec", mutate: func(c *Config) { c.Scheduler.StatsSpec = "" }, wantErr: "scheduler stats spec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("HG_TEST_STR", "value")
	t.Setenv("HG_TEST_BOOL", "1")
	t.Setenv("HG_TEST_INT", "not-a-number")
	t.Setenv("HG_TEST_DUR", "5m")

	assert.Equal(t, "value", getEnv("HG_TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("HG_TEST_UNSET", "default"))
	assert.True(t, getEnvBool("HG_TEST_BOOL", false))
	assert.Equal(t, 7, getEnvInt("HG_TEST_INT", 7))
	assert.Equal(t, 5*time.Minute, getEnvDuration("HG_TEST_DUR", time.Second))
	assert.Nil(t, getEnvList("HG_TEST_UNSET", nil))
}
