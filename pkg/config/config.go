package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/hiregate/pkg/auth"
	"github.com/platinummonkey/hiregate/pkg/joinrequests"
	"github.com/platinummonkey/hiregate/pkg/middleware"
	"github.com/platinummonkey/hiregate/pkg/observability"
	"github.com/platinummonkey/hiregate/pkg/orgcache"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Identity      IdentityConfig      `yaml:"identity"`
	Redis         RedisConfig         `yaml:"redis"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Demo          DemoConfig          `yaml:"demo"`
	Invites       InvitesConfig       `yaml:"invites"`
	JoinRequests  JoinRequestsConfig  `yaml:"join_requests"`
	Audit         AuditConfig         `yaml:"audit"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL          string        `yaml:"url"`
	ReplicaURLs  []string      `yaml:"replica_urls"`
	MaxConns     int           `yaml:"max_conns"`
	MinConns     int           `yaml:"min_conns"`
	Timeout      time.Duration `yaml:"timeout"`
	EnsureSchema bool          `yaml:"ensure_schema"`
}

// Identity provider modes.
const (
	IdentityJWT  = "jwt"
	IdentityOIDC = "oidc"
)

// IdentityConfig selects how session tokens are validated.
type IdentityConfig struct {
	Mode        string          `yaml:"mode"`
	JWTSecret   string          `yaml:"jwt_secret"`
	JWTIssuer   string          `yaml:"jwt_issuer"`
	JWTAudience string          `yaml:"jwt_audience"`
	OIDC        auth.OIDCConfig `yaml:"oidc"`
}

// RedisConfig holds the optional Redis connection. An empty URL keeps rate
// limiting in process.
type RedisConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	MaxRetries int    `yaml:"max_retries"`
	PoolSize   int    `yaml:"pool_size"`
}

// RateLimitConfig holds per-IP admission budgets.
type RateLimitConfig struct {
	Enabled bool                       `yaml:"enabled"`
	Read    middleware.RateLimitConfig `yaml:"read"`
	Write   middleware.RateLimitConfig `yaml:"write"`
}

// DemoConfig names read-only demo organizations.
type DemoConfig struct {
	Slugs     []string `yaml:"slugs"`
	CacheSize int      `yaml:"cache_size"`
}

// InvitesConfig holds invite link settings
type InvitesConfig struct {
	// PublicBaseURL, when set, is used to build the shareable join URL
	// returned with a new link.
	PublicBaseURL string `yaml:"public_base_url"`
}

// JoinRequestsConfig holds join request settings
type JoinRequestsConfig struct {
	Cooldown time.Duration `yaml:"cooldown"`
}

// AuditConfig holds activity log settings
type AuditConfig struct {
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// LogEntries also writes every activity to the application log.
	LogEntries bool `yaml:"log_entries"`
}

// SchedulerConfig holds background job settings
type SchedulerConfig struct {
	Enabled   bool   `yaml:"enabled"`
	StatsSpec string `yaml:"stats_spec"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string                    `yaml:"log_level"`
	LogFormat      string                    `yaml:"log_format"`
	MetricsEnabled bool                      `yaml:"metrics_enabled"`
	OTel           observability.OTelConfig `yaml:"otel"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns: 20,
			MinConns: 2,
			Timeout:  30 * time.Second,
		},
		Identity: IdentityConfig{
			Mode: IdentityJWT,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Read:    *middleware.ReadRateLimitConfig(),
			Write:   *middleware.WriteRateLimitConfig(),
		},
		Demo: DemoConfig{
			CacheSize: orgcache.DefaultSize,
		},
		JoinRequests: JoinRequestsConfig{
			Cooldown: joinrequests.DefaultCooldown,
		},
		Audit: AuditConfig{
			WriteTimeout: 5 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:   true,
			StatsSpec: "@every 1m",
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			MetricsEnabled: true,
			OTel: observability.OTelConfig{
				Endpoint:       "localhost:4317",
				ServiceName:    "hiregate",
				ServiceVersion: "dev",
				Insecure:       true,
				SampleRatio:    1,
			},
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by HIREGATE_CONFIG_FILE, then HIREGATE_* environment variables.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("HIREGATE_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("HIREGATE_HOST", c.Server.Host)
	c.Server.Port = getEnv("HIREGATE_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("HIREGATE_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("HIREGATE_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("HIREGATE_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("HIREGATE_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AllowedOrigins = getEnvList("HIREGATE_ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Database.URL = getEnv("HIREGATE_DATABASE_URL", c.Database.URL)
	c.Database.ReplicaURLs = getEnvList("HIREGATE_DATABASE_REPLICA_URLS", c.Database.ReplicaURLs)
	c.Database.MaxConns = getEnvInt("HIREGATE_DATABASE_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvInt("HIREGATE_DATABASE_MIN_CONNS", c.Database.MinConns)
	c.Database.Timeout = getEnvDuration("HIREGATE_DATABASE_TIMEOUT", c.Database.Timeout)
	c.Database.EnsureSchema = getEnvBool("HIREGATE_DATABASE_ENSURE_SCHEMA", c.Database.EnsureSchema)

	c.Identity.Mode = strings.ToLower(getEnv("HIREGATE_IDENTITY_MODE", c.Identity.Mode))
	c.Identity.JWTSecret = getEnv("HIREGATE_JWT_SECRET", c.Identity.JWTSecret)
	c.Identity.JWTIssuer = getEnv("HIREGATE_JWT_ISSUER", c.Identity.JWTIssuer)
	c.Identity.JWTAudience = getEnv("HIREGATE_JWT_AUDIENCE", c.Identity.JWTAudience)
	c.Identity.OIDC.IssuerURL = getEnv("HIREGATE_OIDC_ISSUER_URL", c.Identity.OIDC.IssuerURL)
	c.Identity.OIDC.ClientID = getEnv("HIREGATE_OIDC_CLIENT_ID", c.Identity.OIDC.ClientID)
	c.Identity.OIDC.OrganizationClaim = getEnv("HIREGATE_OIDC_ORGANIZATION_CLAIM", c.Identity.OIDC.OrganizationClaim)

	c.Redis.URL = getEnv("HIREGATE_REDIS_URL", c.Redis.URL)
	c.Redis.Password = getEnv("HIREGATE_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("HIREGATE_REDIS_DB", c.Redis.DB)
	c.Redis.MaxRetries = getEnvInt("HIREGATE_REDIS_MAX_RETRIES", c.Redis.MaxRetries)
	c.Redis.PoolSize = getEnvInt("HIREGATE_REDIS_POOL_SIZE", c.Redis.PoolSize)

	c.RateLimit.Enabled = getEnvBool("HIREGATE_RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.Read.RequestsPerWindow = getEnvInt("HIREGATE_RATE_LIMIT_READ", c.RateLimit.Read.RequestsPerWindow)
	c.RateLimit.Write.RequestsPerWindow = getEnvInt("HIREGATE_RATE_LIMIT_WRITE", c.RateLimit.Write.RequestsPerWindow)
	window := getEnvDuration("HIREGATE_RATE_LIMIT_WINDOW", 0)
	if window > 0 {
		c.RateLimit.Read.WindowDuration = window
		c.RateLimit.Write.WindowDuration = window
	}

	c.Demo.Slugs = getEnvList("HIREGATE_DEMO_ORG_SLUG", c.Demo.Slugs)
	c.Invites.PublicBaseURL = getEnv("HIREGATE_PUBLIC_BASE_URL", c.Invites.PublicBaseURL)
	c.JoinRequests.Cooldown = getEnvDuration("HIREGATE_JOIN_REQUEST_COOLDOWN", c.JoinRequests.Cooldown)
	c.Audit.WriteTimeout = getEnvDuration("HIREGATE_AUDIT_WRITE_TIMEOUT", c.Audit.WriteTimeout)
	c.Audit.LogEntries = getEnvBool("HIREGATE_AUDIT_LOG_ENTRIES", c.Audit.LogEntries)
	c.Scheduler.Enabled = getEnvBool("HIREGATE_SCHEDULER_ENABLED", c.Scheduler.Enabled)
	c.Scheduler.StatsSpec = getEnv("HIREGATE_SCHEDULER_STATS_SPEC", c.Scheduler.StatsSpec)

	c.Observability.LogLevel = getEnv("HIREGATE_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("HIREGATE_LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsEnabled = getEnvBool("HIREGATE_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTel.Enabled = getEnvBool("HIREGATE_OTEL_ENABLED", c.Observability.OTel.Enabled)
	c.Observability.OTel.Endpoint = getEnv("HIREGATE_OTEL_ENDPOINT", c.Observability.OTel.Endpoint)
	c.Observability.OTel.ServiceName = getEnv("HIREGATE_OTEL_SERVICE_NAME", c.Observability.OTel.ServiceName)
	c.Observability.OTel.ServiceVersion = getEnv("HIREGATE_OTEL_SERVICE_VERSION", c.Observability.OTel.ServiceVersion)
	c.Observability.OTel.Insecure = getEnvBool("HIREGATE_OTEL_INSECURE", c.Observability.OTel.Insecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database URL is required"))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, errors.New("database max conns must be positive"))
	}

	switch c.Identity.Mode {
	case IdentityJWT:
		if c.Identity.JWTSecret == "" {
			errs = append(errs, errors.New("jwt secret is required in jwt identity mode"))
		}
	case IdentityOIDC:
		if c.Identity.OIDC.IssuerURL == "" || c.Identity.OIDC.ClientID == "" {
			errs = append(errs, errors.New("oidc issuer URL and client ID are required in oidc identity mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid identity mode: %q (must be jwt or oidc)", c.Identity.Mode))
	}

	if c.RateLimit.Enabled {
		for name, rl := range map[string]middleware.RateLimitConfig{"read": c.RateLimit.Read, "write": c.RateLimit.Write} {
			if rl.RequestsPerWindow <= 0 || rl.WindowDuration <= 0 {
				errs = append(errs, fmt.Errorf("%s rate limit needs a positive budget and window", name))
			}
		}
	}

	if c.JoinRequests.Cooldown < 0 {
		errs = append(errs, errors.New("join request cooldown cannot be negative"))
	}
	if c.Scheduler.Enabled && c.Scheduler.StatsSpec == "" {
		errs = append(errs, errors.New("scheduler stats spec is required when the scheduler is enabled"))
	}

	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			errs = append(errs, errors.New("OpenTelemetry endpoint is required when OTel is enabled"))
		}
		if c.Observability.OTel.ServiceName == "" {
			errs = append(errs, errors.New("OpenTelemetry service name is required when OTel is enabled"))
		}
	}

	return errors.Join(errs...)
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
