// Package config loads the portal edge configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/R3E-Network/tenant_portal/internal/tenancy"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// SupabaseConfig points at the identity backend.
type SupabaseConfig struct {
	URL       string `env:"SUPABASE_URL"`
	AnonKey   string `env:"SUPABASE_ANON_KEY"`
	JWTSecret string `env:"SUPABASE_JWT_SECRET"`
}

// FXConfig configures the exchange-rate provider and its refresh schedule.
type FXConfig struct {
	APIURL          string        `env:"FX_API_URL,default=https://open.er-api.com/v6"`
	APIKey          string        `env:"FX_API_KEY"`
	RawBases        string        `env:"FX_BASES"`
	RefreshSchedule string        `env:"FX_REFRESH_SCHEDULE,default=@every 1h"`
	CacheTTL        time.Duration `env:"FX_CACHE_TTL,default=1h"`

	Bases []string
}

// Config is read once at process start and passed explicitly to components.
type Config struct {
	RootDomain  string `env:"ROOT_DOMAIN,required"`
	AppEnv      string `env:"APP_ENV,default=production"`
	ListenAddr  string `env:"LISTEN_ADDR,default=:8080"`
	UpstreamURL string `env:"UPSTREAM_URL,required"`

	Supabase              SupabaseConfig
	SessionRefreshTimeout time.Duration `env:"SESSION_REFRESH_TIMEOUT,default=2s"`

	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL"`
	TenantCacheTTL time.Duration `env:"TENANT_CACHE_TTL,default=5m"`

	FX FXConfig

	RawCORSOrigins string `env:"CORS_ALLOWED_ORIGINS"`
	APIRateLimit   int    `env:"API_RATE_LIMIT,default=20"`
	APIRateBurst   int    `env:"API_RATE_BURST,default=40"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	RoutingPolicyFile string        `env:"ROUTING_POLICY_FILE"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`

	CORSOrigins   []string
	RoutingPolicy tenancy.Policy
}

// Load reads envFile (when it exists) into the process environment and then
// decodes and validates the configuration.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finalize() error {
	c.RootDomain = strings.ToLower(strings.TrimSpace(c.RootDomain))
	c.AppEnv = strings.ToLower(strings.TrimSpace(c.AppEnv))
	switch c.AppEnv {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("APP_ENV: unsupported value %q", c.AppEnv)
	}

	u, err := url.Parse(c.UpstreamURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("UPSTREAM_URL: must be an absolute URL, got %q", c.UpstreamURL)
	}
	if c.SessionRefreshTimeout <= 0 {
		return fmt.Errorf("SESSION_REFRESH_TIMEOUT: must be positive")
	}
	if c.APIRateLimit <= 0 || c.APIRateBurst <= 0 {
		return fmt.Errorf("API_RATE_LIMIT and API_RATE_BURST must be positive")
	}
	if c.Supabase.URL != "" && c.Supabase.AnonKey == "" {
		return fmt.Errorf("SUPABASE_ANON_KEY is required when SUPABASE_URL is set")
	}

	c.FX.Bases = parseCSVList(c.FX.RawBases, true)
	if len(c.FX.Bases) == 0 {
		c.FX.Bases = []string{"USD", "CLP"}
	}
	c.CORSOrigins = parseCSVList(c.RawCORSOrigins, false)

	policy := tenancy.DefaultPolicy()
	if c.RoutingPolicyFile != "" {
		policy, err = LoadPolicyFromPath(c.RoutingPolicyFile)
		if err != nil {
			return err
		}
	}
	c.RoutingPolicy = policy.Normalize()
	return nil
}

// IsDevelopment reports whether *.localhost hosts should be recognized.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// Environment returns the routing environment derived from the config.
func (c *Config) Environment() tenancy.Environment {
	return tenancy.Environment{RootDomain: c.RootDomain, IsDevelopment: c.IsDevelopment()}
}

func parseCSVList(raw string, upper bool) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		if upper {
			trimmed = strings.ToUpper(trimmed)
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
