package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"streamgate/pkg/validation"
)

const (
	ProviderBunny      = "bunny"
	ProviderCloudflare = "cloudflare"

	IdentityModeHS256 = "hs256"
	IdentityModeJWKS  = "jwks"

	// MinJWTSecretLength is the shortest accepted HS256 secret, 256 bits.
	MinJWTSecretLength = 32
)

// placeholderSecrets are sample values from docs and env templates that must never verify tokens.
var placeholderSecrets = []string{"change-me", "changeme", "replace-me", "your-secret"}

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is believed.
		// Empty trusts none, so the client address is the socket peer.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Database struct {
		Enabled         bool          `yaml:"enabled"`
		URL             string        `yaml:"url"`
		MaxConns        int32         `yaml:"max_conns"`
		MinConns        int32         `yaml:"min_conns"`
		MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
		QueryTimeout    time.Duration `yaml:"query_timeout"`
	} `yaml:"database"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Identity struct {
		Mode            string        `yaml:"mode"`
		JWTSecret       string        `yaml:"jwt_secret"`
		JWKSURL         string        `yaml:"jwks_url"`
		Issuer          string        `yaml:"issuer"`
		Audience        string        `yaml:"audience"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		// AdminSubjects seeds admin profiles when the record store is in memory.
		AdminSubjects []string `yaml:"admin_subjects"`
	} `yaml:"identity"`

	Signing struct {
		// AllowUnsigned permits plain URLs when the provider has no signing key configured.
		AllowUnsigned bool `yaml:"allow_unsigned"`
	} `yaml:"signing"`

	CDN struct {
		Provider    string        `yaml:"provider"`
		HTTPTimeout time.Duration `yaml:"http_timeout"`

		Bunny struct {
			LibraryID    string `yaml:"library_id"`
			APIKey       string `yaml:"api_key"`
			CDNHostname  string `yaml:"cdn_hostname"`
			TokenAuthKey string `yaml:"token_auth_key"`
			APIBaseURL   string `yaml:"api_base_url"`
		} `yaml:"bunny"`

		Cloudflare struct {
			AccountID          string `yaml:"account_id"`
			APIToken           string `yaml:"api_token"`
			CustomerCode       string `yaml:"customer_code"`
			SigningKeyID       string `yaml:"signing_key_id"`
			SigningKeyPEM      string `yaml:"signing_key_pem"`
			APIBaseURL         string `yaml:"api_base_url"`
			MaxDurationSeconds int    `yaml:"max_duration_seconds"`
		} `yaml:"cloudflare"`

		// Optional URL template overrides. Empty means the provider default.
		Templates struct {
			Media     string `yaml:"media"`
			Embed     string `yaml:"embed"`
			Thumbnail string `yaml:"thumbnail"`
		} `yaml:"templates"`

		EmbedParams map[string]string `yaml:"embed_params"`

		CircuitBreaker struct {
			MaxFailures  int           `yaml:"max_failures"`
			ResetTimeout time.Duration `yaml:"reset_timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"cdn"`

	Access struct {
		DefaultTTL       time.Duration `yaml:"default_ttl"`
		MaxTTL           time.Duration `yaml:"max_ttl"`
		LookupTimeout    time.Duration `yaml:"lookup_timeout"`
		AllowedCountries []string      `yaml:"allowed_countries"`
		Downloadable     bool          `yaml:"downloadable"`
	} `yaml:"access"`

	Jobs struct {
		EnrollmentSweep struct {
			Enabled   bool          `yaml:"enabled"`
			Schedule  string        `yaml:"schedule"`
			Retention time.Duration `yaml:"retention"`
		} `yaml:"enrollment_sweep"`
	} `yaml:"jobs"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		// Grants bounds how many playback grants one user may request per window.
		Grants struct {
			Limit  int           `yaml:"limit"`
			Window time.Duration `yaml:"window"`
		} `yaml:"grants"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("server.trusted_proxies: %q is neither an IP nor a CIDR", proxy)
			}
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Database
	if c.Database.Enabled {
		if c.Database.URL == "" {
			return fmt.Errorf("database.url must not be empty when database.enabled=true")
		}
		if c.Database.MaxConns <= 0 {
			return fmt.Errorf("database.max_conns must be > 0 when database.enabled=true")
		}
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be > 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Identity
	switch c.Identity.Mode {
	case IdentityModeHS256:
		if err := validateJWTSecret(c.Identity.JWTSecret); err != nil {
			return err
		}
	case IdentityModeJWKS:
		if c.Identity.JWKSURL == "" {
			return fmt.Errorf("identity.jwks_url must not be empty when identity.mode=jwks")
		}
	default:
		return fmt.Errorf("identity.mode must be %q or %q, got %q", IdentityModeHS256, IdentityModeJWKS, c.Identity.Mode)
	}

	for _, origin := range c.Identity.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "https://") && !strings.HasPrefix(origin, "http://") {
			return fmt.Errorf("identity.allowed_origins: %q must be \"*\" or start with http:// or https://", origin)
		}
	}

	// CDN. Missing signing keys are not rejected here: the service starts, reports not ready,
	// and refuses every grant with a configuration error.
	switch c.CDN.Provider {
	case ProviderBunny:
		if c.CDN.Bunny.LibraryID == "" {
			return fmt.Errorf("cdn.bunny.library_id must not be empty when cdn.provider=bunny")
		}
		if c.CDN.Bunny.CDNHostname == "" && c.CDN.Templates.Media == "" {
			return fmt.Errorf("cdn.bunny.cdn_hostname must not be empty when cdn.provider=bunny")
		}
	case ProviderCloudflare:
		if c.CDN.Cloudflare.AccountID == "" {
			return fmt.Errorf("cdn.cloudflare.account_id must not be empty when cdn.provider=cloudflare")
		}
		if c.CDN.Cloudflare.CustomerCode == "" && c.CDN.Templates.Media == "" {
			return fmt.Errorf("cdn.cloudflare.customer_code must not be empty when cdn.provider=cloudflare")
		}
	default:
		return fmt.Errorf("cdn.provider must be %q or %q, got %q", ProviderBunny, ProviderCloudflare, c.CDN.Provider)
	}
	if c.CDN.HTTPTimeout <= 0 {
		return fmt.Errorf("cdn.http_timeout must be > 0")
	}
	if c.CDN.CircuitBreaker.MaxFailures <= 0 {
		return fmt.Errorf("cdn.circuit_breaker.max_failures must be > 0")
	}
	if c.CDN.CircuitBreaker.ResetTimeout <= 0 {
		return fmt.Errorf("cdn.circuit_breaker.reset_timeout must be > 0")
	}

	// Access
	if c.Access.DefaultTTL <= 0 {
		return fmt.Errorf("access.default_ttl must be > 0")
	}
	if c.Access.MaxTTL < c.Access.DefaultTTL {
		return fmt.Errorf("access.max_ttl must be >= access.default_ttl")
	}
	if c.Access.LookupTimeout <= 0 {
		return fmt.Errorf("access.lookup_timeout must be > 0")
	}
	if err := validation.ValidateCountryCodes(c.Access.AllowedCountries); err != nil {
		return fmt.Errorf("access.allowed_countries: %w", err)
	}

	// Jobs
	if c.Jobs.EnrollmentSweep.Enabled {
		if c.Jobs.EnrollmentSweep.Schedule == "" {
			return fmt.Errorf("jobs.enrollment_sweep.schedule must not be empty when enabled")
		}
		if c.Jobs.EnrollmentSweep.Retention < 0 {
			return fmt.Errorf("jobs.enrollment_sweep.retention must be >= 0")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Grants.Limit <= 0 {
			return fmt.Errorf("rate_limiting.grants.limit must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Grants.Window <= 0 {
			return fmt.Errorf("rate_limiting.grants.window must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

func validateJWTSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("identity.jwt_secret must be set (STREAMGATE_JWT_SECRET) when identity.mode=hs256")
	}
	lower := strings.ToLower(secret)
	for _, placeholder := range placeholderSecrets {
		if strings.Contains(lower, placeholder) {
			return fmt.Errorf("identity.jwt_secret looks like a placeholder, set a random secret")
		}
	}
	if len(secret) < MinJWTSecretLength {
		return fmt.Errorf("identity.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "streamgate"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Database.Enabled = false
	cfg.Database.MaxConns = 10
	cfg.Database.MinConns = 1
	cfg.Database.MaxConnLifetime = time.Hour
	cfg.Database.QueryTimeout = 3 * time.Second

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Identity.Mode = IdentityModeHS256
	cfg.Identity.RefreshInterval = 15 * time.Minute
	cfg.Identity.AllowedOrigins = []string{"*"}

	cfg.Signing.AllowUnsigned = false

	cfg.CDN.Provider = ProviderBunny
	cfg.CDN.HTTPTimeout = 10 * time.Second
	cfg.CDN.Bunny.LibraryID = "0"
	cfg.CDN.Bunny.CDNHostname = "localhost"
	cfg.CDN.Bunny.APIBaseURL = "https://video.bunnycdn.com"
	cfg.CDN.Cloudflare.APIBaseURL = "https://api.cloudflare.com/client/v4"
	cfg.CDN.Cloudflare.MaxDurationSeconds = 3600
	cfg.CDN.EmbedParams = map[string]string{}
	cfg.CDN.CircuitBreaker.MaxFailures = 5
	cfg.CDN.CircuitBreaker.ResetTimeout = 30 * time.Second

	cfg.Access.DefaultTTL = 2 * time.Hour
	cfg.Access.MaxTTL = 24 * time.Hour
	cfg.Access.LookupTimeout = 3 * time.Second

	cfg.Jobs.EnrollmentSweep.Enabled = false
	cfg.Jobs.EnrollmentSweep.Schedule = "@daily"
	cfg.Jobs.EnrollmentSweep.Retention = 30 * 24 * time.Hour

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.Grants.Limit = 60
	cfg.RateLimiting.Grants.Window = time.Minute

	return cfg
}

func (c *Config) applyEnvOverrides() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("STREAMGATE_SERVER_ADDRESS", &c.Server.Address)
	setString("STREAMGATE_LOG_LEVEL", &c.Logging.Level)

	setBool("STREAMGATE_DATABASE_ENABLED", &c.Database.Enabled)
	setString("STREAMGATE_DATABASE_URL", &c.Database.URL)
	setBool("STREAMGATE_REDIS_ENABLED", &c.Redis.Enabled)
	setString("STREAMGATE_REDIS_ADDRESS", &c.Redis.Address)
	setString("STREAMGATE_REDIS_PASSWORD", &c.Redis.Password)

	setString("STREAMGATE_IDENTITY_MODE", &c.Identity.Mode)
	setString("STREAMGATE_JWT_SECRET", &c.Identity.JWTSecret)
	setString("STREAMGATE_JWKS_URL", &c.Identity.JWKSURL)

	setBool("STREAMGATE_SIGNING_ALLOW_UNSIGNED", &c.Signing.AllowUnsigned)

	setString("STREAMGATE_CDN_PROVIDER", &c.CDN.Provider)
	setString("STREAMGATE_BUNNY_LIBRARY_ID", &c.CDN.Bunny.LibraryID)
	setString("STREAMGATE_BUNNY_API_KEY", &c.CDN.Bunny.APIKey)
	setString("STREAMGATE_BUNNY_CDN_HOSTNAME", &c.CDN.Bunny.CDNHostname)
	setString("STREAMGATE_BUNNY_TOKEN_AUTH_KEY", &c.CDN.Bunny.TokenAuthKey)
	setString("STREAMGATE_CLOUDFLARE_ACCOUNT_ID", &c.CDN.Cloudflare.AccountID)
	setString("STREAMGATE_CLOUDFLARE_API_TOKEN", &c.CDN.Cloudflare.APIToken)
	setString("STREAMGATE_CLOUDFLARE_CUSTOMER_CODE", &c.CDN.Cloudflare.CustomerCode)
	setString("STREAMGATE_CLOUDFLARE_SIGNING_KEY_ID", &c.CDN.Cloudflare.SigningKeyID)
	setString("STREAMGATE_CLOUDFLARE_SIGNING_KEY_PEM", &c.CDN.Cloudflare.SigningKeyPEM)

	if v := os.Getenv("STREAMGATE_ACCESS_ALLOWED_COUNTRIES"); v != "" {
		var countries []string
		for _, part := range splitList(v) {
			countries = append(countries, strings.ToUpper(part))
		}
		c.Access.AllowedCountries = countries
	}
	if v := os.Getenv("STREAMGATE_TRUSTED_PROXIES"); v != "" {
		c.Server.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("STREAMGATE_ALLOWED_ORIGINS"); v != "" {
		c.Identity.AllowedOrigins = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
