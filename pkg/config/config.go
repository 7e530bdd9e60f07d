package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"dealerhub/pkg/validation"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret          string        `yaml:"jwt_secret"`
		Issuer             string        `yaml:"issuer"`
		SessionTTL         time.Duration `yaml:"session_ttl"`
		ValidationInterval time.Duration `yaml:"validation_interval"`
		CookieName         string        `yaml:"cookie_name"`
		CookieDomain       string        `yaml:"cookie_domain"`
		CookieSecure       bool          `yaml:"cookie_secure"`
		LoginPath          string        `yaml:"login_path"`
		AccessDeniedPath   string        `yaml:"access_denied_path"`
	} `yaml:"auth"`

	Backend struct {
		// Empty BaseURL switches authentication to the local directory.
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`

		Retry struct {
			Enabled      bool          `yaml:"enabled"`
			MaxAttempts  int           `yaml:"max_attempts"`
			InitialDelay time.Duration `yaml:"initial_delay"`
			MaxDelay     time.Duration `yaml:"max_delay"`
		} `yaml:"retry"`

		CircuitBreaker struct {
			FailureThreshold    int           `yaml:"failure_threshold"`
			SuccessThreshold    int           `yaml:"success_threshold"`
			OpenTimeout         time.Duration `yaml:"open_timeout"`
			MaxRequestsHalfOpen int           `yaml:"max_requests_half_open"`
		} `yaml:"circuit_breaker"`
	} `yaml:"backend"`

	Directory struct {
		UsersFile string `yaml:"users_file"`
	} `yaml:"directory"`

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

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		Login struct {
			RequestsPerMinute float64 `yaml:"requests_per_minute"`
			Burst             int     `yaml:"burst"`
		} `yaml:"login"`
	} `yaml:"rate_limiting"`
}

// UsesBackend reports whether logins go to the external backend API.
func (c *Config) UsesBackend() bool {
	return c.Backend.BaseURL != ""
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

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console")
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

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be > 0")
	}
	if c.Auth.ValidationInterval < 0 {
		return fmt.Errorf("auth.validation_interval must be >= 0")
	}
	if c.Auth.CookieName == "" {
		return fmt.Errorf("auth.cookie_name must not be empty")
	}
	if !strings.HasPrefix(c.Auth.LoginPath, "/") {
		return fmt.Errorf("auth.login_path must be an absolute path")
	}
	if !strings.HasPrefix(c.Auth.AccessDeniedPath, "/") {
		return fmt.Errorf("auth.access_denied_path must be an absolute path")
	}

	// Backend
	if c.UsesBackend() {
		if err := validation.ValidateURL(c.Backend.BaseURL); err != nil {
			return fmt.Errorf("backend.base_url: %w", err)
		}
		if c.Backend.Timeout <= 0 {
			return fmt.Errorf("backend.timeout must be > 0")
		}
		if c.Backend.Retry.Enabled && c.Backend.Retry.MaxAttempts < 0 {
			return fmt.Errorf("backend.retry.max_attempts must be >= 0")
		}
		if c.Backend.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("backend.circuit_breaker.failure_threshold must be > 0")
		}
		if c.Backend.CircuitBreaker.SuccessThreshold <= 0 {
			return fmt.Errorf("backend.circuit_breaker.success_threshold must be > 0")
		}
		if c.Backend.CircuitBreaker.OpenTimeout <= 0 {
			return fmt.Errorf("backend.circuit_breaker.open_timeout must be > 0")
		}
	} else if c.Directory.UsersFile == "" {
		return fmt.Errorf("directory.users_file must be set when backend.base_url is empty")
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

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.Login.RequestsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.login.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Login.Burst <= 0 {
			return fmt.Errorf("rate_limiting.login.burst must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
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
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 20 * time.Second

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.Issuer = "dealerhub"
	cfg.Auth.SessionTTL = 12 * time.Hour
	cfg.Auth.ValidationInterval = time.Minute
	cfg.Auth.CookieName = "dealerhub_session"
	cfg.Auth.LoginPath = "/login"
	cfg.Auth.AccessDeniedPath = "/unauthorized"

	cfg.Backend.Timeout = 10 * time.Second
	cfg.Backend.Retry.Enabled = true
	cfg.Backend.Retry.MaxAttempts = 2
	cfg.Backend.Retry.InitialDelay = 100 * time.Millisecond
	cfg.Backend.Retry.MaxDelay = 2 * time.Second
	cfg.Backend.CircuitBreaker.FailureThreshold = 5
	cfg.Backend.CircuitBreaker.SuccessThreshold = 2
	cfg.Backend.CircuitBreaker.OpenTimeout = 30 * time.Second
	cfg.Backend.CircuitBreaker.MaxRequestsHalfOpen = 3

	cfg.Directory.UsersFile = "configs/users.yaml"

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "dealerhub"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	// Login throttling is off unless configured
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.Login.RequestsPerMinute = 10
	cfg.RateLimiting.Login.Burst = 5

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("DEALERHUB_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("DEALERHUB_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("DEALERHUB_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if backend := os.Getenv("DEALERHUB_BACKEND_URL"); backend != "" {
		c.Backend.BaseURL = backend
	}
	if addr := os.Getenv("DEALERHUB_REDIS_ADDRESS"); addr != "" {
		c.Redis.Enabled = true
		c.Redis.Address = addr
	}
}
