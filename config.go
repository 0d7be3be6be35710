package goLearn

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by LoadConfigFromEnv.
const EnvPrefix = "GOLEARN_"

// Config is the full client configuration. Build clones it; later mutation has no effect.
type Config struct {
	BaseURL    string           `env:"BASE_URL"`
	UserAgent  string           `env:"USER_AGENT"`
	Timeout    time.Duration    `env:"TIMEOUT"`
	Auth       AuthConfig       `envPrefix:"AUTH_"`
	Refresh    RefreshConfig    `envPrefix:"REFRESH_"`
	Retry      RetryConfig      `envPrefix:"RETRY_"`
	Events     EventsConfig     `envPrefix:"EVENTS_"`
	Metrics    MetricsConfig    `envPrefix:"METRICS_"`
	TokenStore TokenStoreConfig `envPrefix:"TOKEN_STORE_"`
}

/*
====================================
AUTH CONFIG
====================================
*/

// AuthConfig names the backend's authentication endpoints. Requests to the login, register
// and refresh paths never carry a bearer token and never trigger a refresh.
type AuthConfig struct {
	LoginPath       string `env:"LOGIN_PATH"`
	RegisterPath    string `env:"REGISTER_PATH"`
	RefreshPath     string `env:"REFRESH_PATH"`
	LogoutPath      string `env:"LOGOUT_PATH"`
	MePath          string `env:"ME_PATH"`
	TokenType       string `env:"TOKEN_TYPE"`
	RequestIDHeader string `env:"REQUEST_ID_HEADER"`
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls the refresh coordinator.
type RefreshConfig struct {
	// Timeout bounds the single refresh call shared by all waiters.
	Timeout time.Duration `env:"TIMEOUT"`
	// Skew triggers a proactive refresh when the access token expires within it.
	// Zero disables proactive refresh.
	Skew time.Duration `env:"SKEW"`
	// ExpiredStatusCodes are the response statuses treated as an expired access token.
	ExpiredStatusCodes []int `env:"EXPIRED_STATUS_CODES" envSeparator:","`
}

/*
====================================
RETRY CONFIG
====================================
*/

// RetryConfig controls replay of idempotent requests on gateway failures. It never applies
// to auth endpoints: a failed refresh is not retried.
type RetryConfig struct {
	Attempts    uint          `env:"ATTEMPTS"`
	Delay       time.Duration `env:"DELAY"`
	MaxDelay    time.Duration `env:"MAX_DELAY"`
	StatusCodes []int         `env:"STATUS_CODES" envSeparator:","`
}

/*
====================================
EVENTS / METRICS
====================================
*/

// EventsConfig controls the asynchronous event queue.
type EventsConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

/*
====================================
TOKEN STORE CONFIG
====================================
*/

// Token store backends accepted by TokenStoreConfig.Backend.
const (
	TokenStoreMemory = "memory"
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
)

// TokenStoreConfig selects the backend opened by Build when no store is injected.
type TokenStoreConfig struct {
	Backend     string        `env:"BACKEND"`
	FilePath    string        `env:"FILE_PATH"`
	RedisAddr   string        `env:"REDIS_ADDR"`
	RedisPrefix string        `env:"REDIS_PREFIX"`
	RedisKey    string        `env:"REDIS_KEY"`
	TTL         time.Duration `env:"TTL"`
}

// DefaultConfig returns the configuration Build uses when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		UserAgent: "golearn-go",
		Timeout:   30 * time.Second,
		Auth: AuthConfig{
			LoginPath:       "/auth/login",
			RegisterPath:    "/auth/register",
			RefreshPath:     "/auth/refresh",
			LogoutPath:      "/auth/logout",
			MePath:          "/users/me",
			TokenType:       "Bearer",
			RequestIDHeader: "X-Request-ID",
		},
		Refresh: RefreshConfig{
			Timeout:            15 * time.Second,
			Skew:               30 * time.Second,
			ExpiredStatusCodes: []int{401},
		},
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    200 * time.Millisecond,
			MaxDelay: 2 * time.Second,
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		TokenStore: TokenStoreConfig{
			Backend:     TokenStoreMemory,
			RedisPrefix: "gl",
			RedisKey:    "default",
		},
	}
}

// LoadConfigFromEnv overlays GOLEARN_* environment variables on DefaultConfig.
func LoadConfigFromEnv() (Config, error) {
	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Refresh.ExpiredStatusCodes = append([]int(nil), cfg.Refresh.ExpiredStatusCodes...)
	out.Retry.StatusCodes = append([]int(nil), cfg.Retry.StatusCodes...)
	return out
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("BaseURL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("BaseURL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("BaseURL must be http or https")
	}
	if u.Host == "" {
		return errors.New("BaseURL must include a host")
	}
	if c.Timeout < 0 {
		return errors.New("Timeout must be >= 0")
	}

	for name, p := range map[string]string{
		"LoginPath":    c.Auth.LoginPath,
		"RegisterPath": c.Auth.RegisterPath,
		"RefreshPath":  c.Auth.RefreshPath,
		"LogoutPath":   c.Auth.LogoutPath,
		"MePath":       c.Auth.MePath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("Auth.%s must start with /", name)
		}
	}
	if c.Auth.RefreshPath == c.Auth.MePath {
		return errors.New("Auth.RefreshPath must differ from Auth.MePath")
	}
	if strings.TrimSpace(c.Auth.TokenType) == "" {
		return errors.New("Auth.TokenType is required")
	}

	if c.Refresh.Timeout <= 0 {
		return errors.New("Refresh.Timeout must be > 0")
	}
	if c.Refresh.Skew < 0 || c.Refresh.Skew > 10*time.Minute {
		return errors.New("Refresh.Skew must be in [0, 10m]")
	}
	if len(c.Refresh.ExpiredStatusCodes) == 0 {
		return errors.New("Refresh.ExpiredStatusCodes must not be empty")
	}
	for _, code := range c.Refresh.ExpiredStatusCodes {
		if code < 400 || code > 499 {
			return fmt.Errorf("Refresh.ExpiredStatusCodes: %d is not a 4xx status", code)
		}
	}

	if c.Retry.Attempts > 10 {
		return errors.New("Retry.Attempts must be <= 10")
	}
	if c.Retry.Delay < 0 || c.Retry.MaxDelay < 0 {
		return errors.New("Retry delays must be >= 0")
	}
	for _, code := range c.Retry.StatusCodes {
		if code < 500 || code > 599 {
			if code != 429 {
				return fmt.Errorf("Retry.StatusCodes: %d is not retryable", code)
			}
		}
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events.BufferSize must be > 0 when events are enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics.EnableLatencyHistograms requires Metrics.Enabled")
	}

	switch c.TokenStore.Backend {
	case "", TokenStoreMemory:
	case TokenStoreFile:
		if c.TokenStore.FilePath == "" {
			return errors.New("TokenStore.FilePath is required for the file backend")
		}
	case TokenStoreRedis:
		if c.TokenStore.RedisAddr == "" {
			return errors.New("TokenStore.RedisAddr is required for the redis backend")
		}
		if c.TokenStore.RedisKey == "" {
			return errors.New("TokenStore.RedisKey is required for the redis backend")
		}
	default:
		return fmt.Errorf("TokenStore.Backend %q is not supported", c.TokenStore.Backend)
	}
	if c.TokenStore.TTL < 0 {
		return errors.New("TokenStore.TTL must be >= 0")
	}

	return nil
}
