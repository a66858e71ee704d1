package config

import (
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"expenses/internal/core"
)

const (
	envPrefix = "EXPENSES_"
	// ConfigFileEnv names an optional YAML file loaded before env vars.
	ConfigFileEnv = envPrefix + "CONFIG_FILE"
)

// Delete modes select what a row's delete control carries.
const (
	DeleteByIdentity = "identity"
	DeleteByPosition = "position"
)

type Config struct {
	// HTTP Server
	Port            string        `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Logging
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// Sessions
	SessionTTL             time.Duration `koanf:"session_ttl"`
	SessionMax             int           `koanf:"session_max"`
	SessionCleanupInterval time.Duration `koanf:"session_cleanup_interval"`

	// Rate limiting and client IP resolution
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`
	// TrustedProxies are extra CIDRs whose X-Forwarded-For is believed, on
	// top of loopback and private ranges.
	TrustedProxies []string `koanf:"trusted_proxies"`

	// Form and table behaviour
	InitialFilter     string `koanf:"initial_filter"`
	DeleteMode        string `koanf:"delete_mode"`
	FormResetOnSubmit bool   `koanf:"form_reset_on_submit"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Port:                   "8081",
		ShutdownTimeout:        10 * time.Second,
		LogLevel:               "info",
		LogFormat:              "text",
		SessionTTL:             2 * time.Hour,
		SessionMax:             1000,
		SessionCleanupInterval: 5 * time.Minute,
		RateLimitPerMinute:     120,
		InitialFilter:          string(core.FilterAll),
		DeleteMode:             DeleteByIdentity,
		FormResetOnSubmit:      false,
	}
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	file string
}

// WithFile loads path as YAML before env vars, overriding EXPENSES_CONFIG_FILE.
func WithFile(path string) Option {
	return func(o *loadOptions) {
		o.file = path
	}
}

// Load builds the configuration in layers, later ones winning:
//
//  1. Defaults
//  2. YAML file (EXPENSES_CONFIG_FILE or WithFile), when set
//  3. Environment variables with the EXPENSES_ prefix
//
// Env names are the lower-cased key after the prefix:
//
//	EXPENSES_PORT          -> port
//	EXPENSES_SESSION_TTL   -> session_ttl
//	EXPENSES_DELETE_MODE   -> delete_mode
//
// EXPENSES_TRUSTED_PROXIES is a comma separated CIDR list.
func Load(opts ...Option) (*Config, error) {
	o := &loadOptions{file: os.Getenv(ConfigFileEnv)}
	for _, opt := range opts {
		opt(o)
	}

	k := koanf.New(".")

	if o.file != "" {
		if err := k.Load(file.Provider(o.file), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", o.file, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			if key == ConfigFileEnv {
				return "", nil
			}
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			if key == "trusted_proxies" {
				return key, splitList(value)
			}
			return key, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// splitList turns "a, b,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Filter returns the configured initial table filter.
func (c *Config) Filter() core.Filter {
	return core.ParseFilter(c.InitialFilter)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}
	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session ttl %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionMax < 1 {
		errors = append(errors, fmt.Sprintf("invalid session max %d: must be at least 1", c.SessionMax))
	}
	if c.SessionCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid session cleanup interval %v: must be at least 1 second", c.SessionCleanupInterval))
	} else if c.SessionCleanupInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session cleanup interval %v: must be at most 24 hours", c.SessionCleanupInterval))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}
	if c.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be positive", c.ShutdownTimeout))
	}

	validFilters := []string{string(core.FilterUnset), string(core.FilterAll)}
	validFilters = append(validFilters, core.CategoryValues()...)
	if !slices.Contains(validFilters, string(c.Filter())) {
		errors = append(errors, fmt.Sprintf("invalid initial filter '%s': must be empty, 'all' or a category", c.InitialFilter))
	}

	validModes := []string{DeleteByIdentity, DeleteByPosition}
	if !slices.Contains(validModes, c.DeleteMode) {
		errors = append(errors, fmt.Sprintf("invalid delete mode '%s': must be one of %v", c.DeleteMode, validModes))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
