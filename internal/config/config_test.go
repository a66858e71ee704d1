package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Default()
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "position delete mode and unset filter",
			mutate:  func(c *Config) { c.DeleteMode = DeleteByPosition; c.InitialFilter = "" },
			wantErr: false,
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range high",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.LogLevel = "loud" },
			wantErr:     true,
			errorString: "invalid log level 'loud'",
		},
		{
			name:        "invalid log format",
			mutate:      func(c *Config) { c.LogFormat = "xml" },
			wantErr:     true,
			errorString: "invalid log format 'xml'",
		},
		{
			name:        "session ttl too short",
			mutate:      func(c *Config) { c.SessionTTL = 10 * time.Second },
			wantErr:     true,
			errorString: "invalid session ttl 10s: must be at least 1 minute",
		},
		{
			name:        "session max zero",
			mutate:      func(c *Config) { c.SessionMax = 0 },
			wantErr:     true,
			errorString: "invalid session max 0: must be at least 1",
		},
		{
			name:        "cleanup interval too long",
			mutate:      func(c *Config) { c.SessionCleanupInterval = 25 * time.Hour },
			wantErr:     true,
			errorString: "invalid session cleanup interval 25h0m0s: must be at most 24 hours",
		},
		{
			name:        "rate limit zero",
			mutate:      func(c *Config) { c.RateLimitPerMinute = 0 },
			wantErr:     true,
			errorString: "invalid rate limit 0",
		},
		{
			name:        "unknown initial filter",
			mutate:      func(c *Config) { c.InitialFilter = "food" },
			wantErr:     true,
			errorString: "invalid initial filter 'food'",
		},
		{
			name:        "unknown delete mode",
			mutate:      func(c *Config) { c.DeleteMode = "random" },
			wantErr:     true,
			errorString: "invalid delete mode 'random'",
		},
		{
			name:    "valid trusted proxies",
			mutate:  func(c *Config) { c.TrustedProxies = []string{"203.0.113.0/24", "2001:db8::/32"} },
			wantErr: false,
		},
		{
			name:        "trusted proxy not a CIDR",
			mutate:      func(c *Config) { c.TrustedProxies = []string{"203.0.113.7"} },
			wantErr:     true,
			errorString: "invalid trusted proxy '203.0.113.7'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Config.Validate() error = nil, wantErr %v", tt.wantErr)
					return
				}
				if tt.errorString != "" && !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("Config.Validate() error = %v, want error containing %v", err.Error(), tt.errorString)
				}
			} else if err != nil {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateAccumulates(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "0"
	cfg.DeleteMode = "x"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if n := strings.Count(err.Error(), "\n- "); n != 2 {
		t.Fatalf("expected 2 messages, got %d: %v", n, err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")

	t.Run("default values", func(t *testing.T) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Port != "8081" {
			t.Errorf("Load() Port = %v, want 8081", cfg.Port)
		}
		if cfg.DeleteMode != DeleteByIdentity {
			t.Errorf("Load() DeleteMode = %v, want identity", cfg.DeleteMode)
		}
		if cfg.InitialFilter != "all" {
			t.Errorf("Load() InitialFilter = %q, want all", cfg.InitialFilter)
		}
		if cfg.SessionTTL != 2*time.Hour {
			t.Errorf("Load() SessionTTL = %v, want 2h", cfg.SessionTTL)
		}
	})

	t.Run("environment variables", func(t *testing.T) {
		t.Setenv("EXPENSES_PORT", "9090")
		t.Setenv("EXPENSES_SESSION_TTL", "30m")
		t.Setenv("EXPENSES_SESSION_MAX", "25")
		t.Setenv("EXPENSES_DELETE_MODE", "position")
		t.Setenv("EXPENSES_FORM_RESET_ON_SUBMIT", "true")
		t.Setenv("EXPENSES_TRUSTED_PROXIES", "203.0.113.0/24, 198.51.100.0/24,")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Port != "9090" {
			t.Errorf("Load() Port = %v, want 9090", cfg.Port)
		}
		if cfg.SessionTTL != 30*time.Minute {
			t.Errorf("Load() SessionTTL = %v, want 30m", cfg.SessionTTL)
		}
		if cfg.SessionMax != 25 {
			t.Errorf("Load() SessionMax = %v, want 25", cfg.SessionMax)
		}
		if cfg.DeleteMode != DeleteByPosition {
			t.Errorf("Load() DeleteMode = %v, want position", cfg.DeleteMode)
		}
		if !cfg.FormResetOnSubmit {
			t.Errorf("Load() FormResetOnSubmit = false, want true")
		}
		if want := []string{"203.0.113.0/24", "198.51.100.0/24"}; !slices.Equal(cfg.TrustedProxies, want) {
			t.Errorf("Load() TrustedProxies = %v, want %v", cfg.TrustedProxies, want)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("Load() LogLevel = %v, defaults must survive env overrides", cfg.LogLevel)
		}
	})

	t.Run("yaml file below env", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "expenses.yaml")
		data := "port: \"7070\"\nlog_format: json\ninitial_filter: \"\"\n"
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv("EXPENSES_LOG_FORMAT", "text")

		cfg, err := Load(WithFile(path))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Port != "7070" {
			t.Errorf("Load() Port = %v, want 7070", cfg.Port)
		}
		if cfg.LogFormat != "text" {
			t.Errorf("Load() LogFormat = %v, env should win over file", cfg.LogFormat)
		}
		if cfg.InitialFilter != "" {
			t.Errorf("Load() InitialFilter = %q, want unset", cfg.InitialFilter)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(WithFile(filepath.Join(t.TempDir(), "nope.yaml"))); err == nil {
			t.Fatal("expected error for missing config file")
		}
	})
}
