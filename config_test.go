package goSession

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Token.AccessTTL != 86400*time.Second {
		t.Fatalf("unexpected default access ttl %s", cfg.Token.AccessTTL)
	}
	if cfg.Token.RefreshTTL() != 7*86400*time.Second {
		t.Fatalf("unexpected default refresh ttl %s", cfg.Token.RefreshTTL())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "access ttl below one second",
			mutate:    func(c *Config) { c.Token.AccessTTL = 500 * time.Millisecond },
			wantValid: false,
		},
		{
			name:      "refresh multiplier zero",
			mutate:    func(c *Config) { c.Token.RefreshMultiplier = 0 },
			wantValid: false,
		},
		{
			name: "overlapping prefixes",
			mutate: func(c *Config) {
				c.Token.AccessPrefix = "auth:"
				c.Token.RefreshPrefix = "auth:refresh:"
			},
			wantValid: false,
		},
		{
			name:      "empty default role",
			mutate:    func(c *Config) { c.Token.DefaultRole = "" },
			wantValid: false,
		},
		{
			name:      "store timeout zero",
			mutate:    func(c *Config) { c.Store.OperationTimeout = 0 },
			wantValid: false,
		},
		{
			name: "jwt hs256 short secret",
			mutate: func(c *Config) {
				c.JWT.Enabled = true
				c.JWT.PrivateKey = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "jwt hs256 valid",
			mutate: func(c *Config) {
				c.JWT.Enabled = true
				c.JWT.PrivateKey = []byte(testJWTSecret)
			},
			wantValid: true,
		},
		{
			name: "jwt unsupported method",
			mutate: func(c *Config) {
				c.JWT.Enabled = true
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name:      "jwt disabled ignores keys",
			mutate:    func(c *Config) { c.JWT.SigningMethod = "rs256" },
			wantValid: true,
		},
		{
			name:      "password memory too low",
			mutate:    func(c *Config) { c.Password.Memory = 1024 },
			wantValid: false,
		},
		{
			name:      "negative login attempts",
			mutate:    func(c *Config) { c.Security.MaxLoginAttempts = -1 },
			wantValid: false,
		},
		{
			name: "login limit without window",
			mutate: func(c *Config) {
				c.Security.MaxLoginAttempts = 3
				c.Security.LoginCooldownDuration = 0
			},
			wantValid: false,
		},
		{
			name: "limits disabled",
			mutate: func(c *Config) {
				c.Security.MaxLoginAttempts = 0
				c.Security.MaxRefreshAttempts = 0
				c.Security.MaxRegisterAttempts = 0
				c.Security.LoginCooldownDuration = 0
			},
			wantValid: true,
		},
		{
			name:      "histograms without metrics",
			mutate:    func(c *Config) { c.Metrics.EnableLatencyHistograms = true },
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestWithConfigClonesKeyMaterial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testJWTSecret)

	b := New().WithConfig(cfg)
	cfg.JWT.PrivateKey[0] = 'X'

	if b.config.JWT.PrivateKey[0] != '0' {
		t.Fatal("builder must not alias caller key material")
	}
}
