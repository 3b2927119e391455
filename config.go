package goSession

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
)

// Config is the complete Engine configuration. Start from [DefaultConfig].
type Config struct {
	Token    TokenConfig
	Store    StoreConfig
	JWT      JWTConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls opaque token lifetimes, store key namespaces and
// roles.
type TokenConfig struct {
	AccessTTL             time.Duration
	RefreshMultiplier     int // refresh TTL = AccessTTL * RefreshMultiplier
	AccessPrefix          string
	RefreshPrefix         string
	DefaultRole           string
	ClientRole            string
	PreserveRoleOnRefresh bool
}

// RefreshTTL returns the refresh token lifetime.
func (c TokenConfig) RefreshTTL() time.Duration {
	return c.AccessTTL * time.Duration(c.RefreshMultiplier)
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig bounds every token store call.
type StoreConfig struct {
	OperationTimeout time.Duration
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the signed-token fallback. When Enabled is false the
// Request Authenticator only consults the opaque store and client login is
// unavailable.
type JWTConfig struct {
	Enabled       bool
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

func (c JWTConfig) managerConfig() jwt.Config {
	return jwt.Config{
		TTL:           c.TTL,
		SigningMethod: jwt.SigningMethod(c.SigningMethod),
		PrivateKey:    cloneBytes(c.PrivateKey),
		PublicKey:     cloneBytes(c.PublicKey),
		Issuer:        c.Issuer,
		Audience:      c.Audience,
		Leeway:        c.Leeway,
		KeyID:         c.KeyID,
	}
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters for user stores that hash
// through [NewPasswordHasher].
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// NewPasswordHasher builds the Argon2id hasher described by cfg.
func NewPasswordHasher(cfg PasswordConfig) (*password.Argon2, error) {
	return password.NewArgon2(password.Config{
		Memory:      cfg.Memory,
		Time:        cfg.Time,
		Parallelism: cfg.Parallelism,
		SaltLength:  cfg.SaltLength,
		KeyLength:   cfg.KeyLength,
	})
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls rate limiting. A zero Max* disables that limit.
type SecurityConfig struct {
	RateLimitPrefix          string
	EnableIPThrottle         bool
	MaxLoginAttempts         int
	LoginCooldownDuration    time.Duration
	MaxRefreshAttempts       int
	RefreshCooldownDuration  time.Duration
	MaxRegisterAttempts      int
	RegisterCooldownDuration time.Duration
}

/*
====================================
AUDIT & METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults: one-day access tokens,
// seven-day refresh tokens, role preservation on refresh, and the signed
// fallback disabled.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:             86400 * time.Second,
			RefreshMultiplier:     7,
			AccessPrefix:          "auth:token:",
			RefreshPrefix:         "auth:refresh:",
			DefaultRole:           "USER",
			ClientRole:            "CLIENT",
			PreserveRoleOnRefresh: true,
		},
		Store: StoreConfig{
			OperationTimeout: 3 * time.Second,
		},
		JWT: JWTConfig{
			Enabled:       false,
			TTL:           time.Hour,
			SigningMethod: "hs256",
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Security: SecurityConfig{
			RateLimitPrefix:          "auth:rl:",
			EnableIPThrottle:         true,
			MaxLoginAttempts:         5,
			LoginCooldownDuration:    15 * time.Minute,
			MaxRefreshAttempts:       60,
			RefreshCooldownDuration:  time.Minute,
			MaxRegisterAttempts:      10,
			RegisterCooldownDuration: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting in c.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL < time.Second {
		return errors.New("Token AccessTTL must be >= 1s")
	}
	if c.Token.RefreshMultiplier < 1 {
		return errors.New("Token RefreshMultiplier must be >= 1")
	}
	if c.Token.AccessPrefix == "" || c.Token.RefreshPrefix == "" {
		return errors.New("Token prefixes must be non-empty")
	}
	if strings.HasPrefix(c.Token.AccessPrefix, c.Token.RefreshPrefix) ||
		strings.HasPrefix(c.Token.RefreshPrefix, c.Token.AccessPrefix) {
		return errors.New("Token AccessPrefix and RefreshPrefix must not overlap")
	}
	if c.Token.DefaultRole == "" {
		return errors.New("Token DefaultRole must be non-empty")
	}
	if c.Token.ClientRole == "" {
		return errors.New("Token ClientRole must be non-empty")
	}

	// Store
	if c.Store.OperationTimeout <= 0 {
		return errors.New("Store OperationTimeout must be > 0")
	}

	// JWT
	if c.JWT.Enabled {
		if c.JWT.TTL <= 0 {
			return errors.New("JWT TTL must be > 0")
		}
		switch c.JWT.SigningMethod {
		case "hs256":
			if len(c.JWT.PrivateKey) < 32 {
				return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
			}
		case "ed25519":
			if len(c.JWT.PublicKey) == 0 {
				return errors.New("ed25519 requires PublicKey")
			}
		default:
			return errors.New("unsupported JWT signing method")
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 || c.Security.MaxRefreshAttempts < 0 || c.Security.MaxRegisterAttempts < 0 {
		return errors.New("Security Max*Attempts must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0 when login limiting is on")
	}
	if c.Security.MaxRefreshAttempts > 0 && c.Security.RefreshCooldownDuration <= 0 {
		return errors.New("Security RefreshCooldownDuration must be > 0 when refresh limiting is on")
	}
	if c.Security.MaxRegisterAttempts > 0 && c.Security.RegisterCooldownDuration <= 0 {
		return errors.New("Security RegisterCooldownDuration must be > 0 when register limiting is on")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
