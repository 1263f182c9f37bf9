package gatekeeper

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/gatekeeper/jwt"
	"github.com/MrEthical07/gatekeeper/password"
	"github.com/MrEthical07/gatekeeper/session"
)

// Environments accepted in Config.Environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DefaultCookieName is the fixed name of the session credential cookie.
const DefaultCookieName = "gk_session"

// Config is the engine configuration. Build it with DefaultConfig or
// ConfigFromEnv and treat it as immutable once passed to the Builder.
type Config struct {
	Token             TokenConfig
	Session           SessionConfig
	Cookie            CookieConfig
	Password          PasswordConfig
	EmailVerification EmailVerificationConfig
	Cache             CacheConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	Environment       string
}

/*
====================================
TOKEN CONFIG
====================================
*/

type TokenConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	RedisPrefix string
	// TTL is the sliding lifetime of a cached session.
	TTL time.Duration
}

type CookieConfig struct {
	Name   string
	Domain string
}

type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type EmailVerificationConfig struct {
	Enabled         bool
	VerificationTTL time.Duration
	MaxAttempts     int
	RequireForLogin bool
	RedisPrefix     string
}

// CacheConfig controls the in-process role and permission read cache that
// wraps the durable store.
type CacheConfig struct {
	Enabled bool
	Size    int
	TTL     time.Duration
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a production-leaning configuration without key
// material. Callers must set Token.PrivateKey.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		Token: TokenConfig{
			TTL:           jwt.DefaultTTL,
			SigningMethod: string(jwt.MethodHS256),
		},
		Session: SessionConfig{
			RedisPrefix: session.DefaultPrefix,
			TTL:         session.DefaultTTL,
		},
		Cookie: CookieConfig{
			Name: DefaultCookieName,
		},
		Password: PasswordConfig{
			Memory:      pw.Memory,
			Time:        pw.Time,
			Parallelism: pw.Parallelism,
			SaltLength:  pw.SaltLength,
			KeyLength:   pw.KeyLength,
		},
		EmailVerification: EmailVerificationConfig{
			Enabled:         false,
			VerificationTTL: 15 * time.Minute,
			MaxAttempts:     5,
			RedisPrefix:     "evc:",
		},
		Cache: CacheConfig{
			Enabled: false,
			Size:    1024,
			TTL:     30 * time.Second,
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
		Environment: EnvProduction,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
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

// Validate checks the configuration for missing or out-of-range values.
func (c *Config) Validate() error {
	// Token
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	switch jwt.SigningMethod(c.Token.SigningMethod) {
	case jwt.MethodHS256:
		if len(c.Token.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case jwt.MethodEd25519:
		if len(c.Token.PrivateKey) == 0 || len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported token signing method")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be within [0, 2m]")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}

	// Cookie
	if c.Cookie.Name == "" || strings.ContainsAny(c.Cookie.Name, " ;=,\t") {
		return errors.New("Cookie Name must be a non-empty token")
	}

	// Password
	if err := c.passwordConfig().Validate(); err != nil {
		return err
	}

	// Email verification
	if c.EmailVerification.Enabled {
		if c.EmailVerification.VerificationTTL <= 0 {
			return errors.New("EmailVerification VerificationTTL must be > 0")
		}
		if c.EmailVerification.MaxAttempts <= 0 {
			return errors.New("EmailVerification MaxAttempts must be > 0")
		}
		if c.EmailVerification.RedisPrefix == "" || c.EmailVerification.RedisPrefix == c.Session.RedisPrefix {
			return errors.New("EmailVerification RedisPrefix must be set and differ from Session RedisPrefix")
		}
	}
	if c.EmailVerification.RequireForLogin && !c.EmailVerification.Enabled {
		return errors.New("EmailVerification RequireForLogin requires EmailVerification Enabled")
	}

	// Cache
	if c.Cache.Enabled && (c.Cache.Size <= 0 || c.Cache.TTL <= 0) {
		return errors.New("Cache Size and TTL must be > 0 when enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("Environment must be %q or %q", EnvDevelopment, EnvProduction)
	}
	return nil
}

// SecureCookies reports whether session cookies carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return c.Environment != EnvDevelopment
}

// CookieSameSite is fixed to Lax.
func (c *Config) CookieSameSite() http.SameSite {
	return http.SameSiteLaxMode
}

func (c *Config) passwordConfig() password.Config {
	return password.Config{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}

func (c *Config) jwtConfig() jwt.Config {
	cfg := jwt.Config{
		TTL:           c.Token.TTL,
		SigningMethod: jwt.SigningMethod(c.Token.SigningMethod),
		PrivateKey:    c.Token.PrivateKey,
		PublicKey:     c.Token.PublicKey,
		Issuer:        c.Token.Issuer,
		Audience:      c.Token.Audience,
		Leeway:        c.Token.Leeway,
	}
	return cfg
}

/*
====================================
ENVIRONMENT
====================================
*/

// ConfigFromEnv is LoadConfigEnv followed by Validate.
func ConfigFromEnv() (Config, error) {
	cfg, err := LoadConfigEnv()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigEnv starts from DefaultConfig and overrides it from GATEKEEPER_*
// environment variables. Only malformed values fail; call Validate once the
// caller has filled in anything the environment left out.
func LoadConfigEnv() (Config, error) {
	cfg := DefaultConfig()
	var err error

	cfg.Environment = getEnvOrDefault("GATEKEEPER_ENV", cfg.Environment)
	cfg.Token.SigningMethod = strings.ToLower(getEnvOrDefault("GATEKEEPER_TOKEN_SIGNING_METHOD", cfg.Token.SigningMethod))
	cfg.Token.Issuer = getEnvOrDefault("GATEKEEPER_TOKEN_ISSUER", cfg.Token.Issuer)
	cfg.Token.Audience = getEnvOrDefault("GATEKEEPER_TOKEN_AUDIENCE", cfg.Token.Audience)
	if v := os.Getenv("GATEKEEPER_TOKEN_SECRET"); v != "" {
		cfg.Token.PrivateKey = []byte(v)
	}
	if v := os.Getenv("GATEKEEPER_TOKEN_PUBLIC_KEY"); v != "" {
		cfg.Token.PublicKey = []byte(v)
	}
	if cfg.Token.TTL, err = getDurationEnv("GATEKEEPER_TOKEN_TTL", cfg.Token.TTL); err != nil {
		return Config{}, err
	}
	if cfg.Token.Leeway, err = getDurationEnv("GATEKEEPER_TOKEN_LEEWAY", cfg.Token.Leeway); err != nil {
		return Config{}, err
	}

	cfg.Session.RedisPrefix = getEnvOrDefault("GATEKEEPER_SESSION_PREFIX", cfg.Session.RedisPrefix)
	if cfg.Session.TTL, err = getDurationEnv("GATEKEEPER_SESSION_TTL", cfg.Session.TTL); err != nil {
		return Config{}, err
	}
	cfg.Cookie.Name = getEnvOrDefault("GATEKEEPER_COOKIE_NAME", cfg.Cookie.Name)
	cfg.Cookie.Domain = getEnvOrDefault("GATEKEEPER_COOKIE_DOMAIN", cfg.Cookie.Domain)

	cfg.EmailVerification.Enabled = getBoolEnv("GATEKEEPER_EMAIL_VERIFICATION", cfg.EmailVerification.Enabled)
	cfg.EmailVerification.RequireForLogin = getBoolEnv("GATEKEEPER_REQUIRE_VERIFIED_EMAIL", cfg.EmailVerification.RequireForLogin)
	if cfg.EmailVerification.VerificationTTL, err = getDurationEnv("GATEKEEPER_EMAIL_VERIFICATION_TTL", cfg.EmailVerification.VerificationTTL); err != nil {
		return Config{}, err
	}

	cfg.Cache.Enabled = getBoolEnv("GATEKEEPER_CACHE", cfg.Cache.Enabled)
	if cfg.Cache.Size, err = getIntEnv("GATEKEEPER_CACHE_SIZE", cfg.Cache.Size); err != nil {
		return Config{}, err
	}
	cfg.Audit.Enabled = getBoolEnv("GATEKEEPER_AUDIT", cfg.Audit.Enabled)
	cfg.Metrics.Enabled = getBoolEnv("GATEKEEPER_METRICS", cfg.Metrics.Enabled)
	cfg.Metrics.EnableLatencyHistograms = getBoolEnv("GATEKEEPER_METRICS_LATENCY", cfg.Metrics.EnableLatencyHistograms)
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
