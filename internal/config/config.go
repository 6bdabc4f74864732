package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port          int    `yaml:"port"`
	GinMode       string `yaml:"gin_mode"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TokenConfig struct {
	Secret         string `yaml:"secret"`
	Issuer         string `yaml:"issuer"`
	AccessTTL      string `yaml:"access_ttl"`
	RefreshCeiling string `yaml:"refresh_ceiling"`
	KDFIterations  int    `yaml:"kdf_iterations"`
}

type RecoveryConfig struct {
	LockThreshold int    `yaml:"lock_threshold"`
	LockWindow    string `yaml:"lock_window"`
}

type MatchingConfig struct {
	RequestTTL string `yaml:"request_ttl"`
}

type ConsultationConfig struct {
	DefaultDurationMinutes int    `yaml:"default_duration_minutes"`
	BaseFee                int64  `yaml:"base_fee"`
	ExtensionMinutes       int    `yaml:"extension_minutes"`
	ExtensionFee           int64  `yaml:"extension_fee"`
	GracePeriod            string `yaml:"grace_period"`
}

type RateLimitConfig struct {
	Window        string `yaml:"window"`
	MutateLimit   int    `yaml:"mutate_limit"`
	RecoveryLimit int    `yaml:"recovery_limit"`
	ReadLimit     int    `yaml:"read_limit"`
}

type StaffEntry struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Role      string `yaml:"role"`
	TokenHash string `yaml:"token_hash"`
}

type IdentityConfig struct {
	ProviderURL string       `yaml:"provider_url"`
	CacheTTL    string       `yaml:"cache_ttl"`
	StaticStaff []StaffEntry `yaml:"static_staff"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

type PaymentConfig struct {
	CallbackDelay string `yaml:"callback_delay"`
}

type CasbinConfig struct {
	ModelPath string `yaml:"model_path"`
}

type ConfigFile struct {
	App          AppConfig          `yaml:"app"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Token        TokenConfig        `yaml:"token"`
	Recovery     RecoveryConfig     `yaml:"recovery"`
	Matching     MatchingConfig     `yaml:"matching"`
	Consultation ConsultationConfig `yaml:"consultation"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Identity     IdentityConfig     `yaml:"identity"`
	Twilio       TwilioConfig       `yaml:"twilio"`
	Payment      PaymentConfig      `yaml:"payment"`
	Casbin       CasbinConfig       `yaml:"casbin"`
}

// Config is the fully parsed runtime configuration.
type Config struct {
	Port          string
	GinMode       string
	AllowedOrigin string

	DSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TokenSecret    string
	TokenIssuer    string
	AccessTTL      time.Duration
	RefreshCeiling time.Duration
	KDFIterations  int

	RecoveryLockThreshold int
	RecoveryLockWindow    time.Duration

	RequestTTL time.Duration

	DefaultDurationMinutes int
	BaseFee                int64
	ExtensionMinutes       int
	ExtensionFee           int64
	GracePeriod            time.Duration

	RateLimitWindow time.Duration
	MutateLimit     int
	RecoveryLimit   int
	ReadLimit       int

	IdentityProviderURL string
	IdentityCacheTTL    time.Duration
	StaticStaff         []StaffEntry

	TwilioSID   string
	TwilioToken string
	TwilioFrom  string

	PaymentCallbackDelay time.Duration

	CasbinModelPath string
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads config/config.yml and applies environment overrides for the
// secrets that should not live in the file.
func Load() (*Config, error) {
	return LoadFrom(env("CONFIG_PATH", "config/config.yml"))
}

func LoadFrom(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	var file ConfigFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	cfg := &Config{
		Port:          fmt.Sprintf("%d", file.App.Port),
		GinMode:       file.App.GinMode,
		AllowedOrigin: file.App.AllowedOrigin,
		DSN:           env("DATABASE_DSN", file.Database.DSN),
		RedisAddr:     file.Redis.Addr,
		RedisPassword: env("REDIS_PASSWORD", file.Redis.Password),
		RedisDB:       file.Redis.DB,
		TokenSecret:   env("TOKEN_SECRET", file.Token.Secret),
		TokenIssuer:   file.Token.Issuer,
		KDFIterations: file.Token.KDFIterations,

		RecoveryLockThreshold: file.Recovery.LockThreshold,

		DefaultDurationMinutes: file.Consultation.DefaultDurationMinutes,
		BaseFee:                file.Consultation.BaseFee,
		ExtensionMinutes:       file.Consultation.ExtensionMinutes,
		ExtensionFee:           file.Consultation.ExtensionFee,

		MutateLimit:   file.RateLimit.MutateLimit,
		RecoveryLimit: file.RateLimit.RecoveryLimit,
		ReadLimit:     file.RateLimit.ReadLimit,

		IdentityProviderURL: file.Identity.ProviderURL,
		StaticStaff:         file.Identity.StaticStaff,

		TwilioSID:   env("TWILIO_ACCOUNT_SID", file.Twilio.AccountSID),
		TwilioToken: env("TWILIO_AUTH_TOKEN", file.Twilio.AuthToken),
		TwilioFrom:  file.Twilio.FromNumber,

		CasbinModelPath: file.Casbin.ModelPath,
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"token access TTL", file.Token.AccessTTL, &cfg.AccessTTL},
		{"token refresh ceiling", file.Token.RefreshCeiling, &cfg.RefreshCeiling},
		{"recovery lock window", file.Recovery.LockWindow, &cfg.RecoveryLockWindow},
		{"matching request TTL", file.Matching.RequestTTL, &cfg.RequestTTL},
		{"consultation grace period", file.Consultation.GracePeriod, &cfg.GracePeriod},
		{"rate limit window", file.RateLimit.Window, &cfg.RateLimitWindow},
		{"identity cache TTL", file.Identity.CacheTTL, &cfg.IdentityCacheTTL},
		{"payment callback delay", file.Payment.CallbackDelay, &cfg.PaymentCallbackDelay},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = parsed
	}

	if cfg.KDFIterations < 100_000 {
		return nil, fmt.Errorf("kdf_iterations must be at least 100000, got %d", cfg.KDFIterations)
	}
	if cfg.AllowedOrigin == "" || cfg.AllowedOrigin == "*" {
		return nil, fmt.Errorf("allowed_origin must name one origin, wildcard is not permitted")
	}

	return cfg, nil
}
