package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/adrisa007/guardiao/pkg/jwtx"
)

// ConfigFileEnv names the optional TOML file read before the environment.
const ConfigFileEnv = "GUARDIAO_CONFIG"

type Config struct {
	Env                  string        `toml:"env"`        // dev, staging, prod (default: dev)
	LogLevel             string        `toml:"log_level"`  // debug, info, warn, error (default: info)
	LogFormat            string        `toml:"log_format"` // json, text (default: json)
	Port                 int           `toml:"port"`       // default: 8080
	ShutdownGracePeriod  time.Duration `toml:"shutdown_grace_period"`
	HousekeepingInterval time.Duration `toml:"housekeeping_interval"`

	Issuer          string        `toml:"auth_issuer"`
	Algorithm       string        `toml:"auth_algorithm"`        // EdDSA or HS256 (default: EdDSA)
	JWTSecret       string        `toml:"auth_jwt_secret"`       // HS256 only
	SigningKeyFile  string        `toml:"auth_signing_key_file"` // EdDSA PKCS8 PEM, created when missing
	AccessTTL       time.Duration `toml:"auth_access_ttl"`
	RefreshTTL      time.Duration `toml:"auth_refresh_ttl"`
	BcryptCost      int           `toml:"auth_bcrypt_cost"`
	HashConcurrency int           `toml:"auth_hash_concurrency"`
	TermValidity    time.Duration `toml:"auth_term_validity"`
	MFAIssuer       string        `toml:"auth_mfa_issuer"`
	CookieSecure    bool          `toml:"auth_cookie_secure"`
	BootstrapToken  string        `toml:"bootstrap_token"`

	DatabaseFile  string `toml:"database_file"`
	RefreshStore  string `toml:"refresh_store"` // sql, memory, redis (default: sql)
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	AuditBufferSize int    `toml:"audit_buffer_size"`
	NotifyDriver    string `toml:"notify_driver"` // log or smtp (default: log)
	SMTPAddr        string `toml:"smtp_addr"`
	SMTPUsername    string `toml:"smtp_username"`
	SMTPPassword    string `toml:"smtp_password"`
	SMTPFrom        string `toml:"smtp_from"`
	DPOEmail        string `toml:"dpo_email"`
	AttachmentsDir  string `toml:"attachments_dir"`
	MetricsEnabled  bool   `toml:"metrics_enabled"`
}

func defaultConfig() Config {
	return Config{
		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 8080,
		ShutdownGracePeriod:  10 * time.Second,
		HousekeepingInterval: time.Hour,
		Issuer:               "guardiao",
		Algorithm:            jwtx.AlgEdDSA,
		SigningKeyFile:       "signing_key.pem",
		AccessTTL:            jwtx.DefaultAccessTokenTTL,
		RefreshTTL:           jwtx.DefaultRefreshTokenTTL,
		BcryptCost:           12,
		TermValidity:         365 * 24 * time.Hour,
		MFAIssuer:            "Guardião LGPD",
		DatabaseFile:         "guardiao.db",
		RefreshStore:         "sql",
		AuditBufferSize:      1024,
		NotifyDriver:         "log",
		AttachmentsDir:       "uploads/dsar",
		MetricsEnabled:       true,
	}
}

// LoadConfig starts from the defaults, applies the TOML file named by
// GUARDIAO_CONFIG when set, then the environment.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)
	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)
	cfg.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", cfg.HousekeepingInterval)

	cfg.Issuer = getEnvOrDefault("AUTH_ISSUER", cfg.Issuer)
	cfg.Algorithm = getEnvOrDefault("AUTH_ALGORITHM", cfg.Algorithm)
	cfg.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.JWTSecret)
	cfg.SigningKeyFile = getEnvOrDefault("AUTH_SIGNING_KEY_FILE", cfg.SigningKeyFile)
	cfg.AccessTTL = getEnvDurationOrDefault("AUTH_ACCESS_TTL", cfg.AccessTTL)
	cfg.RefreshTTL = getEnvDurationOrDefault("AUTH_REFRESH_TTL", cfg.RefreshTTL)
	cfg.BcryptCost = getEnvIntOrDefault("AUTH_BCRYPT_COST", cfg.BcryptCost)
	cfg.HashConcurrency = getEnvIntOrDefault("AUTH_HASH_CONCURRENCY", cfg.HashConcurrency)
	cfg.TermValidity = getEnvDurationOrDefault("AUTH_TERM_VALIDITY", cfg.TermValidity)
	cfg.MFAIssuer = getEnvOrDefault("AUTH_MFA_ISSUER", cfg.MFAIssuer)
	cfg.CookieSecure = getEnvBoolOrDefault("AUTH_COOKIE_SECURE", cfg.CookieSecure)
	cfg.BootstrapToken = getEnvOrDefault("BOOTSTRAP_TOKEN", cfg.BootstrapToken)

	cfg.DatabaseFile = getEnvOrDefault("DATABASE_FILE", cfg.DatabaseFile)
	cfg.RefreshStore = getEnvOrDefault("REFRESH_STORE", cfg.RefreshStore)
	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvIntOrDefault("REDIS_DB", cfg.RedisDB)

	cfg.AuditBufferSize = getEnvIntOrDefault("AUDIT_BUFFER_SIZE", cfg.AuditBufferSize)
	cfg.NotifyDriver = getEnvOrDefault("NOTIFY_DRIVER", cfg.NotifyDriver)
	cfg.SMTPAddr = getEnvOrDefault("SMTP_ADDR", cfg.SMTPAddr)
	cfg.SMTPUsername = getEnvOrDefault("SMTP_USERNAME", cfg.SMTPUsername)
	cfg.SMTPPassword = getEnvOrDefault("SMTP_PASSWORD", cfg.SMTPPassword)
	cfg.SMTPFrom = getEnvOrDefault("SMTP_FROM", cfg.SMTPFrom)
	cfg.DPOEmail = getEnvOrDefault("DPO_EMAIL", cfg.DPOEmail)
	cfg.AttachmentsDir = getEnvOrDefault("ATTACHMENTS_DIR", cfg.AttachmentsDir)
	cfg.MetricsEnabled = getEnvBoolOrDefault("METRICS_ENABLED", cfg.MetricsEnabled)

	return cfg, nil
}

// Validate rejects combinations the application cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Algorithm {
	case jwtx.AlgEdDSA:
		if c.SigningKeyFile == "" {
			errs = append(errs, errors.New("AUTH_SIGNING_KEY_FILE is required for EdDSA"))
		}
	case jwtx.AlgHS256:
		if len(c.JWTSecret) < 32 {
			errs = append(errs, errors.New("AUTH_JWT_SECRET of at least 32 bytes is required for HS256"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported AUTH_ALGORITHM %q", c.Algorithm))
	}
	if c.BcryptCost < 10 {
		errs = append(errs, fmt.Errorf("AUTH_BCRYPT_COST must be at least 10, got %d", c.BcryptCost))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	switch c.RefreshStore {
	case "sql", "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when REFRESH_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported REFRESH_STORE %q", c.RefreshStore))
	}
	switch c.NotifyDriver {
	case "log":
	case "smtp":
		if c.SMTPAddr == "" || c.SMTPFrom == "" {
			errs = append(errs, errors.New("SMTP_ADDR and SMTP_FROM are required when NOTIFY_DRIVER=smtp"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported NOTIFY_DRIVER %q", c.NotifyDriver))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", c.Port))
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
