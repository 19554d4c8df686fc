package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string
	BaseURL  string

	DBDSN     string
	JWTSecret string

	LogLevel string

	LoginRateLimitRPM int
	SessionDays       int

	EmailAPIKey    string
	EmailAPIURL    string
	EmailFrom      string
	EmailTimeoutMS int

	InviteTTLHours      int
	InviteRetentionDays int
	MaxFailedLogins     int
	LockoutDurationMins int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("LD_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("LD_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("LD_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("LD_HTTP_ADDR", ":8080")

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("LD_BASE_URL")), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("LD_BASE_URL is required")
	}

	cfg.DBDSN = strings.TrimSpace(os.Getenv("LD_DB_DSN"))
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("LD_DB_DSN is required")
	}

	cfg.JWTSecret = os.Getenv("LD_JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("LD_JWT_SECRET is required")
	}
	if cfg.Env == "prod" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("LD_JWT_SECRET must be at least 32 characters (currently %d)", len(cfg.JWTSecret))
	}

	cfg.LogLevel = getEnvOrDefault("LD_LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("LD_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	var err error
	cfg.LoginRateLimitRPM, err = getEnvIntOrDefault("LD_LOGIN_RATE_LIMIT_RPM", 10)
	if err != nil {
		return nil, err
	}

	cfg.SessionDays, err = getEnvIntOrDefault("LD_SESSION_DAYS", 7)
	if err != nil {
		return nil, err
	}

	cfg.EmailAPIKey = strings.TrimSpace(os.Getenv("LD_EMAIL_API_KEY"))
	cfg.EmailAPIURL = getEnvOrDefault("LD_EMAIL_API_URL", "https://api.resend.com")
	cfg.EmailFrom = getEnvOrDefault("LD_EMAIL_FROM", "LibraDesk <onboarding@resend.dev>")

	cfg.EmailTimeoutMS, err = getEnvIntOrDefault("LD_EMAIL_TIMEOUT_MS", 5000)
	if err != nil {
		return nil, err
	}
	if cfg.EmailTimeoutMS <= 0 || cfg.EmailTimeoutMS > 30000 {
		return nil, fmt.Errorf("LD_EMAIL_TIMEOUT_MS must be between 1 and 30000 (got: %d)", cfg.EmailTimeoutMS)
	}

	cfg.InviteTTLHours, err = getEnvIntOrDefault("LD_INVITE_TTL_HOURS", 72)
	if err != nil {
		return nil, err
	}
	if cfg.InviteTTLHours < 1 {
		return nil, fmt.Errorf("LD_INVITE_TTL_HOURS must be at least 1 (got: %d)", cfg.InviteTTLHours)
	}

	cfg.InviteRetentionDays, err = getEnvIntOrDefault("LD_INVITE_RETENTION_DAYS", 30)
	if err != nil {
		return nil, err
	}

	cfg.MaxFailedLogins, err = getEnvIntOrDefault("LD_MAX_FAILED_LOGINS", 5)
	if err != nil {
		return nil, err
	}
	if cfg.MaxFailedLogins < 1 {
		return nil, fmt.Errorf("LD_MAX_FAILED_LOGINS must be at least 1 (got: %d)", cfg.MaxFailedLogins)
	}

	cfg.LockoutDurationMins, err = getEnvIntOrDefault("LD_LOCKOUT_DURATION_MINS", 5)
	if err != nil {
		return nil, err
	}
	if cfg.LockoutDurationMins < 1 {
		return nil, fmt.Errorf("LD_LOCKOUT_DURATION_MINS must be at least 1 (got: %d)", cfg.LockoutDurationMins)
	}

	return cfg, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	return map[string]string{
		"LD_ENV":                   c.Env,
		"LD_HTTP_ADDR":             c.HTTPAddr,
		"LD_BASE_URL":              c.BaseURL,
		"LD_DB_DSN":                redactDSN(c.DBDSN),
		"LD_JWT_SECRET":            "[REDACTED]",
		"LD_LOG_LEVEL":             c.LogLevel,
		"LD_LOGIN_RATE_LIMIT_RPM":  fmt.Sprintf("%d", c.LoginRateLimitRPM),
		"LD_SESSION_DAYS":          fmt.Sprintf("%d", c.SessionDays),
		"LD_EMAIL_API_KEY":         "[REDACTED]",
		"LD_EMAIL_API_URL":         c.EmailAPIURL,
		"LD_EMAIL_FROM":            c.EmailFrom,
		"LD_EMAIL_TIMEOUT_MS":      fmt.Sprintf("%d", c.EmailTimeoutMS),
		"LD_INVITE_TTL_HOURS":      fmt.Sprintf("%d", c.InviteTTLHours),
		"LD_INVITE_RETENTION_DAYS": fmt.Sprintf("%d", c.InviteRetentionDays),
		"LD_MAX_FAILED_LOGINS":     fmt.Sprintf("%d", c.MaxFailedLogins),
		"LD_LOCKOUT_DURATION_MINS": fmt.Sprintf("%d", c.LockoutDurationMins),
	}
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}
