// Package config reads service settings from the environment. An optional
// .env file in the working directory is loaded first; real environment
// variables take precedence over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

const (
	defaultPort      = "8080"
	defaultDBPath    = "allowance.db"
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
	defaultLocale    = "en-US"
)

type Config struct {
	Port               string
	DBPath             string
	LogLevel           string
	LogFormat          string
	BaseURL            string
	Location           *time.Location
	Locale             string
	CookieSecure       bool
	AllowedOrigins     []string
	GoogleClientID     string
	GoogleClientSecret string

	// Warnings lists settings that were invalid and replaced by defaults.
	Warnings []string
}

// Load reads the configuration. It only fails when a .env file exists but
// cannot be parsed.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return fromEnv(), nil
}

func fromEnv() *Config {
	cfg := &Config{
		Port:               getenv("ALLOWANCE_PORT", defaultPort),
		DBPath:             getenv("ALLOWANCE_DB_PATH", defaultDBPath),
		LogLevel:           getenv("ALLOWANCE_LOG_LEVEL", defaultLogLevel),
		LogFormat:          getenv("ALLOWANCE_LOG_FORMAT", defaultLogFormat),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
	}

	if n, err := strconv.Atoi(cfg.Port); err != nil || n <= 0 || n > 65535 {
		cfg.warn("ALLOWANCE_PORT %q is not a valid port, using %s", cfg.Port, defaultPort)
		cfg.Port = defaultPort
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		cfg.warn("ALLOWANCE_LOG_LEVEL %q is not recognized, using %s", cfg.LogLevel, defaultLogLevel)
		cfg.LogLevel = defaultLogLevel
	}

	if f := strings.ToLower(cfg.LogFormat); f != "text" && f != "json" {
		cfg.warn("ALLOWANCE_LOG_FORMAT %q is not text or json, using %s", cfg.LogFormat, defaultLogFormat)
		cfg.LogFormat = defaultLogFormat
	}

	cfg.BaseURL = strings.TrimRight(getenv("ALLOWANCE_BASE_URL", "http://localhost:"+cfg.Port), "/")

	cfg.Location = time.Local
	if tz := os.Getenv("ALLOWANCE_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			cfg.warn("ALLOWANCE_TIMEZONE %q: %v, using local time", tz, err)
		} else {
			cfg.Location = loc
		}
	}

	cfg.Locale = getenv("ALLOWANCE_LOCALE", defaultLocale)
	if _, err := language.Parse(cfg.Locale); err != nil {
		cfg.warn("ALLOWANCE_LOCALE %q is not a valid language tag, using %s", cfg.Locale, defaultLocale)
		cfg.Locale = defaultLocale
	}

	if v := os.Getenv("ALLOWANCE_COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			cfg.warn("ALLOWANCE_COOKIE_SECURE %q is not a boolean, using false", v)
		}
		cfg.CookieSecure = b
	}

	for _, o := range strings.Split(os.Getenv("ALLOWANCE_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	if (cfg.GoogleClientID == "") != (cfg.GoogleClientSecret == "") {
		cfg.warn("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must both be set, google sign-in disabled")
		cfg.GoogleClientID, cfg.GoogleClientSecret = "", ""
	}
	return cfg
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func (c *Config) warn(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
