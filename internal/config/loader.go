package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the focus timer server.
type Config struct {
	HTTPPort           int
	SQLiteDSN          string
	Location           *time.Location
	CredentialCacheTTL time.Duration
	LogLevel           slog.Level
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults. Every malformed value is collected
// and reported together in a localized error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:           8080,
		SQLiteDSN:          "file:focus.db",
		Location:           time.UTC,
		CredentialCacheTTL: time.Minute,
		LogLevel:           slog.LevelInfo,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("FOCUS_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "FOCUS_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("FOCUS_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if zone := strings.TrimSpace(os.Getenv("FOCUS_TIMEZONE")); zone != "" {
		location, err := time.LoadLocation(zone)
		if err != nil {
			invalid = append(invalid, "FOCUS_TIMEZONE")
		} else {
			cfg.Location = location
		}
	}

	if ttlValue := strings.TrimSpace(os.Getenv("FOCUS_CREDENTIAL_CACHE_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl < 0 {
			invalid = append(invalid, "FOCUS_CREDENTIAL_CACHE_TTL")
		} else {
			cfg.CredentialCacheTTL = ttl
		}
	}

	if levelValue := strings.TrimSpace(os.Getenv("FOCUS_LOG_LEVEL")); levelValue != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(levelValue)); err != nil {
			invalid = append(invalid, "FOCUS_LOG_LEVEL")
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
