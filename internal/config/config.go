// Package config loads the process environment into a validated,
// explicitly-passed struct (SPEC_FULL.md §7.4 / spec.md §9's "process-wide
// singletons" redesign flag: no package-level mutable config).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the fully validated process configuration.
type Config struct {
	StoreKind               string
	StoreConnectionTimeoutS int
	StoreMaxPoolSize        int
	StoreLogQueries         bool
	BalanceRejectNegative   bool
	AuthEnabled             bool
	AuthDefaultAdminKey     string
	DatabaseURL             string
	LogLevel                string
	LogFormat               string
	HTTPAddr                string
}

const (
	defaultConnectionTimeoutS = 30
	minConnectionTimeoutS     = 1
	maxConnectionTimeoutS     = 300

	defaultMaxPoolSize = 100
	minMaxPoolSize      = 1
	maxMaxPoolSize      = 500

	defaultHTTPAddr = ":8080"
)

// Load reads the process environment, applies defaults, and validates
// ranges. It never mutates global state and never blocks on I/O.
func Load() (Config, error) {
	cfg := Config{
		StoreKind:               strings.TrimSpace(os.Getenv("STORE_KIND")),
		StoreLogQueries:         parseBool(os.Getenv("STORE_LOG_QUERIES")),
		BalanceRejectNegative:   parseBool(os.Getenv("BALANCE_REJECT_NEGATIVE")),
		AuthEnabled:             parseBool(os.Getenv("AUTH_ENABLED")),
		AuthDefaultAdminKey:     os.Getenv("AUTH_DEFAULT_ADMIN_KEY"),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		LogLevel:                strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		LogFormat:               strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))),
		HTTPAddr:                strings.TrimSpace(os.Getenv("HTTP_ADDR")),
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if cfg.StoreKind == "" {
		if cfg.DatabaseURL != "" {
			cfg.StoreKind = "postgres"
		} else {
			cfg.StoreKind = "memory"
		}
	}

	timeout, err := parseIntInRange("STORE_CONNECTION_TIMEOUT_SECONDS", os.Getenv("STORE_CONNECTION_TIMEOUT_SECONDS"), defaultConnectionTimeoutS, minConnectionTimeoutS, maxConnectionTimeoutS)
	if err != nil {
		return Config{}, err
	}
	cfg.StoreConnectionTimeoutS = timeout

	poolSize, err := parseIntInRange("STORE_MAX_POOL_SIZE", os.Getenv("STORE_MAX_POOL_SIZE"), defaultMaxPoolSize, minMaxPoolSize, maxMaxPoolSize)
	if err != nil {
		return Config{}, err
	}
	cfg.StoreMaxPoolSize = poolSize

	if cfg.AuthEnabled && strings.TrimSpace(cfg.AuthDefaultAdminKey) == "" {
		return Config{}, fmt.Errorf("config: AUTH_DEFAULT_ADMIN_KEY is required when AUTH_ENABLED=true")
	}
	if cfg.StoreKind != "memory" && cfg.StoreKind != "postgres" {
		return Config{}, fmt.Errorf("config: STORE_KIND must be one of memory|postgres, got %q", cfg.StoreKind)
	}
	if cfg.StoreKind == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required when STORE_KIND=postgres")
	}

	return cfg, nil
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes"
}

func parseIntInRange(name, raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", name, raw)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("config: %s must be between %d and %d, got %d", name, min, max, n)
	}
	return n, nil
}
