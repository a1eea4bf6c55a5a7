package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	// DefaultLocation is fetched when a trigger names no location.
	DefaultLocation string `validate:"required,max=128"`
	// ActivationLocation is fetched once when the service starts.
	ActivationLocation string `validate:"required,max=128"`

	// SimulatedLatency is how long each simulated retrieval takes.
	SimulatedLatency time.Duration `validate:"gte=0"`
	// SimulatedSeed makes the simulated source reproducible (0 = random).
	SimulatedSeed uint64

	// RefreshInterval controls how often the scheduler re-triggers a fetch
	// of ActivationLocation (0 = disabled).
	RefreshInterval time.Duration `validate:"gte=0"`

	// In-memory history retention.
	StoreMaxHistory int           `validate:"gte=0"` // max number of snapshots per location (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of snapshots (0 = unlimited)

	// Circuit breaker around the data source.
	BreakerMaxFailures uint32        `validate:"gt=0"`
	BreakerOpenTimeout time.Duration `validate:"gt=0"`

	LogLevel slog.Level
	Port     string `validate:"required,numeric"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.DefaultLocation = getenvDefault("WEATHER_DEFAULT_LOCATION", "default-location")
	cfg.ActivationLocation = getenvDefault("WEATHER_ACTIVATION_LOCATION", "Seoul")

	var err error
	if cfg.SimulatedLatency, err = getenvDuration("SIMULATED_LATENCY", "1500ms"); err != nil {
		return nil, err
	}
	if cfg.SimulatedSeed, err = getenvUint("SIMULATED_SEED", 0, 64); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "15m"); err != nil {
		return nil, err
	}

	// Store retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	maxFailures, err := getenvUint("BREAKER_MAX_FAILURES", 5, 32)
	if err != nil {
		return nil, err
	}
	cfg.BreakerMaxFailures = uint32(maxFailures)
	if cfg.BreakerOpenTimeout, err = getenvDuration("BREAKER_OPEN_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	if cfg.LogLevel, err = parseLevel(getenvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// getenvUint parses key as an unsigned integer that fits in bits, rejecting
// values that would wrap.
func getenvUint(key string, def uint64, bits int) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
