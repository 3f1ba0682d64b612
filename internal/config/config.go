package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/river-level-etl/internal/domain"
)

// DefaultFeedURL is the public export endpoint used when FEED_URL is unset.
const DefaultFeedURL = "https://riverlevels.example.org/api/export/levels.csv"

// Cache drivers.
const (
	CacheDriverSQLite = "sqlite"
	CacheDriverMemory = "memory"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	StationName     string
	FeedURL         string
	SafeLevel       float64
	DisplayWindow   domain.Window
	RefreshInterval time.Duration
	FetchTimeout    time.Duration

	CacheDriver string
	CachePath   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaBrokers []string
	KafkaEnabled bool
	KafkaTopic   string

	// StationConfig is the optional YAML station file; empty when unused.
	StationConfig string
}

// Load reads configuration with precedence defaults < station file < environment.
// A .env file (ENV_FILE, default ".env") is loaded first when present; it never
// overrides variables already set in the process environment.
func Load() (*Config, error) {
	if err := loadEnvFile(envOrDefault("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		FeedURL:         DefaultFeedURL,
		SafeLevel:       domain.DefaultSafeLevel,
		DisplayWindow:   domain.DefaultWindow,
		RefreshInterval: 15 * time.Minute,
		FetchTimeout:    30 * time.Second,
		CacheDriver:     CacheDriverSQLite,
		CachePath:       "data/riverlevel.db",
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,
		KafkaTopic:      "river-level-refreshes",
		StationConfig:   os.Getenv("STATION_CONFIG"),
	}

	if cfg.StationConfig != "" {
		st, err := LoadStation(cfg.StationConfig)
		if err != nil {
			return nil, err
		}
		st.apply(cfg)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays every set environment variable and collects all parse
// failures so a misconfigured deployment reports them together.
func (c *Config) applyEnv() error {
	var result *multierror.Error

	c.FeedURL = envOrDefault("FEED_URL", c.FeedURL)
	c.CacheDriver = strings.ToLower(envOrDefault("CACHE_DRIVER", c.CacheDriver))
	c.CachePath = envOrDefault("CACHE_PATH", c.CachePath)
	c.HTTPAddr = envOrDefault("HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = envOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOrDefault("LOG_FORMAT", c.LogFormat)
	c.KafkaTopic = envOrDefault("KAFKA_TOPIC", c.KafkaTopic)

	if v := os.Getenv("SAFE_LEVEL_METRES"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid SAFE_LEVEL_METRES %q", v))
		} else {
			c.SafeLevel = f
		}
	}
	if v := os.Getenv("DISPLAY_WINDOW"); v != "" {
		w, err := domain.ParseWindow(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid DISPLAY_WINDOW: %w", err))
		} else {
			c.DisplayWindow = w
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"REFRESH_INTERVAL", &c.RefreshInterval},
		{"FETCH_TIMEOUT", &c.FetchTimeout},
		{"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := parseDurationEnv(d.key, d.dst); err != nil {
			result = multierror.Append(result, err)
		}
	}

	c.KafkaBrokers = parseBrokers(os.Getenv("KAFKA_BROKERS"))
	c.KafkaEnabled = len(c.KafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid KAFKA_ENABLED %q", v))
		} else {
			c.KafkaEnabled = enabled
		}
	}

	return result.ErrorOrNil()
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.FeedURL == "" {
		result = multierror.Append(result, fmt.Errorf("FEED_URL is required"))
	}
	if c.SafeLevel <= 0 {
		result = multierror.Append(result, fmt.Errorf("SAFE_LEVEL_METRES must be positive, got %g", c.SafeLevel))
	}
	if c.RefreshInterval < 0 {
		result = multierror.Append(result, fmt.Errorf("REFRESH_INTERVAL must not be negative"))
	}
	if c.FetchTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("FETCH_TIMEOUT must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive"))
	}
	switch c.CacheDriver {
	case CacheDriverSQLite:
		if c.CachePath == "" {
			result = multierror.Append(result, fmt.Errorf("CACHE_PATH is required for the sqlite driver"))
		}
	case CacheDriverMemory:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown CACHE_DRIVER %q (allowed: sqlite, memory)", c.CacheDriver))
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			result = multierror.Append(result, fmt.Errorf("KAFKA_ENABLED is true but KAFKA_BROKERS is not set"))
		}
		if c.KafkaTopic == "" {
			result = multierror.Append(result, fmt.Errorf("KAFKA_TOPIC is required when publishing is enabled"))
		}
	}

	return result.ErrorOrNil()
}
