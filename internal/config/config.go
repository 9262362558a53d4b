// Package config loads process-wide configuration from the environment
// (and an optional .env file) via viper, following the conventions of the
// rest of the ambient stack: one immutable value built once at startup.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all process configuration for an ingestion run.
type Config struct {
	Database DatabaseConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Logging  LoggingConfig
	Sources  SourcesConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// GetDSN builds a libpq connection string from the parsed settings.
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// BrowserConfig holds the remote headless-browser control endpoint settings.
type BrowserConfig struct {
	ControlURL string // ws:// or wss:// control endpoint
	ProxyURL   string // optional SOCKS5 proxy; passed to the browser pool, which does not apply it to any browsing context
	UserAgent  string
	PoolSize   int
	Timeout    time.Duration
}

// ScraperConfig holds ingestion-core scheduling defaults; per-source overrides
// come from SourcesConfig's profile file, not from here.
type ScraperConfig struct {
	DefaultRateLimitMS    int
	InitialConcurrency    int
	MaxWorkers            int
	AutoscaleInterval     time.Duration
	ErrorRateScaleDown    float64
	QueueDepthScaleUpMult int
	NavigationTimeout     time.Duration
	InterstitialPollBudget time.Duration
	CircuitBreakerMaxFails uint32
	CircuitBreakerTimeout  time.Duration
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// SourcesConfig points at the per-source extraction/scheduling profile file.
type SourcesConfig struct {
	ProfilePath string
}

// Load reads configuration from the environment, optional .env file, and
// built-in defaults, in that order of precedence (env wins).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Browser: BrowserConfig{
			ControlURL: v.GetString("BROWSER_CONTROL_URL"),
			ProxyURL:   v.GetString("BROWSER_PROXY_URL"),
			UserAgent:  v.GetString("BROWSER_USER_AGENT"),
			PoolSize:   v.GetInt("BROWSER_POOL_SIZE"),
			Timeout:    v.GetDuration("BROWSER_TIMEOUT"),
		},
		Scraper: ScraperConfig{
			DefaultRateLimitMS:     v.GetInt("SCRAPER_DEFAULT_RATE_LIMIT_MS"),
			InitialConcurrency:     v.GetInt("SCRAPER_INITIAL_CONCURRENCY"),
			MaxWorkers:             v.GetInt("SCRAPER_MAX_WORKERS"),
			AutoscaleInterval:      v.GetDuration("SCRAPER_AUTOSCALE_INTERVAL"),
			ErrorRateScaleDown:     v.GetFloat64("SCRAPER_ERROR_RATE_SCALE_DOWN"),
			QueueDepthScaleUpMult:  v.GetInt("SCRAPER_QUEUE_DEPTH_SCALE_UP_MULT"),
			NavigationTimeout:      v.GetDuration("SCRAPER_NAVIGATION_TIMEOUT"),
			InterstitialPollBudget: v.GetDuration("SCRAPER_INTERSTITIAL_POLL_BUDGET"),
			CircuitBreakerMaxFails: uint32(v.GetInt("SCRAPER_CIRCUIT_BREAKER_MAX_FAILS")),
			CircuitBreakerTimeout:  v.GetDuration("SCRAPER_CIRCUIT_BREAKER_TIMEOUT"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Sources: SourcesConfig{
			ProfilePath: v.GetString("SOURCES_PROFILE_PATH"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "newsagg")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "newsagg")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("BROWSER_CONTROL_URL", "ws://localhost:3100")
	v.SetDefault("BROWSER_PROXY_URL", "")
	v.SetDefault("BROWSER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("BROWSER_POOL_SIZE", 3)
	v.SetDefault("BROWSER_TIMEOUT", "30s")

	v.SetDefault("SCRAPER_DEFAULT_RATE_LIMIT_MS", 2000)
	v.SetDefault("SCRAPER_INITIAL_CONCURRENCY", 2)
	v.SetDefault("SCRAPER_MAX_WORKERS", 25)
	v.SetDefault("SCRAPER_AUTOSCALE_INTERVAL", "3s")
	v.SetDefault("SCRAPER_ERROR_RATE_SCALE_DOWN", 0.30)
	v.SetDefault("SCRAPER_QUEUE_DEPTH_SCALE_UP_MULT", 2)
	v.SetDefault("SCRAPER_NAVIGATION_TIMEOUT", "30s")
	v.SetDefault("SCRAPER_INTERSTITIAL_POLL_BUDGET", "10s")
	v.SetDefault("SCRAPER_CIRCUIT_BREAKER_MAX_FAILS", 5)
	v.SetDefault("SCRAPER_CIRCUIT_BREAKER_TIMEOUT", "60s")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("SOURCES_PROFILE_PATH", "configs/sources.yaml")
}
