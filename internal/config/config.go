package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	UTR      UTRConfig
	Scraper  ScraperConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Forecast ForecastConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type UTRConfig struct {
	Email    string
	Password string
}

type ScraperConfig struct {
	Headless        bool
	StorageState    string
	DiagnosticsDir  string
	RequestsPerMin  int
	Concurrency     int
	CacheTTL        time.Duration
	NavTimeout      time.Duration
	ProfileBaseURL  string
	FailureLimit    int
	BreakerCooldown time.Duration
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type ForecastConfig struct {
	HorizonMonths int
	Model         string
	Trees         int
	MaxDepth      int
	LearningRate  float64
	MinLeaf       int
	Subsample     float64
	FillLimit     int
}

type ServerConfig struct {
	Port           int
	RateLimitRPS   float64
	RateLimitBurst int
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		UTR: UTRConfig{
			Email:    strings.TrimSpace(getEnv("UTR_EMAIL", "")),
			Password: strings.TrimSpace(getEnv("UTR_PASSWORD", "")),
		},
		Scraper: ScraperConfig{
			Headless:        getEnvBool("SCRAPER_HEADLESS", true),
			StorageState:    getEnv("SCRAPER_STORAGE_STATE", ""),
			DiagnosticsDir:  getEnv("SCRAPER_DIAGNOSTICS_DIR", ""),
			RequestsPerMin:  getEnvInt("SCRAPER_REQUESTS_PER_MINUTE", 10),
			Concurrency:     getEnvInt("SCRAPER_CONCURRENCY", 3),
			CacheTTL:        time.Duration(getEnvInt("SCRAPER_CACHE_TTL_MINUTES", 30)) * time.Minute,
			NavTimeout:      time.Duration(getEnvInt("SCRAPER_NAV_TIMEOUT_SECONDS", 20)) * time.Second,
			ProfileBaseURL:  getEnv("UTR_PROFILE_BASE_URL", "https://app.utrsports.net"),
			FailureLimit:    getEnvInt("SCRAPER_FAILURE_LIMIT", 5),
			BreakerCooldown: time.Duration(getEnvInt("SCRAPER_BREAKER_COOLDOWN_SECONDS", 300)) * time.Second,
		},
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "utr"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "utr_forecast"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Forecast: ForecastConfig{
			HorizonMonths: getEnvInt("FORECAST_HORIZON_MONTHS", 18),
			Model:         getEnv("FORECAST_MODEL", "gbrt"),
			Trees:         getEnvInt("FORECAST_GBRT_TREES", 300),
			MaxDepth:      getEnvInt("FORECAST_GBRT_MAX_DEPTH", 3),
			LearningRate:  getEnvFloat("FORECAST_GBRT_LEARNING_RATE", 0.05),
			MinLeaf:       getEnvInt("FORECAST_GBRT_MIN_LEAF", 5),
			Subsample:     getEnvFloat("FORECAST_GBRT_SUBSAMPLE", 0.8),
			FillLimit:     getEnvInt("DATASET_FILL_LIMIT_MONTHS", 3),
		},
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS:   getEnvFloat("SERVER_RATE_LIMIT_RPS", 5),
			RateLimitBurst: getEnvInt("SERVER_RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Forecast.HorizonMonths <= 0 {
		return fmt.Errorf("FORECAST_HORIZON_MONTHS must be positive")
	}
	switch c.Forecast.Model {
	case "persistence", "drift", "linear", "gbrt":
	default:
		return fmt.Errorf("FORECAST_MODEL must be one of persistence, drift, linear, gbrt")
	}
	if c.Scraper.RequestsPerMin <= 0 {
		return fmt.Errorf("SCRAPER_REQUESTS_PER_MINUTE must be positive")
	}
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("SCRAPER_CONCURRENCY must be positive")
	}
	if c.Forecast.Subsample <= 0 || c.Forecast.Subsample > 1 {
		return fmt.Errorf("FORECAST_GBRT_SUBSAMPLE must be in (0, 1]")
	}
	if (c.UTR.Email == "") != (c.UTR.Password == "") {
		return fmt.Errorf("UTR_EMAIL and UTR_PASSWORD must be set together")
	}
	return nil
}

// HasCredentials reports whether a UTR login can be attempted. Anonymous
// scraping still works until the site raises its sign-in overlay.
func (c *Config) HasCredentials() bool {
	return c.UTR.Email != "" && c.UTR.Password != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
