package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the weathervane worker and cleanup processes.
type Config struct {
	Worker   WorkerConfig
	Database DatabaseConfig
	Meteo    MeteoConfig
	Analysis AnalysisConfig
	Cleanup  CleanupConfig
}

type WorkerConfig struct {
	HealthPort     int
	IdleInterval   time.Duration
	ErrorBackoff   time.Duration
	StartupRetries int
	StartupBackoff time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type MeteoConfig struct {
	GeocodingURL   string
	ForecastURL    string
	ArchiveURL     string
	QuickTimeout   time.Duration
	ArchiveTimeout time.Duration
}

type AnalysisConfig struct {
	// HeatwaveMaxC and TropicalNightMinC are the daily max/min temperature
	// thresholds for the per-year event counts.
	HeatwaveMaxC      float64
	TropicalNightMinC float64
	HistoricalDays    int
	ClimateYears      int
}

type CleanupConfig struct {
	Interval   time.Duration
	Retention  time.Duration
	StaleAfter time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Worker: WorkerConfig{
			HealthPort:     envInt("WORKER_HEALTH_PORT", 8090),
			IdleInterval:   envDuration("WORKER_IDLE_INTERVAL", 10*time.Second),
			ErrorBackoff:   envDuration("WORKER_ERROR_BACKOFF", 15*time.Second),
			StartupRetries: envInt("WORKER_STARTUP_RETRIES", 5),
			StartupBackoff: envDuration("WORKER_STARTUP_BACKOFF", 5*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Meteo: MeteoConfig{
			GeocodingURL:   envString("METEO_GEOCODING_URL", "https://geocoding-api.open-meteo.com/v1/search"),
			ForecastURL:    envString("METEO_FORECAST_URL", "https://api.open-meteo.com/v1/forecast"),
			ArchiveURL:     envString("METEO_ARCHIVE_URL", "https://archive-api.open-meteo.com/v1/archive"),
			QuickTimeout:   envDuration("METEO_QUICK_TIMEOUT", 15*time.Second),
			ArchiveTimeout: envDuration("METEO_ARCHIVE_TIMEOUT", 60*time.Second),
		},
		Analysis: AnalysisConfig{
			HeatwaveMaxC:      envFloat("ANALYSIS_HEATWAVE_MAX_C", 30.0),
			TropicalNightMinC: envFloat("ANALYSIS_TROPICAL_NIGHT_MIN_C", 20.0),
			HistoricalDays:    envInt("ANALYSIS_HISTORICAL_DAYS", 365),
			ClimateYears:      envInt("ANALYSIS_CLIMATE_YEARS", 50),
		},
		Cleanup: CleanupConfig{
			Interval:   envDuration("CLEANUP_INTERVAL", time.Hour),
			Retention:  envDuration("CLEANUP_RETENTION", 7*24*time.Hour),
			StaleAfter: envDuration("CLEANUP_STALE_AFTER", 30*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	for name, u := range map[string]string{
		"METEO_GEOCODING_URL": c.Meteo.GeocodingURL,
		"METEO_FORECAST_URL":  c.Meteo.ForecastURL,
		"METEO_ARCHIVE_URL":   c.Meteo.ArchiveURL,
	} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%s must start with http:// or https://, got %q", name, u)
		}
	}

	if c.Worker.IdleInterval <= 0 {
		return fmt.Errorf("WORKER_IDLE_INTERVAL must be positive")
	}
	if c.Worker.ErrorBackoff <= 0 {
		return fmt.Errorf("WORKER_ERROR_BACKOFF must be positive")
	}
	if c.Worker.StartupRetries < 1 {
		return fmt.Errorf("WORKER_STARTUP_RETRIES must be at least 1")
	}

	if c.Analysis.HistoricalDays < 1 {
		return fmt.Errorf("ANALYSIS_HISTORICAL_DAYS must be at least 1")
	}
	if c.Analysis.ClimateYears < 2 {
		return fmt.Errorf("ANALYSIS_CLIMATE_YEARS must be at least 2")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
