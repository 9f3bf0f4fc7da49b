package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Log           LogConfig
	Storage       StorageConfig
	Extraction    ExtractionConfig
	Scheduler     SchedulerConfig
	Observability ObservabilityConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig locates staged previews and bounds how long they live.
type StorageConfig struct {
	StagingPath string
	StagingTTL  time.Duration
}

// ExtractionConfig carries the document vocabulary and layout tolerances.
type ExtractionConfig struct {
	DefaultSite      string
	SiteMarker       string
	SuffixTokens     []string
	ReferenceHeaders []string
	QuantityHeaders  []string
	TableYTolerance  float64
	TableXGap        float64
}

type SchedulerConfig struct {
	SweepSchedule string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnvAsInt("POSTGRES_PORT", 5432),
			User:            getEnv("POSTGRES_USER", "postgres"),
			Password:        getEnv("POSTGRES_PASSWORD", "postgres"),
			Database:        getEnv("POSTGRES_DB", "delivery-ledger"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns:        getEnvAsInt("POSTGRES_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("POSTGRES_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("POSTGRES_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("POSTGRES_MAX_CONN_IDLE_TIME", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Storage: StorageConfig{
			StagingPath: getEnv("STAGING_PATH", "./staging"),
			StagingTTL:  getEnvAsDuration("STAGING_TTL", 24*time.Hour),
		},
		Extraction: ExtractionConfig{
			DefaultSite:      getEnv("DEFAULT_SITE", "Tunisia"),
			SiteMarker:       getEnv("SITE_MARKER", "AVOCARBON"),
			SuffixTokens:     getEnvAsList("SUFFIX_TOKENS", []string{"PL", "SP"}),
			ReferenceHeaders: getEnvAsList("REFERENCE_HEADERS", []string{"REFERENCE ARTICLE", "REFERENCE", "REF"}),
			QuantityHeaders:  getEnvAsList("QUANTITY_HEADERS", []string{"QUANTITE", "QTE", "QTY"}),
			TableYTolerance:  getEnvAsFloat("TABLE_Y_TOLERANCE", 3),
			TableXGap:        getEnvAsFloat("TABLE_X_GAP", 2),
		},
		Scheduler: SchedulerConfig{
			SweepSchedule: getEnv("SWEEP_SCHEDULE", "0 * * * *"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if cfg.Storage.StagingTTL <= 0 {
		return nil, fmt.Errorf("STAGING_TTL must be positive, got %s", cfg.Storage.StagingTTL)
	}
	if cfg.Extraction.DefaultSite == "" {
		return nil, fmt.Errorf("DEFAULT_SITE is required")
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c LogConfig) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
