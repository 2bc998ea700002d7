package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// External index sources
	Sources SourcesConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// SourcesConfig holds the external index feed endpoints and timeouts.
type SourcesConfig struct {
	DolarAPIURL      string
	DolarAPITimeout  time.Duration
	BCRAIclURL       string
	BCRAIclTimeout   time.Duration
	ArgDatosIpcURL   string
	ArgDatosTimeout  time.Duration
	RequestsPerSec   float64 // outbound rate limit shared by all fetchers
}

// SchedulerConfig holds the refresh schedule settings.
// Hours are local hours in Timezone.
type SchedulerConfig struct {
	Timezone       string
	RatesStartHour int // first hour of the hourly exchange-rate window
	RatesEndHour   int // last hour of the hourly exchange-rate window
	IclHour        int
	IpcHour        int
	BackfillDelay  time.Duration
	BackfillOnBoot bool
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Sources: SourcesConfig{
			DolarAPIURL:     getEnv("DOLAR_API_URL", "https://dolarapi.com/v1/dolares"),
			DolarAPITimeout: getEnvAsDuration("DOLAR_API_TIMEOUT", "30s"),
			BCRAIclURL:      getEnv("BCRA_ICL_URL", "https://www.bcra.gob.ar/Pdfs/PublicacionesEstadisticas/diar_icl.xls"),
			BCRAIclTimeout:  getEnvAsDuration("BCRA_ICL_TIMEOUT", "60s"),
			ArgDatosIpcURL:  getEnv("ARGENTINA_DATOS_IPC_URL", "https://api.argentinadatos.com/v1/finanzas/indices/inflacion"),
			ArgDatosTimeout: getEnvAsDuration("ARGENTINA_DATOS_TIMEOUT", "30s"),
			RequestsPerSec:  getEnvAsFloat("SOURCE_REQUESTS_PER_SEC", 2.0),
		},

		Scheduler: SchedulerConfig{
			Timezone:       getEnv("SCHEDULER_TIMEZONE", "America/Argentina/Buenos_Aires"),
			RatesStartHour: getEnvAsInt("RATES_REFRESH_START_HOUR", 10),
			RatesEndHour:   getEnvAsInt("RATES_REFRESH_END_HOUR", 18),
			IclHour:        getEnvAsInt("ICL_REFRESH_HOUR", 10),
			IpcHour:        getEnvAsInt("IPC_REFRESH_HOUR", 17),
			BackfillDelay:  getEnvAsDuration("BACKFILL_DELAY", "30s"),
			BackfillOnBoot: getEnvAsBool("BACKFILL_ON_BOOT", true),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Scheduler.RatesStartHour < 0 || c.Scheduler.RatesEndHour > 23 ||
		c.Scheduler.RatesStartHour > c.Scheduler.RatesEndHour {
		return fmt.Errorf("invalid rates refresh hour window %d-%d",
			c.Scheduler.RatesStartHour, c.Scheduler.RatesEndHour)
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
