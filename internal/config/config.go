package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Queue     QueueConfig
	API       APIConfig
	Worker    WorkerConfig
	Scheduler SchedulerConfig
	LogLevel  slog.Level
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// MigrationsDir holds *.up.sql files applied at API startup; empty skips
	MigrationsDir string
}

// QueueConfig holds dispatch queue configuration
type QueueConfig struct {
	Driver    string
	RedisURL  string
	QueueName string
}

// APIConfig holds API server configuration
type APIConfig struct {
	Port int
}

// WorkerConfig holds dispatch worker configuration
type WorkerConfig struct {
	// Concurrency is how many campaigns are dispatched at the same time
	Concurrency    int
	Pacing         time.Duration
	GatewayTimeout time.Duration
}

// SchedulerConfig holds scheduler sweep configuration
type SchedulerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	LockTTL    time.Duration
}

// Load reads configuration from environment variables, after loading a
// .env file when one is present
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPort, err := getInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	apiPort, err := getInt("API_PORT", 8080)
	if err != nil {
		return nil, err
	}

	workerConcurrency, err := getInt("WORKER_CONCURRENCY", 5)
	if err != nil {
		return nil, err
	}

	pacingMS, err := getInt("DISPATCH_PACING_MS", 2000)
	if err != nil {
		return nil, err
	}

	gatewayTimeout, err := getInt("GATEWAY_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}

	sweepInterval, err := getInt("SCHEDULER_INTERVAL_SECONDS", 60)
	if err != nil {
		return nil, err
	}

	staleAfter, err := getInt("STALE_SENDING_AFTER_MINUTES", 30)
	if err != nil {
		return nil, err
	}

	lockTTL, err := getInt("SCHEDULER_LOCK_TTL_SECONDS", 55)
	if err != nil {
		return nil, err
	}

	logLevel, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(getEnv("QUEUE_DRIVER", "redis"))
	if driver != "redis" && driver != "memory" {
		return nil, fmt.Errorf("invalid QUEUE_DRIVER: %q (must be 'redis' or 'memory')", driver)
	}

	if pacingMS < 0 {
		return nil, fmt.Errorf("invalid DISPATCH_PACING_MS: must not be negative")
	}

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "campaigns"),
			Password: getEnv("DB_PASSWORD", "campaigns"),
			DBName:   getEnv("DB_NAME", "whatsapp_crm"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MigrationsDir: os.Getenv("DB_MIGRATIONS_DIR"),
		},
		Queue: QueueConfig{
			Driver:    driver,
			RedisURL:  getEnv("REDIS_URL", "redis://localhost:6379/0"),
			QueueName: getEnv("QUEUE_NAME", "campaign_dispatch"),
		},
		API: APIConfig{
			Port: apiPort,
		},
		Worker: WorkerConfig{
			Concurrency:    workerConcurrency,
			Pacing:         time.Duration(pacingMS) * time.Millisecond,
			GatewayTimeout: time.Duration(gatewayTimeout) * time.Second,
		},
		Scheduler: SchedulerConfig{
			Interval:   time.Duration(sweepInterval) * time.Second,
			StaleAfter: time.Duration(staleAfter) * time.Minute,
			LockTTL:    time.Duration(lockTTL) * time.Second,
		},
		LogLevel: logLevel,
	}, nil
}

// DSN returns the database connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return level, nil
}
