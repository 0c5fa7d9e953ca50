package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	JWTSecret                 string
	JWTRefreshSecret          string
	Database                  DatabaseConfig
	Scheduling                SchedulingConfig
	Outbox                    OutboxConfig
	AMQPURL                   string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// SchedulingConfig holds the clinic's slot grid settings.
type SchedulingConfig struct {
	WindowStart time.Duration
	WindowEnd   time.Duration
	SlotWidth   time.Duration
}

// OutboxConfig holds the notification relay settings.
type OutboxConfig struct {
	PollInterval time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load database configuration
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "musawo"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	slotWindowStart, err := strconv.Atoi(getEnv("SLOT_WINDOW_START_HOUR", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid SLOT_WINDOW_START_HOUR: %w", err)
	}

	slotWindowEnd, err := strconv.Atoi(getEnv("SLOT_WINDOW_END_HOUR", "17"))
	if err != nil {
		return nil, fmt.Errorf("invalid SLOT_WINDOW_END_HOUR: %w", err)
	}

	slotWidthMinutes, err := strconv.Atoi(getEnv("SLOT_WIDTH_MINUTES", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid SLOT_WIDTH_MINUTES: %w", err)
	}

	outboxPollSeconds, err := strconv.Atoi(getEnv("OUTBOX_POLL_SECONDS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid OUTBOX_POLL_SECONDS: %w", err)
	}

	// Return complete configuration
	return &Config{
		Port:             getEnv("PORT", "3001"),
		Origin:           getEnv("ORIGIN", "http://localhost:4200"),
		Environment:      getEnv("APP_ENV", "development"),
		JWTSecret:        getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		Database:         dbConfig,
		Scheduling: SchedulingConfig{
			WindowStart: time.Duration(slotWindowStart) * time.Hour,
			WindowEnd:   time.Duration(slotWindowEnd) * time.Hour,
			SlotWidth:   time.Duration(slotWidthMinutes) * time.Minute,
		},
		Outbox: OutboxConfig{
			PollInterval: time.Duration(outboxPollSeconds) * time.Second,
		},
		AMQPURL:                   getEnv("AMQP_URL", ""),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
