package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Clinic        ClinicConfig
	Scheduler     SchedulerConfig
	Notifications NotificationConfig
	OTEL          OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ClinicConfig holds clinic-wide booking parameters
type ClinicConfig struct {
	Currency                   string
	AverageConsultationMinutes int
	BookingLeadTimeMinutes     int
	SlotRoundingMinutes        int
	SoftConflictBufferMinutes  int
}

// SchedulerConfig holds reminder scheduler configuration
type SchedulerConfig struct {
	TickInterval       time.Duration
	Window24hTolerance time.Duration
	Window1hTolerance  time.Duration
}

// NotificationConfig holds push gateway configuration
type NotificationConfig struct {
	GatewayURL string
	APIKey     string
	QueueSize  int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "myclinic"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Clinic: ClinicConfig{
			Currency:                   getEnv("CLINIC_CURRENCY", "USD"),
			AverageConsultationMinutes: getEnvAsInt("CLINIC_AVG_CONSULTATION_MINUTES", 15),
			BookingLeadTimeMinutes:     getEnvAsInt("CLINIC_BOOKING_LEAD_TIME_MINUTES", 15),
			SlotRoundingMinutes:        getEnvAsInt("CLINIC_SLOT_ROUNDING_MINUTES", 5),
			SoftConflictBufferMinutes:  getEnvAsInt("CLINIC_SOFT_CONFLICT_BUFFER_MINUTES", 60),
		},
		Scheduler: SchedulerConfig{
			TickInterval:       getEnvAsDuration("SCHEDULER_TICK_INTERVAL", 15*time.Minute),
			Window24hTolerance: getEnvAsDuration("SCHEDULER_24H_TOLERANCE", 30*time.Minute),
			Window1hTolerance:  getEnvAsDuration("SCHEDULER_1H_TOLERANCE", 7*time.Minute),
		},
		Notifications: NotificationConfig{
			GatewayURL: getEnv("PUSH_GATEWAY_URL", ""),
			APIKey:     getEnv("PUSH_GATEWAY_API_KEY", ""),
			QueueSize:  getEnvAsInt("NOTIFICATION_QUEUE_SIZE", 256),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "myclinic-backend"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
