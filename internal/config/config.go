package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Jobs     JobsConfig

	Env      string
	LogLevel string

	// BaseURL is the externally reachable address used in signing links
	BaseURL string
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	DBName     string
	SSLMode    string
	TestDBName string // Separate database for testing
}

// AuthConfig holds the authentication and token configuration
type AuthConfig struct {
	JWTSecret          string
	EmailTokenTTLHours int
}

// RedisConfig holds the email queue configuration
type RedisConfig struct {
	Addr     string
	Password string
	Queue    string
}

// StorageConfig holds the object storage configuration
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// JobsConfig holds the background job configuration
type JobsConfig struct {
	IntervalMinutes   int
	ReminderAgeHours  int
	DeletionGraceDays int
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadConfig loads the configuration from the environment, reading a .env
// file first when one is present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvAsInt("DB_PORT", 5432),
			Username:   getEnv("DB_USERNAME", "postgres"),
			Password:   getEnv("DB_PASSWORD", "password"),
			DBName:     getEnv("DB_NAME", "quillsign"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			TestDBName: getEnv("TEST_DB_NAME", "quillsign_test"),
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("JWT_SECRET", "your-secret-key-here"),
			EmailTokenTTLHours: getEnvAsInt("EMAIL_TOKEN_TTL_HOURS", 24*14),
		},
		// Empty REDIS_ADDR / MINIO_ENDPOINT mean the component is not
		// configured; the server falls back to log delivery and in-memory
		// object storage.
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			Queue:    getEnv("EMAIL_QUEUE", "quillsign:emails"),
		},
		Storage: StorageConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "quillsign"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Jobs: JobsConfig{
			IntervalMinutes:   getEnvAsInt("JOBS_INTERVAL_MINUTES", 60),
			ReminderAgeHours:  getEnvAsInt("REMINDER_AGE_HOURS", 72),
			DeletionGraceDays: getEnvAsInt("DELETION_GRACE_DAYS", 30),
		},
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
	}
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
