package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the application.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	AppPort string
	AppMode string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret      string
	JWTExpiryHours int

	// Storage for uploaded payloads: "local" or "s3".
	StorageBackend string
	UploadDir      string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3Endpoint     string

	// Upload/processing pipeline tuning.
	ProgressTTLHours   int
	StreamIntervalMs   int
	QueuePollMs        int
	WorkerConcurrency  int
	ParseMaxAttempts   int
	ParseBackoffBaseMs int
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "5000"),
		AppMode: getEnv("APP_MODE", "debug"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "filepulse"),
		DBPassword: getEnv("DB_PASSWORD", "filepulse"),
		DBName:     getEnv("DB_NAME", "filepulse"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JWTSecret:      getEnv("JWT_SECRET", "secret"),
		JWTExpiryHours: getEnvAsInt("JWT_EXPIRY_HOURS", 24),

		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		S3Region:       getEnv("S3_REGION", ""),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),

		ProgressTTLHours:   getEnvAsInt("PROGRESS_TTL_HOURS", 6),
		StreamIntervalMs:   getEnvAsInt("STREAM_INTERVAL_MS", 750),
		QueuePollMs:        getEnvAsInt("QUEUE_POLL_MS", 500),
		WorkerConcurrency:  getEnvAsInt("WORKER_CONCURRENCY", 2),
		ParseMaxAttempts:   getEnvAsInt("PARSE_MAX_ATTEMPTS", 2),
		ParseBackoffBaseMs: getEnvAsInt("PARSE_BACKOFF_BASE_MS", 2000),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
