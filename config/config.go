package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Resumable upload transport
	UploadEndpoint  string // offset-aware chunk endpoint, fixed per deployment
	UploadTransport string // "http" or "s3"
	ChunkSizeBytes  int64

	// S3-compatible storage (used when UploadTransport == "s3")
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string

	// Backend gateway (film video records, transcoding status)
	GatewayBaseURL    string
	GatewayTimeoutSec int

	// Transcode status polling
	PollIntervalSec int
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "filmbox"),
		DBPort:        getEnv("DB_PORT", "5432"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		UploadEndpoint:  getEnv("UPLOAD_ENDPOINT", "http://localhost:1080/files"),
		UploadTransport: getEnv("UPLOAD_TRANSPORT", "http"),
		ChunkSizeBytes:  getEnvAsInt64("UPLOAD_CHUNK_SIZE", 5*1024*1024),

		S3Region:    getEnv("S3_REGION", ""),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),

		GatewayBaseURL:    getEnv("GATEWAY_BASE_URL", "http://localhost:9000/api"),
		GatewayTimeoutSec: getEnvAsInt("GATEWAY_TIMEOUT_SEC", 15),

		PollIntervalSec: getEnvAsInt("TRANSCODE_POLL_SEC", 10),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return fallback
}
