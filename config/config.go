package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"PlayDeck/logger"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreMySQL  = "mysql"
)

// Locator backends.
const (
	LocatorDataURI = "datauri"
	LocatorMinio   = "minio"
)

// Config stores the application configuration.
type Config struct {
	ListenAddr string

	StoreBackend    string
	StoreQuotaBytes int

	// Redis配置
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// MySQL配置
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// MinIO配置，上传的音频存入对象存储
	LocatorBackend string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	SampleInterval    time.Duration
	PersistInterval   time.Duration
	PreviousThreshold float64
	DefaultVolume     float64

	WatchDir string

	Log logger.Config
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvMillis(key string, fallback int) time.Duration {
	ms := getEnvInt(key, fallback)
	if ms <= 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load does not override variables that are already set.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() *Config {
	defaultVolume := getEnvFloat("DEFAULT_VOLUME", 0.5)
	if defaultVolume < 0 || defaultVolume > 1 {
		defaultVolume = 0.5
	}

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		StoreBackend:    getEnv("STORE_BACKEND", StoreMemory),
		StoreQuotaBytes: getEnvInt("STORE_QUOTA_BYTES", 5*1024*1024),

		RedisHost:      getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "playdeck:"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "playdeck"),

		LocatorBackend: getEnv("LOCATOR_BACKEND", LocatorDataURI),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "playdeck"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		SampleInterval:    getEnvMillis("SAMPLE_INTERVAL_MS", 100),
		PersistInterval:   getEnvMillis("PERSIST_INTERVAL_MS", 1000),
		PreviousThreshold: getEnvFloat("PREVIOUS_THRESHOLD_SECONDS", 3),
		DefaultVolume:     defaultVolume,

		WatchDir: os.Getenv("WATCH_DIR"),

		Log: logger.Config{
			Level:      logger.LogLevel(getEnv("LOG_LEVEL", string(logger.InfoLevel))),
			OutputPath: os.Getenv("LOG_PATH"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 28),
			Compress:   getEnvBool("LOG_COMPRESS", false),
		},
	}
}
