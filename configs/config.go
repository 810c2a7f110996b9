// config.go - Configuration loaded from environment variables

package configs

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every tunable of the identification service
type Config struct {
	// Server Configuration
	Port           string
	AllowedOrigins string
	GinMode        string
	LogLevel       string
	MaxImageBytes  int64
	RequestTimeout time.Duration

	// Primary provider (Gemini)
	GeminiAPIKey string
	GeminiModel  string
	GeminiRPM    int

	// Secondary provider (Mistral)
	MistralAPIKey  string
	MistralModel   string
	MistralBaseURL string

	// Provider timeouts
	PrimaryTimeout time.Duration // single item
	MultiTimeout   time.Duration // multi item

	// Enrichment
	VisionAPIKey         string
	SearchAPIKey         string
	SearchEngineID       string
	SearchAllowedDomains []string
	CatalogBaseURL       string

	// Cache backend: "mongo", "redis" or "memory"
	CacheBackend  string
	MongoURI      string
	MongoDBName   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Image persistence (MinIO / S3)
	MinioEndpoint  string
	MinioBucket    string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool

	// Auth
	AuthJWTSecret string
	AuthRequired  bool
}

// DefaultAllowedDomains is the retail allow-list used to bias web hint searches
var DefaultAllowedDomains = []string{
	"amazon.in",
	"flipkart.com",
	"bigbasket.com",
	"jiomart.com",
	"blinkit.com",
	"dmart.in",
}

// Load loads configuration from environment variables (and .env when present)
func Load() *Config {
	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		GinMode:        getEnv("GIN_MODE", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MaxImageBytes:  int64(getEnvInt("MAX_IMAGE_BYTES", 10<<20)),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 120*time.Second),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiRPM:    getEnvInt("GEMINI_RPM", 12),

		MistralAPIKey:  getEnv("MISTRAL_API_KEY", ""),
		MistralModel:   getEnv("MISTRAL_MODEL", "pixtral-12b-2409"),
		MistralBaseURL: getEnv("MISTRAL_BASE_URL", "https://api.mistral.ai"),

		PrimaryTimeout: getEnvDuration("PRIMARY_TIMEOUT", 30*time.Second),
		MultiTimeout:   getEnvDuration("MULTI_TIMEOUT", 45*time.Second),

		VisionAPIKey:         getEnv("VISION_API_KEY", ""),
		SearchAPIKey:         getEnv("SEARCH_API_KEY", ""),
		SearchEngineID:       getEnv("SEARCH_ENGINE_ID", ""),
		SearchAllowedDomains: getEnvList("SEARCH_ALLOWED_DOMAINS", DefaultAllowedDomains),
		CatalogBaseURL:       getEnv("CATALOG_BASE_URL", "https://world.openfoodfacts.org"),

		CacheBackend:  strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "product_identify"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "product-images"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		AuthRequired:  getEnvBool("AUTH_REQUIRED", false),
	}

	logrus.Info("✓ Configuration loaded successfully")
	return cfg
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or plain seconds ("45")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
