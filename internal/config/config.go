package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

type Config struct {
	// Server
	Port    string
	Env     string
	LogMode string

	// Storage
	StoreDriver   string
	DatabaseURL   string
	MigrationsDir string
	MongoURI      string
	MongoDatabase string

	// Redis (optional, enables websocket push)
	RedisURL string

	// RabbitMQ (optional)
	RabbitMQURI      string
	RabbitMQExchange string

	// JWT
	JWTSecret string

	// Quiz policy
	ReviewHideAnswers bool
	SubmitRateLimit   int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:              getEnvOrDefault("PORT", "8080"),
		Env:               getEnvOrDefault("ENV", "development"),
		LogMode:           getEnvOrDefault("LOG_MODE", "development"),
		StoreDriver:       strings.ToLower(getEnvOrDefault("STORE_DRIVER", StorePostgres)),
		MigrationsDir:     getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		MongoDatabase:     getEnvOrDefault("MONGO_DATABASE", "hyra"),
		RedisURL:          getEnvOrDefault("REDIS_URL", ""),
		RabbitMQURI:       getEnvOrDefault("RABBITMQ_URI", ""),
		RabbitMQExchange:  getEnvOrDefault("RABBITMQ_EXCHANGE", "hyra.events"),
		JWTSecret:         mustGetEnv("JWT_SECRET"),
		ReviewHideAnswers: getEnvAsBoolOrDefault("REVIEW_HIDE_ANSWERS", false),
		SubmitRateLimit:   getEnvAsIntOrDefault("SUBMIT_RATE_LIMIT", 30),
		FrontendURL:       getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	switch cfg.StoreDriver {
	case StorePostgres:
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	case StoreMongo:
		cfg.MongoURI = mustGetEnv("MONGO_URI")
	case StoreMemory:
	default:
		panic(fmt.Sprintf("unsupported STORE_DRIVER %q", cfg.StoreDriver))
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
