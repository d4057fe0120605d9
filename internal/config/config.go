package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Storage
	StoreDriver   string // postgres | mongo | memory
	DatabaseURL   string
	MigrationsDir string
	MongoURL      string
	MongoDatabase string

	// Redis (optional)
	RedisURL          string
	IndexCacheTTLSecs int

	// Generative backend
	GenerativeProvider   string // gemini | openai
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int
	OpenAIAPIKey         string
	OpenAIModel          string

	// Client
	ClientURL     string
	DefaultUserID string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "3080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		StoreDriver:          strings.ToLower(getEnvOrDefault("STORE_DRIVER", "postgres")),
		DatabaseURL:          getEnvOrDefault("DATABASE_URL", ""),
		MigrationsDir:        getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		MongoURL:             getEnvOrDefault("MONGO_URL", ""),
		MongoDatabase:        getEnvOrDefault("MONGO_DATABASE", "chatrelay"),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		IndexCacheTTLSecs:    getEnvAsIntOrDefault("INDEX_CACHE_TTL_SECONDS", 300),
		GenerativeProvider:   strings.ToLower(getEnvOrDefault("GENERATIVE_PROVIDER", "gemini")),
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		OpenAIAPIKey:         getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIModel:          getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		ClientURL:            getEnvOrDefault("CLIENT_URL", "http://localhost:5173"),
		DefaultUserID:        getEnvOrDefault("DEFAULT_USER_ID", "1"),
	}

	return cfg
}

// Validate checks that the credentials required by the selected store driver
// and generative provider are present.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "mongo":
		if c.MongoURL == "" {
			return errors.New("MONGO_URL is required when STORE_DRIVER=mongo")
		}
	case "memory":
	default:
		return errors.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.GenerativeProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required when GENERATIVE_PROVIDER=gemini")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required when GENERATIVE_PROVIDER=openai")
		}
	default:
		return errors.Errorf("unsupported GENERATIVE_PROVIDER %q", c.GenerativeProvider)
	}

	if c.DefaultUserID == "" {
		return errors.New("DEFAULT_USER_ID must not be empty")
	}
	return nil
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
