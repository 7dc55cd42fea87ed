package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Storage
	StoreBackend string // memory, redis, postgres
	KeyNamespace string
	IDScheme     string // uuid, monotonic, legacy

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Seeding
	SeedFile    string
	SeedOnStart bool

	// Kafka
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// LLM
	LLMAPIKey       string
	LLMBaseURL      string
	LLMModelName    string
	AnalysisTimeout time.Duration
	AnalysisRetries int
}

var dotenvOnce sync.Once

// Load reads the environment. A .env file in the working directory, if any,
// fills in variables that are not already set.
func Load() *Config {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 90*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "memory")),
		KeyNamespace: getEnv("KEY_NAMESPACE", ""),
		IDScheme:     strings.ToLower(getEnv("ID_SCHEME", "uuid")),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "medisetu"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "medisetu"),
		PostgresDB:       getEnv("POSTGRES_DB", "medisetu"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		SeedFile:    getEnv("SEED_FILE", ""),
		SeedOnStart: getBoolEnv("SEED_ON_START", true),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "medisetu.events"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "medisetu-audit"),

		LLMAPIKey:       getEnv("LLM_API_KEY", ""),
		LLMBaseURL:      getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModelName:    getEnv("LLM_MODEL_NAME", "gpt-4o-mini"),
		AnalysisTimeout: getDuration("ANALYSIS_TIMEOUT", 60*time.Second),
		AnalysisRetries: getIntEnv("ANALYSIS_RETRIES", 2),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getStringSliceEnv splits a comma separated list, dropping blanks.
func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
