package configs

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Trading   TradingConfig
	Quote     QuoteConfig
	Auth      AuthConfig
	Kafka     KafkaConfig
	Reconcile ReconcileConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    string
	OpsPort string
	Env     string
}

// DatabaseConfig holds database configuration.
// An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL string
}

// TradingConfig holds account defaults
type TradingConfig struct {
	StartingCash decimal.Decimal
}

// QuoteConfig holds quote provider configuration
type QuoteConfig struct {
	Provider string // "iex" or "static"
	URL      string
	APIKey   string
	Timeout  time.Duration
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// KafkaConfig holds trade event publishing configuration.
// Publishing is disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ReconcileConfig holds the ledger audit schedule
type ReconcileConfig struct {
	Schedule string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			OpsPort: getEnv("OPS_PORT", "8081"),
			Env:     getEnv("GO_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Trading: TradingConfig{
			StartingCash: getEnvCash("STARTING_CASH", decimal.NewFromInt(10000)),
		},
		Quote: QuoteConfig{
			Provider: getEnv("QUOTE_PROVIDER", "iex"),
			URL:      getEnv("QUOTE_API_URL", "https://cloud-sse.iexapis.com/stable"),
			APIKey:   getEnv("API_KEY", ""),
			Timeout:  getEnvDuration("QUOTE_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "default-secret-change-in-production"),
			TokenTTL:  getEnvDuration("JWT_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "trade_executed"),
		},
		Reconcile: ReconcileConfig{
			Schedule: getEnv("RECONCILE_SCHEDULE", "0 * * * *"),
		},
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil || d.IsNegative() {
		log.Printf("[WARN] Invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

// getEnvCash reads an amount of money, rounded to whole cents so every
// store starts accounts with the same balance
func getEnvCash(key string, defaultValue decimal.Decimal) decimal.Decimal {
	d := getEnvDecimal(key, defaultValue)
	rounded := d.Round(domain.PriceScale)
	if !rounded.Equal(d) {
		log.Printf("[WARN] %s=%s has sub-cent digits, using %s", key, d, rounded.StringFixed(domain.PriceScale))
	}
	return rounded
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("[WARN] Invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

// getEnvList splits a comma-separated variable, dropping empty items
func getEnvList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
