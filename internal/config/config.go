package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	LogLevel    string
	JWTSecret   string
	StoragePath string
	DatabaseURL string // optional; when set the sqlite store is used instead of the file store

	WebhookChatURL     string
	WebhookResearchURL string
	WebhookReportURL   string
	WebhookTimeout     time.Duration

	NewsFeedURL   string
	StockQuoteURL string
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		StoragePath: getEnv("STORAGE_PATH", "chatSessions.json"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		WebhookChatURL:     getEnv("WEBHOOK_CHAT_URL", ""),
		WebhookResearchURL: getEnv("WEBHOOK_RESEARCH_URL", ""),
		WebhookReportURL:   getEnv("WEBHOOK_REPORT_URL", ""),
		WebhookTimeout:     time.Duration(getEnvAsInt("WEBHOOK_TIMEOUT_SECONDS", 60)) * time.Second,

		NewsFeedURL:   getEnv("NEWS_FEED_URL", ""),
		StockQuoteURL: getEnv("STOCK_QUOTE_URL", ""),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.WebhookChatURL == "" {
		return nil, fmt.Errorf("WEBHOOK_CHAT_URL environment variable is required")
	}

	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
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
