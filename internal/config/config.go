package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURI string
	HTTPAddr    string

	// Telegram due-date notifications; disabled when the token is empty.
	TelegramToken  string
	NotifyInterval time.Duration
	NotifyLeadDays int

	// Natural-language recurrence parsing; disabled when the key is empty.
	AIAPIKey  string
	AIBaseURL string
	AIModel   string

	// Cron spec for the liability generation job in the worker.
	GenerateCron string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	return &Config{
		DatabaseURI:    os.Getenv("DATABASE_URI"),
		HTTPAddr:       getEnvOrDefault("HTTP_ADDR", ":8080"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		NotifyInterval: getDurationOrDefault("NOTIFY_INTERVAL", time.Hour),
		NotifyLeadDays: getIntOrDefault("NOTIFY_LEAD_DAYS", 3),
		AIAPIKey:       os.Getenv("AI_API_KEY"),
		AIBaseURL:      getEnvOrDefault("AI_BASE_URL", "https://api.openai.com/v1"),
		AIModel:        getEnvOrDefault("AI_MODEL", "gpt-4o-mini"),
		GenerateCron:   getEnvOrDefault("GENERATE_CRON", "0 6 * * *"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
