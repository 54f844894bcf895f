package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken      string
	BotUsername   string
	GroupID       int64
	WebsiteURL    string
	TwitterHandle string
	StatePath     string
	SummaryHour   int
	Port          string
	LogLevel      string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		BotToken:      getEnv("BOT_TOKEN", ""),
		BotUsername:   getEnv("BOT_USERNAME", "ChopstixsBNBbot"),
		GroupID:       getEnvInt64("GROUP_ID", 0),
		WebsiteURL:    getEnv("WEBSITE_URL", "https://chopstixsbnb.onrender.com"),
		TwitterHandle: getEnv("TWITTER_HANDLE", "ChopstixsBNB"),
		StatePath:     getEnv("STATE_PATH", "./db.json"),
		SummaryHour:   getEnvInt("SUMMARY_HOUR", -1),
		Port:          getEnv("PORT", "10000"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports the unrecoverable startup errors: missing credentials or
// group binding make the process useless, so they are fatal by design.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.BotUsername == "" {
		return fmt.Errorf("BOT_USERNAME is required")
	}
	if c.GroupID == 0 {
		return fmt.Errorf("GROUP_ID is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
		log.Printf("Invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}
