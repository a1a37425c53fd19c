package studytutor

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the process needs from the environment.
type Config struct {
	OpenAIKey     string
	Model         string
	DBPath        string
	HTTPPort      string
	SessionTTL    time.Duration
	TranscriptDir string
	Retry         RetryPolicy
}

// LoadConfig reads configuration from a .env file if present, then from the
// environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
		Model:         getEnv("TUTOR_MODEL", "gpt-4o"),
		DBPath:        getEnv("TUTOR_DB_PATH", "./tutor.db"),
		HTTPPort:      getEnv("PORT", "8180"),
		SessionTTL:    time.Duration(getEnvAsInt("TUTOR_SESSION_TTL_MINUTES", 60)) * time.Minute,
		TranscriptDir: getEnv("TUTOR_TRANSCRIPT_DIR", "log"),
		Retry: RetryPolicy{
			MaxAttempts:  getEnvAsInt("TUTOR_RETRY_MAX_ATTEMPTS", 5),
			InitialDelay: time.Duration(getEnvAsInt("TUTOR_RETRY_INITIAL_DELAY_MS", 1000)) * time.Millisecond,
			Base:         getEnvAsFloat("TUTOR_RETRY_BASE", 2),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}
