package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults matching the platform's admin upload workflow
const (
	DefaultPollInterval    = 2 * time.Second
	DefaultHistoryInterval = 5 * time.Second
	DefaultHistoryLimit    = 20
	DefaultRequestTimeout  = 15 * time.Second
)

type Config struct {
	PlatformURL string
	APIToken    string

	// Persisted-state store. StatePath is the SQLite file; RedisURL,
	// when set, selects the shared Redis store instead.
	StatePath string
	RedisURL  string

	PollInterval    time.Duration
	HistoryInterval time.Duration
	HistoryLimit    int
	RequestTimeout  time.Duration

	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	historyLimit, _ := strconv.Atoi(getEnvOrDefault("UPLOAD_HISTORY_LIMIT", ""))
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	return &Config{
		PlatformURL:     getEnvOrDefault("PLATFORM_URL", "http://localhost:8080"),
		APIToken:        getEnvOrDefault("PLATFORM_API_TOKEN", ""),
		StatePath:       getEnvOrDefault("UPLOAD_STATE_PATH", defaultStatePath()),
		RedisURL:        getEnvOrDefault("UPLOAD_REDIS_URL", ""),
		PollInterval:    getEnvDuration("UPLOAD_POLL_INTERVAL", DefaultPollInterval),
		HistoryInterval: getEnvDuration("UPLOAD_HISTORY_INTERVAL", DefaultHistoryInterval),
		HistoryLimit:    historyLimit,
		RequestTimeout:  getEnvDuration("UPLOAD_REQUEST_TIMEOUT", DefaultRequestTimeout),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "uploadtracker.db"
	}
	return filepath.Join(dir, "uploadtracker", "state.db")
}
