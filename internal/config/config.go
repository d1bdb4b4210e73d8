package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App    AppConfig
	Search SearchConfig
	Events EventsConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	WebSocketLogPath   string
	CorsAllowedOrigins string
	NatsURL            string // empty disables the NATS fan-out
	RedisURL           string // empty disables the Redis fan-out
}

type SearchConfig struct {
	APIURL            string
	ResultCount       int
	Alpha             float64
	RequestTimeout    time.Duration
	RevealInterval    time.Duration
	PosterBaseURL     string
	PlaceholderPoster string
}

type EventsConfig struct {
	Topic      string // in-process bus topic for lifecycle events
	SessionTTL time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/moviesearch.log"),
			WebSocketLogPath:   getEnv("WS_LOG_FILE_PATH", "logs/websocket.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3001"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Search: SearchConfig{
			APIURL:            getEnv("SEARCH_API_URL", "http://localhost:8000"),
			ResultCount:       getEnvAsInt("SEARCH_RESULT_COUNT", 24),
			Alpha:             getEnvAsFloat("SEARCH_ALPHA", 0.5),
			RequestTimeout:    getEnvAsDuration("SEARCH_REQUEST_TIMEOUT", 30*time.Second),
			RevealInterval:    getEnvAsDuration("REVEAL_INTERVAL", 12*time.Millisecond),
			PosterBaseURL:     getEnv("POSTER_BASE_URL", "https://image.tmdb.org/t/p/"),
			PlaceholderPoster: getEnv("POSTER_PLACEHOLDER", "/placeholder-poster.svg"),
		},
		Events: EventsConfig{
			Topic:      getEnv("EVENTS_TOPIC", "search.events"),
			SessionTTL: getEnvAsDuration("SESSION_TTL", time.Hour),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("250ms", "30s").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
