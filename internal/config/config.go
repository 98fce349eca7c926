package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the server.
type Config struct {
	Port         string
	DatabasePath string
	LogLevel     string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	// RealtimeRequireToken makes the websocket "auth" message carry a bearer
	// token matching the declared userId.
	RealtimeRequireToken bool
	// RealtimeServerPush pushes CRUD changes to every device of the account.
	RealtimeServerPush bool

	ShutdownTimeout time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	return Config{
		Port:                 getEnv("PORT", "3000"),
		DatabasePath:         getEnv("DATABASE_PATH", "calendar.db"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		JWTSecret:            getEnv("JWT_SECRET", "development-insecure-secret-change-me"),
		JWTIssuer:            getEnv("JWT_ISSUER", "calendar-sync-api"),
		JWTAudience:          getEnv("JWT_AUDIENCE", "calendar-clients"),
		JWTTTL:               getDuration("JWT_TTL", 7*24*time.Hour),
		RealtimeRequireToken: getBool("REALTIME_REQUIRE_TOKEN", false),
		RealtimeServerPush:   getBool("REALTIME_SERVER_PUSH", false),
		ShutdownTimeout:      getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", v)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}
