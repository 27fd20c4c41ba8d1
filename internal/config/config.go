package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPPort    string
	PostgresDSN string
	RedisURL    string
	JWTSecret   string

	ResendAPIKey  string
	ResendBaseURL string
	EmailFrom     string
	FrontendURL   string

	TokenTTL          time.Duration
	ReminderThreshold time.Duration
	ExpiryThreshold   time.Duration
	ResendLimit       int
	ResendWindow      time.Duration

	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnMaxIdle  time.Duration
	DBConnMaxLife  time.Duration
	MigrationsDir  string

	RequestTimeout time.Duration
	JobSchedule    string
}

func Load() *Config {
	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		PostgresDSN: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		ResendAPIKey:  getEnv("RESEND_API_KEY", ""),
		ResendBaseURL: getEnv("RESEND_BASE_URL", "https://api.resend.com"),
		EmailFrom:     getEnv("EMAIL_FROM", "EK-SMS <noreply@eksms.dev>"),
		FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:3000"),

		TokenTTL:          getDuration("VERIFICATION_TOKEN_TTL", 72*time.Hour),
		ReminderThreshold: getDuration("REMINDER_THRESHOLD", 48*time.Hour),
		ExpiryThreshold:   getDuration("EXPIRY_THRESHOLD", 72*time.Hour),
		ResendLimit:       getInt("RESEND_RATE_LIMIT", 3),
		ResendWindow:      getDuration("RESEND_RATE_WINDOW", time.Hour),

		DBMaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxIdle:  getDuration("DB_CONN_MAX_IDLE", 5*time.Minute),
		DBConnMaxLife:  getDuration("DB_CONN_MAX_LIFE", 30*time.Minute),
		MigrationsDir:  getEnv("MIGRATIONS_DIR", "migrations"),

		RequestTimeout: getDuration("REQUEST_TIMEOUT", 10*time.Second),
		JobSchedule:    getEnv("JOB_SCHEDULE", "@hourly"),
	}

	if cfg.PostgresDSN == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
