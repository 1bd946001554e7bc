// Package config reads process configuration from the environment so main
// stays lean. Every knob has a development default.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures the full service configuration.
type Server struct {
	Addr            string
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	// JWTSigningKey signs claim-session tokens.
	JWTSigningKey string
	SessionTTL    time.Duration

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig

	// Upstream search collaborators.
	AirportSearchURL string
	FlightSearchURL  string

	// SnapshotTTL bounds how long abandoned wizard sessions stay in
	// durable storage.
	SnapshotTTL time.Duration
}

// RedisConfig holds connection settings for the snapshot store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig holds connection settings for the claim store. An empty URL
// selects the in-memory store.
type PostgresConfig struct {
	URL string
}

// KafkaConfig holds the audit sink settings. Empty brokers select the
// in-memory sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:             envOr("CLAIM_WIZARD_ADDR", ":8080"),
		LogLevel:         parseLevel(os.Getenv("CLAIM_WIZARD_LOG_LEVEL")),
		ShutdownTimeout:  envDuration("CLAIM_WIZARD_SHUTDOWN_TIMEOUT", 10*time.Second),
		JWTSigningKey:    envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SessionTTL:       envDuration("CLAIM_WIZARD_SESSION_TTL", 24*time.Hour),
		AirportSearchURL: os.Getenv("AIRPORT_SEARCH_URL"),
		FlightSearchURL:  os.Getenv("FLIGHT_SEARCH_URL"),
		SnapshotTTL:      envDuration("CLAIM_WIZARD_SNAPSHOT_TTL", 30*24*time.Hour),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{URL: os.Getenv("POSTGRES_URL")},
		Kafka: KafkaConfig{
			Topic: envOr("KAFKA_AUDIT_TOPIC", "claim-audit"),
		},
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitComma(brokers)
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
