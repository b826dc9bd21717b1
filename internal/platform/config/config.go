package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	DatabaseURL string
	Kafka       KafkaConfig
	Redis       RedisConfig

	// JWTSigningKey verifies bearer tokens minted by the identity service.
	JWTSigningKey string
	// ServiceTokenHash is the bcrypt hash of the shared token used by
	// back-office batch jobs that call mutating endpoints as "system".
	ServiceTokenHash string

	// OplogBuffer bounds the in-flight business/audit log queue; entries
	// beyond it are dropped and counted, never block the request path.
	OplogBuffer  int
	OplogWorkers int

	// EventRetryLimit bounds sequence-conflict retries per append.
	EventRetryLimit int
}

// KafkaConfig configures the log sink producer.
type KafkaConfig struct {
	Brokers       []string
	BusinessTopic string
	AuditTopic    string
}

// RedisConfig configures the recent-activity feed client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("BACKTRAIL_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:        addr,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Kafka: KafkaConfig{
			Brokers:       brokers,
			BusinessTopic: envOr("KAFKA_BUSINESS_TOPIC", "backtrail.business"),
			AuditTopic:    envOr("KAFKA_AUDIT_TOPIC", "backtrail.audit"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		JWTSigningKey:    jwtSigningKey,
		ServiceTokenHash: os.Getenv("SERVICE_TOKEN_HASH"),
		OplogBuffer:      envInt("OPLOG_BUFFER", 1024),
		OplogWorkers:     envInt("OPLOG_WORKERS", 2),
		EventRetryLimit:  envInt("EVENT_RETRY_LIMIT", 3),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
