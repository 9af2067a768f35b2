// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration knobs for the HTTP server, stores, retries,
// alerting, and the expiration sweeper.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string

	RetryAttempts int
	RetryBackoff  time.Duration

	ReservationTTL   time.Duration
	SweepInterval    time.Duration
	ExpirationWindow time.Duration

	RateLimitPerMin          int
	DefaultLowStockThreshold int64
	DeadStockDays            int
	AlertFromEmail           string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

func listenv(key string) []string {
	v := getenv(key, "")
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 15),

		DatabaseURL:  getenv("DATABASE_URL", ""),
		KafkaBrokers: listenv("KAFKA_BROKERS"),
		KafkaTopic:   getenv("KAFKA_TOPIC", "inventory-alerts"),

		RetryAttempts: atoienv("RETRY_ATTEMPTS", 4),
		RetryBackoff:  durenvms("RETRY_BACKOFF_MS", 25),

		ReservationTTL:   durenvs("RESERVATION_TTL_SEC", 900),
		SweepInterval:    durenvs("SWEEP_INTERVAL_SEC", 30),
		ExpirationWindow: durenvs("EXPIRATION_WINDOW_SEC", 0),

		RateLimitPerMin:          atoienv("RATE_LIMIT_PER_MIN", 120),
		DefaultLowStockThreshold: int64(atoienv("DEFAULT_LOW_STOCK_THRESHOLD", 10)),
		DeadStockDays:            atoienv("DEAD_STOCK_DAYS", 90),
		AlertFromEmail:           getenv("ALERT_FROM_EMAIL", "alerts@vendora.local"),
	}
}
