package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const (
	LockBackendRedis = "redis"
	LockBackendLocal = "local"
)

type Config struct {
	// Server configuration
	Environment string
	LogLevel    string

	// Redis configuration
	RedisURL string

	// Slot locking
	LockBackend   string
	SlotLockTTL   time.Duration
	SlotLockWait  time.Duration
	SlotLockRetry time.Duration

	// PubNub configuration
	PubNubPublishKey      string
	PubNubSubscribeKey    string
	PubNubSecretKey       string
	PubNubUserID          string
	NotifyMaxFailures     int
	NotifyBreakerCooldown time.Duration

	// Scheduling
	Timezone            string
	CompletionSweepCron string

	// Monitoring
	EnableMetrics   bool
	MetricsInterval time.Duration

	// Rate limiting, 0 disables it
	RateLimitPerMinute int
}

// LoadConfig reads a local .env file and the optional YAML file named by
// CONFIG_FILE, then builds the config from the environment. Neither file
// overrides variables that are already set.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(path); err != nil {
			slog.Warn("Failed to load config file", "path", path, "error", err)
		}
	}

	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		// Slot locking
		LockBackend:   strings.ToLower(getEnv("LOCK_BACKEND", LockBackendRedis)),
		SlotLockTTL:   getEnvAsDuration("SLOT_LOCK_TTL", "10s"),
		SlotLockWait:  getEnvAsDuration("SLOT_LOCK_WAIT", "5s"),
		SlotLockRetry: getEnvAsDuration("SLOT_LOCK_RETRY", "50ms"),

		// PubNub
		PubNubPublishKey:      getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey:    getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:       getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:          getEnv("PUBNUB_USER_ID", "event-workflow"),
		NotifyMaxFailures:     getEnvAsInt("NOTIFY_MAX_FAILURES", 5),
		NotifyBreakerCooldown: getEnvAsDuration("NOTIFY_BREAKER_COOLDOWN", "30s"),

		// Scheduling
		Timezone:            getEnv("TIMEZONE", "Asia/Manila"),
		CompletionSweepCron: getEnv("COMPLETION_SWEEP_CRON", "*/5 * * * *"),

		// Monitoring
		EnableMetrics:   getEnvAsBool("ENABLE_METRICS", true),
		MetricsInterval: getEnvAsDuration("METRICS_INTERVAL", "30s"),

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("Unknown timezone, using UTC", "timezone", c.Timezone, "error", err)
		return time.UTC
	}
	return loc
}

// SlogLevel maps LogLevel onto a slog level. Unknown names mean info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// PubNubEnabled reports whether decision notifications can be published.
func (c *Config) PubNubEnabled() bool {
	return c.PubNubPublishKey != "" && c.PubNubSubscribeKey != ""
}

// applyFile sets every top-level key of a flat YAML document as an
// environment variable unless it is already set.
func applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for key, value := range values {
		key = strings.ToUpper(key)
		if _, ok := os.LookupEnv(key); ok {
			continue
		}
		if err := os.Setenv(key, cast.ToString(value)); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
