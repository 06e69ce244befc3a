// Package config centralizes environment-driven configuration for the gateway.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Logging     LoggingConfig
	Limiter     LimiterConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Auth        AuthConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// LimiterConfig carries the throttling policy. MaxFailures and Window bound
// failed attempts per identity; IdentityStrategy picks the bucketing key.
type LimiterConfig struct {
	MaxFailures      int
	Window           time.Duration
	IdentityStrategy string // "ip" or "ip_username"
	FailurePolicy    string // "open" or "closed"
	Store            string // "memory" or "redis"
	SweepInterval    time.Duration
}

type RedisConfig struct {
	URL      string
	PoolSize int
}

// KafkaConfig is optional; an empty broker list disables event publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AuthConfig struct {
	Mode        string // "platform" or "static"
	PlatformURL string
	AppID       string
	Timeout     time.Duration
	SessionTTL  time.Duration
	StaticUsers map[string]string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT_SECONDS", 10)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT_SECONDS", 30)) * time.Second,
			IdleTimeout:  time.Duration(getEnvInt("SERVER_IDLE_TIMEOUT_SECONDS", 120)) * time.Second,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Limiter: LimiterConfig{
			MaxFailures:      getEnvInt("RATE_LIMIT_MAX_FAILURES", 5),
			Window:           time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MINUTES", 15)) * time.Minute,
			IdentityStrategy: getEnv("RATE_LIMIT_IDENTITY", "ip"),
			FailurePolicy:    getEnv("RATE_LIMIT_FAILURE_POLICY", "open"),
			Store:            getEnv("RATE_LIMIT_STORE", "memory"),
			SweepInterval:    time.Duration(getEnvInt("RATE_LIMIT_SWEEP_INTERVAL_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_SECURITY_TOPIC", "security-events"),
		},
		Auth: AuthConfig{
			Mode:        getEnv("AUTH_MODE", "platform"),
			PlatformURL: strings.TrimSpace(os.Getenv("AUTH_PLATFORM_URL")),
			AppID:       strings.TrimSpace(os.Getenv("AUTH_PLATFORM_APP_ID")),
			Timeout:     time.Duration(getEnvInt("AUTH_TIMEOUT_SECONDS", 5)) * time.Second,
			SessionTTL:  time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
			StaticUsers: parseStaticUsers(os.Getenv("AUTH_STATIC_USERS")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Limiter.MaxFailures <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX_FAILURES must be positive, got %d", c.Limiter.MaxFailures)
	}
	if c.Limiter.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_MINUTES must be positive")
	}
	switch c.Limiter.IdentityStrategy {
	case "ip", "ip_username":
	default:
		return fmt.Errorf("RATE_LIMIT_IDENTITY must be \"ip\" or \"ip_username\", got %q", c.Limiter.IdentityStrategy)
	}
	switch c.Limiter.FailurePolicy {
	case "open", "closed":
	default:
		return fmt.Errorf("RATE_LIMIT_FAILURE_POLICY must be \"open\" or \"closed\", got %q", c.Limiter.FailurePolicy)
	}
	switch c.Limiter.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("RATE_LIMIT_STORE must be \"memory\" or \"redis\", got %q", c.Limiter.Store)
	}
	switch c.Auth.Mode {
	case "platform":
		if c.Auth.PlatformURL == "" {
			return fmt.Errorf("AUTH_PLATFORM_URL is required when AUTH_MODE=platform")
		}
	case "static":
		if len(c.Auth.StaticUsers) == 0 {
			return fmt.Errorf("AUTH_STATIC_USERS is required when AUTH_MODE=static")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"platform\" or \"static\", got %q", c.Auth.Mode)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) ServerAddress() string {
	return ":" + c.Server.Port
}

// parseStaticUsers decodes "user:bcrypt-hash" pairs separated by commas.
// Bcrypt hashes contain no commas or colons beyond the "$" sections, so a
// single SplitN per entry is enough.
func parseStaticUsers(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	users := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		users[parts[0]] = parts[1]
	}
	return users
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
