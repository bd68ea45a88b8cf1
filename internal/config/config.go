package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for all services.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Gateway      GatewayConfig
	Scheduler    SchedulerConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	EventsChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token and password parameters. The secret is read once
// here and never changes for the lifetime of the process.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// GatewayConfig defines upstreams and verification limits of the trust gateway.
type GatewayConfig struct {
	AuthUpstream          string
	SchedulerUpstream     string
	VerifyTimeoutMillis   int
	UpstreamTimeoutMillis int
	BreakerMaxFailures    int
	BreakerOpenSeconds    int
}

// SchedulerConfig bounds appointment store calls.
type SchedulerConfig struct {
	StoreTimeoutMillis int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "medsched"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			EventsChannel: getEnv("REDIS_EVENTS_CHANNEL", "medsched.appointments"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Gateway: GatewayConfig{
			AuthUpstream:          getEnv("GATEWAY_AUTH_UPSTREAM", "http://127.0.0.1:8081"),
			SchedulerUpstream:     getEnv("GATEWAY_SCHEDULER_UPSTREAM", "http://127.0.0.1:8082"),
			VerifyTimeoutMillis:   getEnvAsInt("GATEWAY_VERIFY_TIMEOUT_MS", 500),
			UpstreamTimeoutMillis: getEnvAsInt("GATEWAY_UPSTREAM_TIMEOUT_MS", 10000),
			BreakerMaxFailures:    getEnvAsInt("GATEWAY_BREAKER_MAX_FAILURES", 5),
			BreakerOpenSeconds:    getEnvAsInt("GATEWAY_BREAKER_OPEN_SECONDS", 30),
		},
		Scheduler: SchedulerConfig{
			StoreTimeoutMillis: getEnvAsInt("SCHEDULER_STORE_TIMEOUT_MS", 3000),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TokenTTL returns the lifetime of issued identity tokens.
func (a AuthConfig) TokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// VerifyTimeout bounds a single token verification at the gateway.
func (g GatewayConfig) VerifyTimeout() time.Duration {
	return millis(g.VerifyTimeoutMillis, 500*time.Millisecond)
}

// UpstreamTimeout bounds a proxied call to a backend.
func (g GatewayConfig) UpstreamTimeout() time.Duration {
	return millis(g.UpstreamTimeoutMillis, 10*time.Second)
}

// BreakerOpen is how long a tripped upstream circuit stays open.
func (g GatewayConfig) BreakerOpen() time.Duration {
	if g.BreakerOpenSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.BreakerOpenSeconds) * time.Second
}

// StoreTimeout bounds each scheduler operation against the appointment store.
func (s SchedulerConfig) StoreTimeout() time.Duration {
	return millis(s.StoreTimeoutMillis, 3*time.Second)
}

func millis(val int, fallback time.Duration) time.Duration {
	if val <= 0 {
		return fallback
	}
	return time.Duration(val) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
