package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// Shared secret expected in the x-api-key header on the SEOWorks
	// webhook endpoint.
	WebhookAPIKey string

	OTLPEndpoint string
	OtelEnabled  bool

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Mail      MailConfig
	RateLimit RateLimitConfig
}

// MailConfig controls the outbound notification pipeline.
type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string

	// BaseURL is used for links embedded in email bodies (unsubscribe).
	BaseURL string

	// UnsubscribeSecret signs unsubscribe tokens.
	UnsubscribeSecret string

	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
}

// RateLimitConfig controls the redis-backed webhook rate limiter.
// The limiter is disabled entirely when no redis address is configured.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Rate          float64
	Burst         int
}

// Module provides Config to the fx graph.
var Module = fx.Provide(Load)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "seohub"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		WebhookAPIKey: strings.TrimSpace(getenv("SEOWORKS_WEBHOOK_SECRET", "")),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		OtelEnabled:  getenvBool("OTEL_ENABLED", false),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "seohub"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		Mail: MailConfig{
			SMTPHost:          getenv("SMTP_HOST", "localhost"),
			SMTPPort:          getenvInt("SMTP_PORT", 587),
			SMTPUsername:      getenv("SMTP_USERNAME", ""),
			SMTPPassword:      getenv("SMTP_PASSWORD", ""),
			From:              getenv("MAIL_FROM", "noreply@seohub.app"),
			BaseURL:           strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:8080"), "/"),
			UnsubscribeSecret: strings.TrimSpace(getenv("UNSUBSCRIBE_SECRET", "")),
			QueueSize:         getenvInt("MAIL_QUEUE_SIZE", 256),
			MaxAttempts:       getenvInt("MAIL_MAX_ATTEMPTS", 5),
			RetryDelay:        time.Duration(getenvInt("MAIL_RETRY_DELAY_MS", 1000)) * time.Millisecond,
		},

		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			Rate:          getenvFloat("RATE_LIMIT_RATE", 1),
			Burst:         getenvInt("RATE_LIMIT_BURST", 60),
		},
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
