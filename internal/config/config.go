package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gatepass/internal/cache"
	"gatepass/internal/database"
	"gatepass/internal/external"
	"gatepass/internal/messaging"
	"gatepass/internal/notify"
)

type Config struct {
	Port           string
	GinMode        string
	AppEnv         string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	FrontendBaseURL  string
	AllowedFrontends []string
	AllowedOrigin    string

	Database database.Config
	NATS     messaging.Config
	Redis    RedisConfig
	Payment  external.PaymentConfig
	Currency string
	Mail     notify.Config
	Search   ElasticsearchConfig
	Admin    AdminConfig
	Ticket   TicketConfig
}

type RedisConfig struct {
	cache.Options
	Enabled            bool
	PriceCacheTTL      time.Duration
	RateLimitPerMinute int
}

type AdminConfig struct {
	User string
	// PasswordHash is a bcrypt hash or the hex SHA-256 of the password.
	PasswordHash string
}

type TicketConfig struct {
	RedemptionWindow time.Duration
	CutoffHour       int
	PendingTimeout   time.Duration
	MinAmountMinor   int64
}

// Load reads configuration from the environment, after any .env file.
func Load() *Config {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		FrontendBaseURL:  strings.TrimRight(getEnv("FRONTEND_BASE_URL", "http://localhost:3000"), "/"),
		AllowedFrontends: getEnvList("ALLOWED_FRONTENDS"),
		AllowedOrigin:    getEnv("ALLOWED_ORIGIN", "*"),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "gatepass"),
			Password:           getEnv("DB_PASSWORD", "gatepass"),
			DBName:             getEnv("DB_NAME", "gatepass"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
			ConnectTimeout:     getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "gatepass"),
			ClientID:  getEnv("NATS_CLIENT_ID", "gatepass-api"),
			Enabled:   getEnvBool("NATS_ENABLED", false),
		},

		Redis: RedisConfig{
			Options: cache.Options{
				Addr:     getEnv("REDIS_ADDR", ""),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
			},
			Enabled:            getEnv("REDIS_ADDR", "") != "",
			PriceCacheTTL:      getEnvDuration("PRICE_CACHE_TTL", time.Minute),
			RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		},

		Payment: external.PaymentConfig{
			BaseURL:       getEnv("PAYMENT_GATEWAY_URL", "http://localhost:8090"),
			TeamSlug:      getEnv("PAYMENT_TEAM_SLUG", ""),
			Password:      getEnv("PAYMENT_PASSWORD", ""),
			WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			Timeout:       time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
		},
		Currency: strings.ToLower(getEnv("CURRENCY", "usd")),

		Mail: notify.Config{
			Host:        getEnv("SMTP_HOST", ""),
			Port:        getEnvInt("SMTP_PORT", 587),
			Username:    getEnv("SMTP_USER", ""),
			Password:    getEnv("SMTP_PASSWORD", ""),
			FromAddress: getEnv("FROM_EMAIL_ADDRESS", ""),
			FromName:    getEnv("FROM_NAME", "Tickets"),
			Timeout:     getEnvDuration("SMTP_TIMEOUT", 15*time.Second),
		},

		Search: LoadElasticsearchConfig(),

		Admin: AdminConfig{
			User:         getEnv("ADMIN_USER", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", getEnv("ADMIN_PASSWORD_SHA256", "")),
		},

		Ticket: TicketConfig{
			RedemptionWindow: getEnvDuration("TICKET_REDEMPTION_WINDOW", 2*time.Hour),
			CutoffHour:       getEnvInt("TICKET_CUTOFF_HOUR", 5),
			PendingTimeout:   getEnvDuration("PENDING_TIMEOUT", 24*time.Hour),
			MinAmountMinor:   int64(getEnvInt("MIN_AMOUNT_MINOR", 100)),
		},
	}
}

// MailEnabled reports whether direct SMTP delivery is configured.
func (c *Config) MailEnabled() bool {
	return c.Mail.Host != "" && c.Mail.FromAddress != ""
}

func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" {
		return errors.New("config: DB_HOST and DB_NAME are required")
	}
	if c.Ticket.CutoffHour < 0 || c.Ticket.CutoffHour > 23 {
		return fmt.Errorf("config: TICKET_CUTOFF_HOUR must be 0-23, got %d", c.Ticket.CutoffHour)
	}
	if c.Ticket.RedemptionWindow <= 0 {
		return errors.New("config: TICKET_REDEMPTION_WINDOW must be positive")
	}
	if c.Ticket.MinAmountMinor <= 0 {
		return errors.New("config: MIN_AMOUNT_MINOR must be positive")
	}
	if c.Redis.RateLimitPerMinute <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_PER_MINUTE must be positive, got %d", c.Redis.RateLimitPerMinute)
	}
	if c.AppEnv == "production" {
		if c.Payment.WebhookSecret == "" {
			return errors.New("config: in production PAYMENT_WEBHOOK_SECRET is required")
		}
		if c.Database.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
		if c.Admin.PasswordHash == "" {
			return errors.New("config: in production ADMIN_PASSWORD_HASH is required")
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90m") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
