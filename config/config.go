package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Email     EmailConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
}

// EmailConfig for SMTP delivery. An empty SMTPHost makes the worker log mail instead of sending it.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	// SMTPTLSPolicy is "opportunistic", "mandatory" or "none".
	SMTPTLSPolicy string
	SMTPTimeout   time.Duration
}

// NotifyConfig controls which notifications are produced and where they go.
type NotifyConfig struct {
	OperatorEmails []string // recipients of "new lead" notifications
	SiteURL        string   // base URL linked from notification bodies
}

// RateLimitConfig holds the per-IP token bucket applied to auth endpoints.
type RateLimitConfig struct {
	Burst     int
	PerSecond int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/crm?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns       int // 0 keeps the pgx default
	MaxConnIdleSec int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "crm"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxConns:       getEnvInt("DB_MAX_CONNS", 0),
			MaxConnIdleSec: getEnvInt("DB_MAX_CONN_IDLE_SEC", 300),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Email: EmailConfig{
			FromAddress:   getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:      getEnv("EMAIL_FROM_NAME", "Leadflow CRM"),
			SMTPHost:      getEnv("SMTP_HOST", ""),
			SMTPPort:      getEnvInt("SMTP_PORT", 587),
			SMTPUser:      getEnv("SMTP_USER", ""),
			SMTPPass:      getEnv("SMTP_PASS", ""),
			SMTPTLSPolicy: strings.ToLower(getEnv("SMTP_TLS_POLICY", "opportunistic")),
			SMTPTimeout:   time.Duration(getEnvInt("SMTP_TIMEOUT_SEC", 15)) * time.Second,
		},
		Notify: NotifyConfig{
			OperatorEmails: splitTrim(getEnv("NOTIFY_OPERATOR_EMAILS", "operator@example.com"), ","),
			SiteURL:        getEnv("SITE_URL", "http://localhost:3000"),
		},
		RateLimit: RateLimitConfig{
			Burst:     getEnvInt("AUTH_RATE_BURST", 10),
			PerSecond: getEnvInt("AUTH_RATE_PER_SEC", 1),
		},
	}

	if len(cfg.Notify.OperatorEmails) == 0 {
		return nil, fmt.Errorf("NOTIFY_OPERATOR_EMAILS must name at least one address")
	}
	if cfg.RateLimit.Burst <= 0 || cfg.RateLimit.PerSecond <= 0 {
		return nil, fmt.Errorf("AUTH_RATE_BURST and AUTH_RATE_PER_SEC must be positive")
	}
	switch cfg.Email.SMTPTLSPolicy {
	case "opportunistic", "mandatory", "none":
	default:
		return nil, fmt.Errorf("SMTP_TLS_POLICY must be opportunistic, mandatory or none, got %q", cfg.Email.SMTPTLSPolicy)
	}
	if cfg.JWT.ExpireHours <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRE_HOURS must be positive, got %d", cfg.JWT.ExpireHours)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
