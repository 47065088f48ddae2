package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	// HTTP Server
	Port         string
	SecureCookie bool
	SessionTTL   time.Duration

	// Database
	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBTLS      bool
	DBTimeout  time.Duration

	// Mail
	MailTransport string
	SMTPHost      string
	SMTPPort      string
	EmailUser     string
	EmailPass     string
	MailFrom      string
	MailDropDir   string
	MailTimeout   time.Duration

	// Auth
	AppName     string
	OTPHashCost int

	// Ledger
	DefaultBudget decimal.Decimal

	// Worker
	CleanupInterval time.Duration

	LogLevel slog.Level
}

// LoadEnvFile loads a .env file for local development.
// A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

func Load() *Config {
	emailUser := getEnv("EMAIL_USER", "")

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		SecureCookie: getEnvBool("SECURE_COOKIE", false),
		SessionTTL:   getEnvDuration("SESSION_TTL", 30*24*time.Hour),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "expenses.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", ""),
		DBTLS:      getEnvBool("DB_TLS", false),
		DBTimeout:  getEnvDuration("DB_TIMEOUT", 5*time.Second),

		MailTransport: getEnv("MAIL_TRANSPORT", "smtp"),
		SMTPHost:      getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		EmailUser:     emailUser,
		EmailPass:     getEnv("EMAIL_PASS", ""),
		MailFrom:      getEnv("MAIL_FROM", emailUser),
		MailDropDir:   getEnv("MAIL_DROP_DIR", "./mail"),
		MailTimeout:   getEnvDuration("MAIL_TIMEOUT", 10*time.Second),

		AppName:     getEnv("APP_NAME", "Smart Expense Guard"),
		OTPHashCost: getEnvInt("OTP_HASH_COST", bcrypt.DefaultCost),

		DefaultBudget: getEnvDecimal("BUDGET_DEFAULT", decimal.NewFromInt(5000)),

		CleanupInterval: getEnvDuration("CLEANUP_INTERVAL", time.Hour),

		LogLevel: getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			errors = append(errors, "DB_PATH cannot be empty when using the sqlite driver")
		} else if c.DBPath != ":memory:" {
			dir := filepath.Dir(c.DBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "mysql":
		if c.DBHost == "" {
			errors = append(errors, "DB_HOST is required when using the mysql driver")
		}
		if _, err := strconv.Atoi(c.DBPort); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DB_PORT '%s': must be a number", c.DBPort))
		}
		if c.DBUser == "" {
			errors = append(errors, "DB_USER is required when using the mysql driver")
		}
		if c.DBName == "" {
			errors = append(errors, "DB_NAME is required when using the mysql driver")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid DB_DRIVER '%s': must be one of [sqlite mysql]", c.DBDriver))
	}

	switch c.MailTransport {
	case "smtp":
		if c.SMTPHost == "" {
			errors = append(errors, "SMTP_HOST is required when using the smtp mail transport")
		}
		if _, err := strconv.Atoi(c.SMTPPort); err != nil {
			errors = append(errors, fmt.Sprintf("invalid SMTP_PORT '%s': must be a number", c.SMTPPort))
		}
		if c.MailFrom == "" {
			errors = append(errors, "MAIL_FROM or EMAIL_USER is required when using the smtp mail transport")
		}
		if c.EmailUser != "" && c.EmailPass == "" {
			errors = append(errors, "EMAIL_PASS is required when EMAIL_USER is set")
		}
	case "drop":
		if c.MailDropDir == "" {
			errors = append(errors, "MAIL_DROP_DIR is required when using the drop mail transport")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid MAIL_TRANSPORT '%s': must be one of [smtp drop]", c.MailTransport))
	}

	if c.OTPHashCost < bcrypt.MinCost || c.OTPHashCost > bcrypt.MaxCost {
		errors = append(errors, fmt.Sprintf("invalid OTP_HASH_COST %d: must be between %d and %d", c.OTPHashCost, bcrypt.MinCost, bcrypt.MaxCost))
	}

	if c.DefaultBudget.IsNegative() {
		errors = append(errors, fmt.Sprintf("invalid BUDGET_DEFAULT %s: must not be negative", c.DefaultBudget))
	}

	for name, d := range map[string]time.Duration{
		"DB_TIMEOUT":       c.DBTimeout,
		"MAIL_TIMEOUT":     c.MailTimeout,
		"SESSION_TTL":      c.SessionTTL,
		"CLEANUP_INTERVAL": c.CleanupInterval,
	} {
		if d <= 0 {
			errors = append(errors, fmt.Sprintf("invalid %s %v: must be positive", name, d))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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
		if i, err := strconv.Atoi(value); err == nil {
			return i
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(value)); err == nil {
			return l
		}
	}
	return defaultValue
}
