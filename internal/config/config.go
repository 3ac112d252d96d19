package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Storage backends.
const (
	BackendSupabase = "supabase"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	// Storage
	DataBackend    string
	SupabaseURL    string
	SupabaseKey    string
	SupabaseUserID string
	SQLiteDBPath   string
	DatabaseURL    string

	// Telegram
	TelegramToken   string
	TelegramOwnerID int64

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string

	// Budget
	InvestmentGoal decimal.Decimal

	LogLevel string
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(".env")
}

// LoadConfigFrom is LoadConfig with an explicit dotenv path. A missing file is
// not an error; variables already set in the environment take precedence.
func LoadConfigFrom(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	cfg := &Config{
		DataBackend:    strings.ToLower(getEnv("DATA_BACKEND", BackendSupabase)),
		SupabaseURL:    os.Getenv("SUPABASE_URL"),
		SupabaseKey:    os.Getenv("SUPABASE_KEY"),
		SupabaseUserID: os.Getenv("SUPABASE_USER_ID"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/fincontrol.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		TelegramOwnerID: getEnvInt64("TELEGRAM_OWNER_ID", 0),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fincontrol"),

		InvestmentGoal: getEnvFraction("INVESTMENT_GOAL_PERCENT", decimal.NewFromFloat(0.20)),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	var problems []string

	switch c.DataBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			problems = append(problems, "SUPABASE_URL and SUPABASE_KEY are required for the supabase backend")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLITE_DB_PATH cannot be empty when using the sqlite backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of %v",
			c.DataBackend, []string{BackendSupabase, BackendSQLite, BackendPostgres, BackendMemory}))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvFraction parses a fraction clamped to [0, 1]. Values above 1 are read
// as percentages, so both 0.2 and 20 mean twenty percent.
func getEnvFraction(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	if err != nil {
		return defaultValue
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		d = d.Div(decimal.NewFromInt(100))
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return d
}
