package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Mongo      MongoConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Wallet     WalletConfig
	Validation ValidationConfig
	Referral   ReferralConfig
	Vendors    VendorConfig
	SMTP       SMTPConfig
	NATS       NATSConfig
	Sentry     SentryConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

// MongoConfig holds the document store configuration (trajectories, receipts)
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig holds JWT verification configuration
type JWTConfig struct {
	Secret         string
	InternalAPIKey string // shared secret for service-to-service endpoints
}

// WalletConfig carries the platform wallet business rules
type WalletConfig struct {
	DailyPurchaseLimit decimal.Decimal // USD charged per local calendar day
	DailyRedeemLimit   decimal.Decimal // coins redeemed per local calendar day
	Currency           string
}

// ValidationConfig carries trip-validation tuning
type ValidationConfig struct {
	RoundLimit    int           // max validation rounds per trip
	BufferTime    time.Duration // grace period after trip start before round 1
	PollInterval  time.Duration
	WorkerBatch   int
	TrajectoryMin int // minimum trajectory points
}

// ReferralConfig carries referral economics
type ReferralConfig struct {
	Coin       decimal.Decimal // base coin reward per referral
	WindowDays int             // days from account creation a referral stays valid
	HashSalt   string          // hashids salt for referral codes
}

// VendorConfig groups upstream vendor endpoints and secrets
type VendorConfig struct {
	UberBaseURL          string
	UberServerToken      string
	UberWebhookSecret    string
	IncentiveHookBaseURL string
	StripeAPIKey         string
	ServiceProfilePath   string // directory of per-market WKT polygons
	Timeout              time.Duration
}

// SMTPConfig holds outbound email settings
type SMTPConfig struct {
	Host      string
	Port      string
	Username  string
	Password  string
	FromEmail string
	FromName  string
	PublicURL string // base URL used in verification links
}

// NATSConfig holds event bus settings
type NATSConfig struct {
	URL     string
	Enabled bool
}

// SentryConfig holds error monitoring settings
type SentryConfig struct {
	DSN     string
	Enabled bool
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dailyLimit, err := decimal.NewFromString(getEnv("DAILY_PURCHASE_LIMIT", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid DAILY_PURCHASE_LIMIT: %w", err)
	}

	redeemLimit, err := decimal.NewFromString(getEnv("DAILY_REDEEM_LIMIT", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid DAILY_REDEEM_LIMIT: %w", err)
	}

	referralCoin, err := decimal.NewFromString(getEnv("REFERRAL_COIN", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFERRAL_COIN: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "tsp"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConns:       getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:       getEnvAsInt("DB_MIN_CONNS", 5),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "tsp"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:         getEnv("JWT_SECRET", "change-me-in-production"),
			InternalAPIKey: getEnv("INTERNAL_API_KEY", ""),
		},
		Wallet: WalletConfig{
			DailyPurchaseLimit: dailyLimit,
			DailyRedeemLimit:   redeemLimit,
			Currency:           getEnv("WALLET_CURRENCY", "USD"),
		},
		Validation: ValidationConfig{
			RoundLimit:    getEnvAsInt("VALIDATION_ROUND_LIMIT", 2),
			BufferTime:    time.Duration(getEnvAsInt("VALIDATION_BUFFER_TIME", 24)) * time.Hour,
			PollInterval:  time.Duration(getEnvAsInt("VALIDATION_POLL_SECONDS", 60)) * time.Second,
			WorkerBatch:   getEnvAsInt("VALIDATION_WORKER_BATCH", 20),
			TrajectoryMin: getEnvAsInt("MIN_TRAJECTORY_POINTS", 5),
		},
		Referral: ReferralConfig{
			Coin:       referralCoin,
			WindowDays: getEnvAsInt("REFERRAL_WINDOW_DAYS", 5),
			HashSalt:   getEnv("REFERRAL_HASH_SALT", "tsp-referral"),
		},
		Vendors: VendorConfig{
			UberBaseURL:          getEnv("UBER_BASE_URL", "https://api.uber.com"),
			UberServerToken:      getEnv("UBER_SERVER_TOKEN", ""),
			UberWebhookSecret:    getEnv("UBER_WEBHOOK_SECRET", ""),
			IncentiveHookBaseURL: getEnv("INCENTIVE_HOOK_BASE_URL", "http://localhost:8090"),
			StripeAPIKey:         getEnv("STRIPE_API_KEY", ""),
			ServiceProfilePath:   getEnv("SERVICE_PROFILE_PATH", "profiles"),
			Timeout:              time.Duration(getEnvAsInt("VENDOR_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", "localhost"),
			Port:      getEnv("SMTP_PORT", "587"),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromEmail: getEnv("SMTP_FROM_EMAIL", "no-reply@tsp.example.com"),
			FromName:  getEnv("SMTP_FROM_NAME", "TSP"),
			PublicURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("NATS_ENABLED", false),
		},
		Sentry: SentryConfig{
			DSN:     getEnv("SENTRY_DSN", ""),
			Enabled: getEnvAsBool("SENTRY_ENABLED", false),
		},
	}

	if cfg.Validation.RoundLimit <= 0 {
		cfg.Validation.RoundLimit = 2
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MigrateURL returns the connection URL used by golang-migrate
func (c *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
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
