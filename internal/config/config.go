package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the API process configuration.
type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	OTLPEndpoint    string

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers     []string
	OrderEventsTopic string

	JWTSecret      string
	JWTAccessTTL   time.Duration
	JWTRefreshTTL  time.Duration
	PaymentSecret  string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	TaxRate            decimal.Decimal
	CancellationWindow time.Duration
	CheckoutTTL        time.Duration
	DefaultPrepTime    time.Duration
}

// Postgres holds the notifier's database credentials.
type Postgres struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// NotifierConfig is the notifier process configuration.
type NotifierConfig struct {
	HTTPPort         string
	ShutdownTimeout  time.Duration
	LogLevel         string
	OTLPEndpoint     string
	KafkaBrokers     []string
	OrderEventsTopic string
	ConsumerGroup    string
	Postgres         Postgres
}

// Load reads an optional .env file and then the environment. JWT_SECRET is required.
func Load() (*Config, error) {
	loadDotEnv()

	var errs []error
	cfg := &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDBName:      getEnv("MONGO_DB_NAME", "fooddb"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:     getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		PaymentSecret:    getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		AllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 10*time.Second, &errs)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second, &errs)
	cfg.JWTAccessTTL = getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute, &errs)
	cfg.JWTRefreshTTL = getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour, &errs)
	cfg.CancellationWindow = getEnvDuration("CANCELLATION_WINDOW", 5*time.Minute, &errs)
	cfg.CheckoutTTL = getEnvDuration("CHECKOUT_SESSION_TTL", 30*time.Minute, &errs)
	cfg.DefaultPrepTime = getEnvDuration("DEFAULT_PREP_TIME", 20*time.Minute, &errs)
	cfg.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", 10, &errs)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 20, &errs)
	cfg.TaxRate = getEnvDecimal("TAX_RATE", decimal.RequireFromString("0.10"), &errs)

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if cfg.TaxRate.IsNegative() {
		errs = append(errs, errors.New("TAX_RATE must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func LoadNotifier() (*NotifierConfig, error) {
	loadDotEnv()

	var errs []error
	cfg := &NotifierConfig{
		HTTPPort:         getEnv("HTTP_PORT", "8081"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		KafkaBrokers:     getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		ConsumerGroup:    getEnv("KAFKA_CONSUMER_GROUP", "notifier"),
		Postgres: Postgres{
			Host:              getEnv("POSTGRES_HOST", "localhost"),
			User:              getEnv("POSTGRES_USER", "postgres"),
			Password:          getEnv("POSTGRES_PASSWORD", "postgres"),
			DBName:            getEnv("POSTGRES_DB", "notifications"),
			SSLMode:           getEnv("POSTGRES_SSLMODE", "disable"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/notification/migrations"),
		},
	}
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second, &errs)
	cfg.Postgres.Port = getEnvInt("POSTGRES_PORT", 5432, &errs)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("load notifier config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv reads .env when present. A missing file is not an error.
func loadDotEnv() {
	_ = godotenv.Load()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s %q", key, value))
		return defaultValue
	}
	return d
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q", key, value))
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q", key, value))
		return defaultValue
	}
	return f
}

func getEnvDecimal(key string, defaultValue decimal.Decimal, errs *[]error) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s %q", key, value))
		return defaultValue
	}
	return d
}
