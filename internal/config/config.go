package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	App     AppConfig
	Catalog CatalogConfig
	Ledger  LedgerConfig
	Session SessionConfig
	Payment PaymentConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string  `envconfig:"APP_NAME" default:"cardshop-bot"`
	Environment string  `envconfig:"APP_ENV" default:"development"`
	Debug       bool    `envconfig:"APP_DEBUG" default:"false"`
	Version     string  `envconfig:"APP_VERSION" default:"1.0.0"`
	LoginKey    string  `envconfig:"LOGIN_KEY" default:""` // Admin endpoints login key
	AdminIDs    []int64 `envconfig:"ADMIN_IDS" default:""` // Users allowed on privileged commands
}

// CatalogConfig holds the catalog source settings.
type CatalogConfig struct {
	Path string `envconfig:"CATALOG_PATH" default:"./data/catalog.txt"`
}

// LedgerConfig holds ledger database settings.
type LedgerConfig struct {
	Type string `envconfig:"LEDGER_DB_TYPE" default:"sqlite"` // sqlite or mysql
	Path string `envconfig:"LEDGER_DB_PATH" default:"./data/ledger.db"`
	// MySQL settings
	Host     string `envconfig:"LEDGER_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"LEDGER_DB_PORT" default:"3306"`
	Name     string `envconfig:"LEDGER_DB_NAME" default:"cardshop"`
	User     string `envconfig:"LEDGER_DB_USER" default:"root"`
	Password string `envconfig:"LEDGER_DB_PASS" default:""`
}

// SessionConfig holds filter-session store settings.
type SessionConfig struct {
	Type string        `envconfig:"SESSION_STORE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// PaymentConfig holds payment gateway and PIX settings.
type PaymentConfig struct {
	GatewayURL    string `envconfig:"PAYMENT_GATEWAY_URL" default:""`
	GatewaySecret string `envconfig:"PAYMENT_GATEWAY_SECRET" default:""`
	WebhookURL    string `envconfig:"PAYMENT_WEBHOOK_URL" default:""`

	PixKey      string `envconfig:"PIX_KEY" default:""`
	PixReceiver string `envconfig:"PIX_RECEIVER" default:"Loja"`
	PixCity     string `envconfig:"PIX_CITY" default:"SAO PAULO"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *SessionConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// MySQLDSN returns the MySQL data source name for the ledger database.
func (l *LedgerConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		l.User, l.Password, l.Host, l.Port, l.Name)
}

// GatewayEnabled reports whether a payment gateway is configured.
func (p *PaymentConfig) GatewayEnabled() bool {
	return p.GatewayURL != "" && p.GatewaySecret != ""
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
