package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/cart"
	"github.com/fjod/go_cart/settlement-service/internal/pricing"
	"github.com/fjod/go_cart/settlement-service/internal/repository"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	HTTPPort       string        `mapstructure:"http_port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	LogLevel       string        `mapstructure:"log_level"`

	StripeSecretKey  string        `mapstructure:"stripe_secret_key"`
	StripeAPIURL     string        `mapstructure:"stripe_api_url"`
	StripeTimeout    time.Duration `mapstructure:"stripe_timeout"`
	StripeMaxRetries int64         `mapstructure:"stripe_max_retries"`

	Currency    string `mapstructure:"currency"`
	ShippingFee string `mapstructure:"shipping_fee"`
	TaxAmount   string `mapstructure:"tax_amount"`

	CountryTablePath string `mapstructure:"country_table_path"`

	DBHost         string `mapstructure:"db_host"`
	DBPort         int    `mapstructure:"db_port"`
	DBUser         string `mapstructure:"db_user"`
	DBPassword     string `mapstructure:"db_password"`
	DBName         string `mapstructure:"db_name"`
	DBSSLMode      string `mapstructure:"db_sslmode"`
	MigrationsPath string `mapstructure:"migrations_path"`

	MongoURI            string        `mapstructure:"mongo_uri"`
	MongoDB             string        `mapstructure:"mongo_db"`
	MongoMaxPoolSize    uint64        `mapstructure:"mongo_max_pool_size"`
	MongoMinPoolSize    uint64        `mapstructure:"mongo_min_pool_size"`
	MongoConnectTimeout time.Duration `mapstructure:"mongo_connect_timeout"`

	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	CartCacheTTL  time.Duration `mapstructure:"cart_cache_ttl"`

	KafkaBrokers []string      `mapstructure:"kafka_brokers"`
	KafkaTopic   string        `mapstructure:"kafka_topic"`
	OutboxTick   time.Duration `mapstructure:"outbox_tick"`
	RecoveryTick time.Duration `mapstructure:"recovery_tick"`
	RecoveryAge  time.Duration `mapstructure:"recovery_age"`

	StoreTimeout    time.Duration `mapstructure:"store_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

var defaults = map[string]any{
	"http_port":             "8080",
	"request_timeout":       30 * time.Second,
	"log_level":             "info",
	"stripe_secret_key":     "",
	"stripe_api_url":        "",
	"stripe_timeout":        10 * time.Second,
	"stripe_max_retries":    2,
	"currency":              "USD",
	"shipping_fee":          "5.00",
	"tax_amount":            "2.00",
	"country_table_path":    "",
	"db_host":               "localhost",
	"db_port":               5432,
	"db_user":               "postgres",
	"db_password":           "postgres",
	"db_name":               "ecommerce",
	"db_sslmode":            "disable",
	"migrations_path":       "./internal/repository/migrations",
	"mongo_uri":             "mongodb://localhost:27017",
	"mongo_db":              "cart",
	"mongo_max_pool_size":   100,
	"mongo_min_pool_size":   10,
	"mongo_connect_timeout": 10 * time.Second,
	"redis_addr":            "localhost:6379",
	"redis_password":        "",
	"lock_ttl":              2 * time.Minute,
	"cart_cache_ttl":        cart.DefaultCacheTTL,
	"kafka_brokers":         []string{"localhost:9092"},
	"kafka_topic":           "checkout-orders",
	"outbox_tick":           time.Second,
	"recovery_tick":         30 * time.Second,
	"recovery_age":          time.Minute,
	"store_timeout":         10 * time.Second,
	"shutdown_timeout":      15 * time.Second,
}

// Load reads defaults, then the optional YAML file at path, then environment variables named
// after the keys in upper case (DB_HOST, STRIPE_SECRET_KEY, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// A comma-separated env value arrives as a single element.
	if len(cfg.KafkaBrokers) == 1 && strings.Contains(cfg.KafkaBrokers[0], ",") {
		cfg.KafkaBrokers = strings.Split(cfg.KafkaBrokers[0], ",")
	}
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := domain.CurrencyExponent(c.Currency); err != nil {
		return fmt.Errorf("%w: currency: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Shipping(); err != nil {
		return fmt.Errorf("%w: shipping_fee: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Tax(); err != nil {
		return fmt.Errorf("%w: tax_amount: %v", ErrInvalidConfig, err)
	}
	if c.MongoMinPoolSize > c.MongoMaxPoolSize {
		return fmt.Errorf("%w: mongo_min_pool_size exceeds mongo_max_pool_size", ErrInvalidConfig)
	}
	if c.DBPort <= 0 {
		return fmt.Errorf("%w: db_port must be positive", ErrInvalidConfig)
	}
	return nil
}

// Shipping is the flat shipping fee in minor units of Currency.
func (c *Config) Shipping() (domain.Money, error) {
	return pricing.ParseMajor(c.ShippingFee, c.Currency)
}

func (c *Config) Tax() (domain.Money, error) {
	return pricing.ParseMajor(c.TaxAmount, c.Currency)
}

func (c *Config) Mongo() cart.MongoOptions {
	return cart.MongoOptions{
		URI:            c.MongoURI,
		Database:       c.MongoDB,
		MaxPoolSize:    c.MongoMaxPoolSize,
		MinPoolSize:    c.MongoMinPoolSize,
		ConnectTimeout: c.MongoConnectTimeout,
	}
}

func (c *Config) Credentials() *repository.Credentials {
	return &repository.Credentials{
		Host:              c.DBHost,
		Port:              c.DBPort,
		User:              c.DBUser,
		Password:          c.DBPassword,
		DBName:            c.DBName,
		SSLMode:           c.DBSSLMode,
		MigrationsDirPath: c.MigrationsPath,
	}
}
