package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName        = "LodgePay"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultCurrency       = "USD"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultGatewayTimeout = 15 * time.Second
	defaultKafkaTopic     = "lodgepay.transactions"
	defaultConsumerGroup  = "lodgepay-payouts"
)

// Config captures application runtime configuration. Values come from a
// config file when one is present and from environment variables otherwise;
// environment variables win.
type Config struct {
	AppName        string        `mapstructure:"app_name"`
	AppEnv         string        `mapstructure:"app_env"`
	Port           string        `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	DatabaseURL    string        `mapstructure:"database_url"`
	RedisURL       string        `mapstructure:"redis_url"`
	Currency       string        `mapstructure:"currency"`
	ShutdownPeriod time.Duration `mapstructure:"shutdown_period"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`

	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Gateway GatewayConfig `mapstructure:"gateway"`

	// Bcrypt hash of the API key the booking system presents on
	// settlement endpoints. Empty disables the check (development only).
	BookingAPIKeyHash string `mapstructure:"booking_api_key_hash"`
}

// KafkaConfig describes the broker connection for the outbox relay and the
// payout consumer.
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

// GatewayConfig holds the external payment network credentials.
type GatewayConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Load reads configuration and validates the parts every environment needs.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("app_name", defaultAppName)
	v.SetDefault("app_env", defaultAppEnv)
	v.SetDefault("port", defaultPort)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("currency", defaultCurrency)
	v.SetDefault("shutdown_period", defaultShutdownDelay)
	v.SetDefault("idempotency_ttl", defaultIdempotencyTTL)
	v.SetDefault("kafka.topic", defaultKafkaTopic)
	v.SetDefault("kafka.consumer_group", defaultConsumerGroup)
	v.SetDefault("gateway.timeout", defaultGatewayTimeout)

	v.SetConfigName("lodgepay")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/lodgepay")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if brokers := v.GetString("kafka_brokers"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}

	if cfg.Production() {
		if err := cfg.validateProduction(); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func (c Config) validateProduction() error {
	switch {
	case c.DatabaseURL == "":
		return fmt.Errorf("database_url must be set")
	case c.RedisURL == "":
		return fmt.Errorf("redis_url must be set")
	case len(c.Kafka.Brokers) == 0:
		return fmt.Errorf("kafka brokers must be set")
	case c.Gateway.BaseURL == "" || c.Gateway.ClientID == "" || c.Gateway.ClientSecret == "":
		return fmt.Errorf("gateway credentials must be set")
	case c.BookingAPIKeyHash == "":
		return fmt.Errorf("booking_api_key_hash must be set")
	}
	return nil
}

// Production reports whether the app runs with real backing services.
func (c Config) Production() bool {
	return !strings.EqualFold(c.AppEnv, "development")
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
