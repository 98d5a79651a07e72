package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Copy     CopyConfig     `mapstructure:"copy"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Leads    []LeadConfig   `mapstructure:"leads"`
}

type ExchangeConfig struct {
	REST RESTConfig `mapstructure:"rest"`
	WS   WSConfig   `mapstructure:"ws"`
}

type RESTConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WSConfig struct {
	URL          string        `mapstructure:"url"`
	Channel      string        `mapstructure:"channel"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	ClientPing   bool          `mapstructure:"client_ping"`
}

// CopyConfig tunes the synchronization loop and order placement.
type CopyConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	NoiseThreshold  float64       `mapstructure:"noise_threshold"` // deltas at or below this are ignored
	Leverage        int           `mapstructure:"leverage"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"` // per exchange call
	RateLimit       float64       `mapstructure:"rate_limit"`   // signed requests per second per API key
	RateBurst       int           `mapstructure:"rate_burst"`
	ResetStepsDaily bool          `mapstructure:"reset_steps_daily"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LeadConfig describes one lead trader. In prod the *_param fields name
// SSM parameters that replace the inline key and secret.
type LeadConfig struct {
	ID             string `mapstructure:"id"`
	Name           string `mapstructure:"name"`
	APIKey         string `mapstructure:"api_key"`
	APISecret      string `mapstructure:"api_secret"`
	APIKeyParam    string `mapstructure:"api_key_param"`
	APISecretParam string `mapstructure:"api_secret_param"`
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	if dir := os.Getenv("COPYTRADER_CONFIG_DIR"); dir != "" {
		v.AddConfigPath(dir)
	}
	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		v.AddConfigPath(filepath.Join(pwd, "../../config"))
	} else {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}
	v.AddConfigPath("config")

	setDefaults(v)

	// Support environment variables with dot notation (e.g., COPY_POLL_INTERVAL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("exchange.rest.base_url", "https://api.coindcx.com")
	v.SetDefault("exchange.rest.timeout", 10*time.Second)
	v.SetDefault("exchange.ws.url", "wss://stream.coindcx.com/socket.io/?EIO=3&transport=websocket")
	v.SetDefault("exchange.ws.channel", "currentPrices@futures@rt")
	v.SetDefault("exchange.ws.ping_interval", 25*time.Second)
	v.SetDefault("exchange.ws.client_ping", true)

	v.SetDefault("copy.poll_interval", time.Second)
	v.SetDefault("copy.noise_threshold", 0.0001)
	v.SetDefault("copy.leverage", 10)
	v.SetDefault("copy.call_timeout", 10*time.Second)
	v.SetDefault("copy.rate_limit", 8.0)
	v.SetDefault("copy.rate_burst", 4)
	v.SetDefault("copy.reset_steps_daily", true)

	v.SetDefault("http.addr", ":5000")
	v.SetDefault("http.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.flush_interval", 5*time.Second)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "copytrader.fills")
}

// Validate rejects configurations the copy engine cannot run with.
func (c *Config) Validate() error {
	if c.Copy.PollInterval <= 0 {
		return fmt.Errorf("copy.poll_interval must be positive, got %s", c.Copy.PollInterval)
	}
	if c.Copy.NoiseThreshold < 0 {
		return fmt.Errorf("copy.noise_threshold must not be negative")
	}
	seen := make(map[string]bool, len(c.Leads))
	for i, l := range c.Leads {
		if l.ID == "" {
			return fmt.Errorf("leads[%d]: id is required", i)
		}
		if seen[l.ID] {
			return fmt.Errorf("leads[%d]: duplicate id %q", i, l.ID)
		}
		seen[l.ID] = true
	}
	if c.Postgres.Enabled && c.Postgres.FlushInterval <= 0 {
		return fmt.Errorf("postgres.flush_interval must be positive, got %s", c.Postgres.FlushInterval)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	return nil
}
