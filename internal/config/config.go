package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "COMANDA_"

// Config represents the application configuration
type Config struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	// Seed loads the default menu card into an empty database on start
	Seed     bool           `yaml:"seed"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Auth     AuthConfig     `yaml:"auth"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Receipt  ReceiptConfig  `yaml:"receipt"`
}

type DatabaseConfig struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	LogMode bool   `yaml:"log_mode"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// AuthConfig protects mutating routes with HMAC-signed JWTs. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// KafkaConfig enables order events on a topic when brokers are set
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	URLPath     string `yaml:"url_path"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

type ReceiptConfig struct {
	TaxRate float64 `yaml:"tax_rate"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Port:     8080,
		LogLevel: "info",
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "comanda.db",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Kafka: KafkaConfig{
			Topic: "orders.placed",
		},
		Tracing: TracingConfig{
			ServiceName: "comanda",
		},
		Receipt: ReceiptConfig{
			TaxRate: 0.19,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies a .env
// file and COMANDA_* environment variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	if c.Port, err = getEnvInt("PORT", c.Port); err != nil {
		return err
	}
	if c.Metrics.Port, err = getEnvInt("METRICS_PORT", c.Metrics.Port); err != nil {
		return err
	}
	if c.Seed, err = getEnvBool("SEED", c.Seed); err != nil {
		return err
	}
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_DSN", c.Database.DSN)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Tracing.Endpoint = getEnv("OTLP_ENDPOINT", c.Tracing.Endpoint)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Kafka.Brokers = nil
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Kafka.Brokers = append(c.Kafka.Brokers, b)
			}
		}
	}
	return nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port %d", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Port {
			return fmt.Errorf("metrics port %d collides with the API port", c.Port)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics path %q must start with /", c.Metrics.Path)
		}
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka topic is required when brokers are set")
	}
	if c.Receipt.TaxRate < 0 || c.Receipt.TaxRate >= 1 {
		return fmt.Errorf("tax rate %v must be in [0, 1)", c.Receipt.TaxRate)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s=%q: %w", envPrefix, key, v, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s%s=%q: %w", envPrefix, key, v, err)
	}
	return b, nil
}
