package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // chat-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Store struct {
	Backend string `yaml:"backend"` // postgres|redis|memory
}

type Postgres struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	Migrate  bool   `yaml:"migrate"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Translate struct {
	APIKey      string `yaml:"apiKey"`
	Endpoint    string `yaml:"endpoint"`
	Timeout     string `yaml:"timeout"`     // 15s
	MaxInFlight int    `yaml:"maxInFlight"` // параллельных запросов к API, 8
}

type Push struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type WS struct {
	PingEvery string `yaml:"pingEvery"` // 15s
}

type Chat struct {
	MaxMessageLen int `yaml:"maxMessageLen"`
}

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	Logging   Logging   `yaml:"logging"`
	Store     Store     `yaml:"store"`
	Postgres  Postgres  `yaml:"postgres"`
	Redis     Redis     `yaml:"redis"`
	Translate Translate `yaml:"translate"`
	Push      Push      `yaml:"push"`
	Kafka     Kafka     `yaml:"kafka"`
	WS        WS        `yaml:"ws"`
	Chat      Chat      `yaml:"chat"`
}

// LoadConfig reads CONFIG_PATH (default ./config/config.yaml). Variables
// from a .env file, if present, are loaded first and override the file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.Translate.APIKey = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "postgres"
	}
	switch c.Store.Backend {
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "messages.created"
	}
	if c.Translate.MaxInFlight <= 0 {
		c.Translate.MaxInFlight = 8
	}
	return nil
}

func (c *Config) TranslateTimeout() time.Duration {
	return parseDurationOr(15*time.Second, c.Translate.Timeout)
}

func (c *Config) PingEvery() time.Duration {
	return parseDurationOr(15*time.Second, c.WS.PingEvery)
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
