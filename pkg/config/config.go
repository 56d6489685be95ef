package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SlowRequest     time.Duration `yaml:"slow_request"`
		AllowOrigins    []string      `yaml:"allow_origins"`
		RateLimit       struct {
			Enabled bool    `yaml:"enabled"`
			RPS     float64 `yaml:"rps"`
			Burst   int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level        string        `yaml:"level"`
		Format       string        `yaml:"format"`
		Output       string        `yaml:"output"`
		CollectTopic string        `yaml:"collect_topic"`
		CollectEvery time.Duration `yaml:"collect_interval"`
	} `yaml:"logging"`
	Store struct {
		Backend string `yaml:"backend"`
		Tables  struct {
			Facts     string `yaml:"facts"`
			Products  string `yaml:"products"`
			Countries string `yaml:"countries"`
		} `yaml:"tables"`
	} `yaml:"store"`
	Postgres struct {
		DSN             string        `yaml:"dsn"`
		MaxConns        int32         `yaml:"max_conns"`
		MinConns        int32         `yaml:"min_conns"`
		MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
		ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	} `yaml:"postgres"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		MaxResultRows    int           `yaml:"max_result_rows"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		RequestsTopic string   `yaml:"requests_topic"`
		ResultsTopic  string   `yaml:"results_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Forecast struct {
		Backend     string        `yaml:"backend"`
		RemoteURL   string        `yaml:"remote_url"`
		Timeout     time.Duration `yaml:"timeout"`
		Attempts    int           `yaml:"attempts"`
		FitTimeout  time.Duration `yaml:"fit_timeout"`
		MaxHorizon  int           `yaml:"max_horizon"`
		Uncertainty string        `yaml:"uncertainty"`
		Samples     int           `yaml:"samples"`
		Seed        uint64        `yaml:"seed"`
	} `yaml:"forecast"`
	Catalog struct {
		TTL       time.Duration `yaml:"ttl"`
		MemoryTTL time.Duration `yaml:"memory_ttl"`
	} `yaml:"catalog"`
	Dispatcher struct {
		Workers   int `yaml:"workers"`
		QueueSize int `yaml:"queue_size"`
	} `yaml:"dispatcher"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("FORECAST_BACKEND"); v != "" {
		c.Forecast.Backend = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	// Overrides may have broken an otherwise valid file.
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Store.Tables.Facts == "" {
		c.Store.Tables.Facts = "stg.skfo"
	}
	if c.Store.Tables.Products == "" {
		c.Store.Tables.Products = "stg.tnveds"
	}
	if c.Store.Tables.Countries == "" {
		c.Store.Tables.Countries = "stg.countries"
	}
	if c.Kafka.RequestsTopic == "" {
		c.Kafka.RequestsTopic = "forecast.requests"
	}
	if c.Kafka.ResultsTopic == "" {
		c.Kafka.ResultsTopic = "forecast.results"
	}
	if c.Forecast.Backend == "" {
		c.Forecast.Backend = "local"
	}
	if c.Forecast.FitTimeout == 0 {
		c.Forecast.FitTimeout = 30 * time.Second
	}
	if c.Forecast.MaxHorizon == 0 {
		c.Forecast.MaxHorizon = 24
	}
	if c.Forecast.Uncertainty == "" {
		c.Forecast.Uncertainty = "analytic"
	}
	if c.Catalog.TTL == 0 {
		c.Catalog.TTL = time.Hour
	}
	if c.Dispatcher.Workers == 0 {
		c.Dispatcher.Workers = 4
	}
	if c.Dispatcher.QueueSize == 0 {
		c.Dispatcher.QueueSize = 64
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Store.Backend {
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required when store.backend is 'postgres'")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when store.backend is 'clickhouse'")
		}
	default:
		return fmt.Errorf("store.backend must be 'postgres' or 'clickhouse', got '%s'", c.Store.Backend)
	}
	switch c.Forecast.Backend {
	case "local":
	case "remote":
		if c.Forecast.RemoteURL == "" {
			return fmt.Errorf("forecast.remote_url is required when forecast.backend is 'remote'")
		}
	default:
		return fmt.Errorf("forecast.backend must be 'local' or 'remote', got '%s'", c.Forecast.Backend)
	}
	if c.Forecast.Uncertainty != "analytic" && c.Forecast.Uncertainty != "sampled" {
		return fmt.Errorf("forecast.uncertainty must be 'analytic' or 'sampled', got '%s'", c.Forecast.Uncertainty)
	}
	if c.Forecast.MaxHorizon < 1 {
		return fmt.Errorf("forecast.max_horizon must be positive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Dispatcher.Workers < 1 || c.Dispatcher.QueueSize < 1 {
		return fmt.Errorf("dispatcher.workers and dispatcher.queue_size must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
