package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"dev" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled       bool          `yaml:"enabled" default:"true"`
		SlowThreshold time.Duration `yaml:"slow_threshold" default:"1s"`
	} `yaml:"metrics"`
	Vendor     Vendor     `yaml:"vendor"`
	Infra      Infra      `yaml:"infra"`
	Redis      Redis      `yaml:"redis"`
	Kafka      Kafka      `yaml:"kafka"`
	ClickHouse ClickHouse `yaml:"clickhouse"`
}

// Vendor configures the model-side role: /infer, the outbound writer and the heartbeat emitter.
type Vendor struct {
	Enabled      bool   `yaml:"enabled" default:"true"`
	Task         string `yaml:"task" default:"signal" validate:"oneof=signal consensus optimizer"`
	VendorID     string `yaml:"vendor_id"`
	DeploymentID string `yaml:"deployment_id"`
	ModelID      string `yaml:"model_id"`
	Owner        string `yaml:"owner"`
	ModelVersion string `yaml:"model_version" default:"1.0.0" validate:"required"`

	// SignalsURL receives decision writes. Empty disables the writer.
	SignalsURL string `yaml:"signals_url" validate:"omitempty,url"`
	// APIURL hosts the heartbeat endpoint. Empty disables the emitter.
	APIURL string `yaml:"api_url" validate:"omitempty,url"`
	Token  string `yaml:"token"`

	// ModelURL points at an external model service; empty uses the built-in model for Task.
	ModelURL      string        `yaml:"model_url" validate:"omitempty,url"`
	ModelTimeout  time.Duration `yaml:"model_timeout" default:"3s"`
	ModelAttempts int           `yaml:"model_attempts" default:"2" validate:"gte=1"`

	LegacyFormat      bool          `yaml:"legacy_format"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" default:"30s" validate:"gt=0"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout" default:"5s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" default:"10s"`
	DrainTimeout      time.Duration `yaml:"drain_timeout" default:"10s"`
}

// Infra configures the receiving role.
type Infra struct {
	Enabled   bool          `yaml:"enabled"`
	Tokens    []string      `yaml:"tokens"`
	DedupTTL  time.Duration `yaml:"dedup_ttl" default:"10m" validate:"gt=0"`
	RateLimit struct {
		Capacity     float64 `yaml:"capacity" default:"120"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"2"`
	} `yaml:"rate_limit"`
}

type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"vendorlink"`
}

type Kafka struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers"`
	Topic          string   `yaml:"topic" default:"marketplace.decisions"`
	HeartbeatTopic string   `yaml:"heartbeat_topic"`
	RequiredAcks   int      `yaml:"required_acks" default:"-1"`
	Compression    string   `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
	Producer       struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"vendorlink-heartbeats"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"64"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic   string        `yaml:"dlq_topic"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		// AutoOffsetReset applies when the group has no committed offset.
		AutoOffsetReset string `yaml:"auto_offset_reset" default:"earliest" validate:"oneof=earliest latest"`
	} `yaml:"consumer"`
}

type ClickHouse struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"marketplace"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert" default:"true"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

var validate = validator.New()

// Default returns a config with every default applied and nothing read from disk or env.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file. A missing path yields defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML, then .env, then overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from lookup, which is os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("MODEL_VERSION", &c.Vendor.ModelVersion)
	str("VENDOR_ID", &c.Vendor.VendorID)
	str("DEPLOYMENT_ID", &c.Vendor.DeploymentID)
	str("MODEL_ID", &c.Vendor.ModelID)
	str("OWNER", &c.Vendor.Owner)
	str("MODEL_URL", &c.Vendor.ModelURL)
	str("TASK", &c.Vendor.Task)
	str("INFRA_SIGNALS_URL", &c.Vendor.SignalsURL)
	str("MARKETPLACE_API_URL", &c.Vendor.APIURL)
	str("MARKETPLACE_TOKEN", &c.Vendor.Token)
	str("HOST", &c.Server.Host)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("HEARTBEAT_INTERVAL"); ok && v != "" {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("HEARTBEAT_INTERVAL: %w", err)
		}
		c.Vendor.HeartbeatInterval = d
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		host, port, found := strings.Cut(v, ":")
		c.Redis.Host = host
		if found {
			p, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("REDIS_ADDR: %w", err)
			}
			c.Redis.Port = p
		}
		c.Redis.Enabled = true
	}
	if v, ok := lookup("INFRA_TOKENS"); ok && v != "" {
		c.Infra.Tokens = strings.Split(v, ",")
	}
	return nil
}

// parseInterval accepts a Go duration ("30s") or bare milliseconds ("30000").
func parseInterval(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if !c.Vendor.Enabled && !c.Infra.Enabled {
		return fmt.Errorf("at least one of vendor.enabled or infra.enabled must be set")
	}
	return nil
}

// WriterEnabled reports whether outbound decision writes have a destination and credential.
func (v Vendor) WriterEnabled() bool {
	return v.SignalsURL != "" && v.Token != ""
}

// HeartbeatEnabled reports whether heartbeats have an endpoint, credential and deployment id.
func (v Vendor) HeartbeatEnabled() bool {
	return v.APIURL != "" && v.Token != "" && v.DeploymentID != ""
}
