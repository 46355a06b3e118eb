// Package config loads process configuration from PASSAGE_* environment
// variables with an optional YAML file underneath. Environment values win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"passage/pkg/admission"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/marker"
	pstrings "passage/pkg/platform/strings"
)

// EnvConfigFile names the YAML overlay file.
const EnvConfigFile = "PASSAGE_CONFIG"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
	Identity  IdentityConfig  `yaml:"identity"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Audit     AuditConfig     `yaml:"audit"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AdminToken      string        `yaml:"admin_token"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProtocolConfig configures markers issued by this process.
type ProtocolConfig struct {
	Origin             string `yaml:"origin"`
	ArrivalDestination string `yaml:"arrival_destination"`
	// ErrorExitType, when set, makes the process sign a departure when its
	// agent run fails.
	ErrorExitType  marker.ExitType `yaml:"error_exit_type"`
	RecentCapacity int             `yaml:"recent_capacity"`
	DefaultPolicy  string          `yaml:"default_policy"`
}

// IdentityConfig locates the signing identity. An empty path means an
// ephemeral identity for the life of the process.
type IdentityConfig struct {
	KeystorePath  string `yaml:"keystore_path"`
	PassphraseEnv string `yaml:"passphrase_env"`
}

// Passphrase reads the keystore passphrase from the configured variable.
func (c IdentityConfig) Passphrase() string {
	return os.Getenv(c.PassphraseEnv)
}

// RedisConfig configures the recent-marker log. Empty URL keeps it in memory.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	Key          string        `yaml:"key"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig configures the marker archive and audit store. Empty DSN
// keeps both in memory.
type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

// Enabled reports whether audit events are published to Kafka.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type RabbitMQConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// Enabled reports whether audit events are published to RabbitMQ.
func (c RabbitMQConfig) Enabled() bool { return c.URL != "" }

// AuditConfig tunes audit delivery.
type AuditConfig struct {
	// Buffer above zero publishes asynchronously through a queue of that size.
	Buffer           int `yaml:"buffer"`
	BreakerThreshold int `yaml:"breaker_threshold"`
}

// RateLimitConfig sets per-client request budgets for each route class.
// Windows are shared through Redis when it is configured.
type RateLimitConfig struct {
	Disabled bool          `yaml:"disabled"`
	Window   time.Duration `yaml:"window"`
	Signing  int           `yaml:"signing"`
	Verify   int           `yaml:"verify"`
	Read     int           `yaml:"read"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Protocol: ProtocolConfig{
			Origin:         "agent",
			RecentCapacity: 1000,
			DefaultPolicy:  admission.NameOpenDoor,
		},
		Identity: IdentityConfig{
			PassphraseEnv: "PASSAGE_KEYSTORE_PASSPHRASE",
		},
		Redis: RedisConfig{
			Key:          "passage:markers:recent",
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Kafka: KafkaConfig{
			Topic:    "passage.audit",
			ClientID: "passage",
		},
		RabbitMQ: RabbitMQConfig{
			Queue: "passage.audit",
		},
		Audit: AuditConfig{
			Buffer:           256,
			BreakerThreshold: 5,
		},
		RateLimit: RateLimitConfig{
			Window:  time.Minute,
			Signing: 10,
			Verify:  100,
			Read:    300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// FromEnv builds the configuration: defaults, then the YAML file named by
// PASSAGE_CONFIG, then PASSAGE_* variables.
func FromEnv() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path, ok := lookup(EnvConfigFile); ok && strings.TrimSpace(path) != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.overlayEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) overlayEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, key)
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, key)
				return
			}
			*dst = d
		}
	}

	str("PASSAGE_ADDR", &c.Server.Addr)
	str("PASSAGE_ADMIN_TOKEN", &c.Server.AdminToken)
	dur("PASSAGE_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	str("PASSAGE_ORIGIN", &c.Protocol.Origin)
	str("PASSAGE_ARRIVAL_DESTINATION", &c.Protocol.ArrivalDestination)
	if v, ok := lookup("PASSAGE_ERROR_EXIT_TYPE"); ok && v != "" {
		c.Protocol.ErrorExitType = marker.ExitType(v)
	}
	num("PASSAGE_RECENT_CAPACITY", &c.Protocol.RecentCapacity)
	str("PASSAGE_DEFAULT_POLICY", &c.Protocol.DefaultPolicy)

	str("PASSAGE_KEYSTORE_PATH", &c.Identity.KeystorePath)
	str("PASSAGE_KEYSTORE_PASSPHRASE_ENV", &c.Identity.PassphraseEnv)

	str("PASSAGE_REDIS_URL", &c.Redis.URL)
	str("PASSAGE_REDIS_KEY", &c.Redis.Key)
	num("PASSAGE_REDIS_POOL_SIZE", &c.Redis.PoolSize)

	str("PASSAGE_POSTGRES_DSN", &c.Postgres.DSN)
	num("PASSAGE_POSTGRES_MAX_OPEN_CONNS", &c.Postgres.MaxOpenConns)

	if v, ok := lookup("PASSAGE_KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = pstrings.SplitList(v)
	}
	str("PASSAGE_KAFKA_TOPIC", &c.Kafka.Topic)
	str("PASSAGE_RABBITMQ_URL", &c.RabbitMQ.URL)
	str("PASSAGE_RABBITMQ_QUEUE", &c.RabbitMQ.Queue)

	num("PASSAGE_AUDIT_BUFFER", &c.Audit.Buffer)
	num("PASSAGE_AUDIT_BREAKER_THRESHOLD", &c.Audit.BreakerThreshold)

	if v, ok := lookup("PASSAGE_RATE_LIMIT_DISABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, "PASSAGE_RATE_LIMIT_DISABLED")
		}
		c.RateLimit.Disabled = b
	}
	dur("PASSAGE_RATE_LIMIT_WINDOW", &c.RateLimit.Window)
	num("PASSAGE_RATE_LIMIT_SIGNING", &c.RateLimit.Signing)
	num("PASSAGE_RATE_LIMIT_VERIFY", &c.RateLimit.Verify)
	num("PASSAGE_RATE_LIMIT_READ", &c.RateLimit.Read)

	str("PASSAGE_LOG_LEVEL", &c.Logging.Level)
	str("PASSAGE_LOG_FORMAT", &c.Logging.Format)

	if len(errs) > 0 {
		return dErrors.Newf(dErrors.CodeValidation, "invalid values for %s", strings.Join(errs, ", "))
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return dErrors.New(dErrors.CodeValidation, "server addr is required")
	}
	if strings.TrimSpace(c.Protocol.Origin) == "" {
		return dErrors.New(dErrors.CodeValidation, "protocol origin is required")
	}
	if c.Protocol.RecentCapacity < 1 {
		return dErrors.New(dErrors.CodeValidation, "recent capacity must be positive")
	}
	if c.Protocol.ErrorExitType != "" && !c.Protocol.ErrorExitType.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unrecognized error exit type %q", c.Protocol.ErrorExitType)
	}
	if _, err := admission.Preset(c.Protocol.DefaultPolicy); err != nil {
		return dErrors.Newf(dErrors.CodeValidation, "default policy %q is not a preset", c.Protocol.DefaultPolicy)
	}
	if c.Identity.KeystorePath != "" && c.Identity.PassphraseEnv == "" {
		return dErrors.New(dErrors.CodeValidation, "a keystore needs a passphrase variable")
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return dErrors.New(dErrors.CodeValidation, "kafka topic is required")
	}
	if c.Audit.Buffer < 0 {
		return dErrors.New(dErrors.CodeValidation, "audit buffer must not be negative")
	}
	if !c.RateLimit.Disabled && c.RateLimit.Window <= 0 {
		return dErrors.New(dErrors.CodeValidation, "rate limit window must be positive")
	}
	return nil
}

