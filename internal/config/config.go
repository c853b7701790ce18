package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/ispledger/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `mapstructure:"deployment" validate:"required"`
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Logging    LoggingConfig    `mapstructure:"logging" validate:"required"`
	Postgres   PostgresConfig   `mapstructure:"postgres" validate:"required"`
	Ledger     LedgerConfig     `mapstructure:"ledger" validate:"required"`
	Event      EventConfig      `mapstructure:"event" validate:"required"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required,oneof=local consumer billing_run"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"required"`
	User                   string `mapstructure:"user" validate:"required"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	// LockTimeout bounds the wait on the per-client allocation lock, ex "5s"
	LockTimeout string `mapstructure:"lock_timeout"`
}

// LedgerConfig holds the knobs of the billing ledger itself
type LedgerConfig struct {
	// AllocationMaxRetries bounds how many times an allocation is retried after losing a race
	AllocationMaxRetries uint64 `mapstructure:"allocation_max_retries" validate:"min=0,max=20"`
	// AllocationRetryMaxElapsed caps the total time spent retrying one allocation
	AllocationRetryMaxElapsed time.Duration `mapstructure:"allocation_retry_max_elapsed"`
	// BillingRunConcurrency is the number of subscriptions billed in parallel
	BillingRunConcurrency int `mapstructure:"billing_run_concurrency" validate:"min=1,max=256"`
	// BillingRunPeriod is the YYYY-MM period generated in billing_run mode, current month when empty
	BillingRunPeriod string `mapstructure:"billing_run_period"`
}

// EventConfig holds configuration for the ledger event bus
type EventConfig struct {
	PubSub               types.PubSubType `mapstructure:"pubsub" validate:"required,oneof=memory kafka"`
	PublishNotifications bool             `mapstructure:"publish_notifications"`
	NotificationTopic    string           `mapstructure:"notification_topic"`
	PoisonTopic          string           `mapstructure:"poison_topic"`
	MaxRetries           int              `mapstructure:"max_retries"`
	InitialInterval      time.Duration    `mapstructure:"initial_interval"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	ClientID      string   `mapstructure:"client_id"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// TTL of cached subscription reads
	TTL time.Duration `mapstructure:"ttl"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

func NewConfig() (*Configuration, error) {
	// a local .env feeds the ISPLEDGER_ variables below; it is optional
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ispledger")

	setDefaults(v)

	// ISPLEDGER_POSTGRES_HOST overrides postgres.host
	v.SetEnvPrefix("ISPLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 30)
	v.SetDefault("postgres.lock_timeout", "5s")
	v.SetDefault("ledger.allocation_max_retries", 5)
	v.SetDefault("ledger.allocation_retry_max_elapsed", "10s")
	v.SetDefault("ledger.billing_run_concurrency", 8)
	v.SetDefault("event.pubsub", string(types.MemoryPubSub))
	v.SetDefault("event.publish_notifications", true)
	v.SetDefault("event.notification_topic", "ledger.notifications")
	v.SetDefault("event.poison_topic", "ledger.poison")
	v.SetDefault("event.max_retries", 3)
	v.SetDefault("event.initial_interval", "500ms")
	v.SetDefault("kafka.consumer_group", "ispledger")
	v.SetDefault("kafka.client_id", "ispledger")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "1m")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "ispledger")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Event.PubSub == types.KafkaPubSub && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when event.pubsub is kafka")
	}
	return nil
}

// GetDefaultConfig returns a default configuration for tests and scripts
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Ledger: LedgerConfig{
			AllocationMaxRetries:      3,
			AllocationRetryMaxElapsed: 2 * time.Second,
			BillingRunConcurrency:     4,
		},
		Event: EventConfig{
			PubSub:            types.MemoryPubSub,
			NotificationTopic: "ledger.notifications",
			PoisonTopic:       "ledger.poison",
			MaxRetries:        3,
			InitialInterval:   100 * time.Millisecond,
		},
		Cache:   CacheConfig{Enabled: true, TTL: time.Minute},
		Metrics: MetricsConfig{Enabled: true, Namespace: "ispledger"},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

// GetLockTimeout parses LockTimeout, zero disables the timeout
func (c PostgresConfig) GetLockTimeout() time.Duration {
	d, err := time.ParseDuration(c.LockTimeout)
	if err != nil {
		return 0
	}
	return d
}
