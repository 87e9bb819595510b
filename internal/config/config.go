package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Broker    BrokerConfig    `mapstructure:"broker" validate:"required"`
	Service   ServiceConfig   `mapstructure:"service" validate:"required"`
	Realtime  RealtimeConfig  `mapstructure:"realtime" validate:"required"`
	Consumers ConsumersConfig `mapstructure:"consumers"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int      `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string   `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`
	AllowedOrigins         []string `mapstructure:"allowed_origins"`
}

// ShutdownTimeout returns the graceful shutdown budget as a duration.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL                    string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" validate:"gt=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"gt=0"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

// Broker drivers.
const (
	BrokerMemory = "memory"
	BrokerRedis  = "redis"
	BrokerKafka  = "kafka"
)

// BrokerConfig selects and configures the pub/sub transport.
type BrokerConfig struct {
	Driver              string   `mapstructure:"driver" validate:"required,oneof=memory redis kafka"`
	RedisURL            string   `mapstructure:"redis_url" validate:"required_if=Driver redis"`
	KafkaBrokers        []string `mapstructure:"kafka_brokers" validate:"required_if=Driver kafka"`
	ConsumerGroupPrefix string   `mapstructure:"consumer_group_prefix" validate:"required"`
	PubSubName          string   `mapstructure:"pubsub_name" validate:"required"`
	RetryBaseMs         int      `mapstructure:"retry_base_ms" validate:"gt=0"`
	RetryMaxMs          int      `mapstructure:"retry_max_ms" validate:"gt=0,gtefield=RetryBaseMs"`
	RedisClaimIdleSecs  int      `mapstructure:"redis_claim_idle_seconds" validate:"gt=0"`
}

// RetryBase returns the initial redelivery backoff.
func (c BrokerConfig) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseMs) * time.Millisecond
}

// RetryMax returns the cap applied to redelivery backoff.
func (c BrokerConfig) RetryMax() time.Duration {
	return time.Duration(c.RetryMaxMs) * time.Millisecond
}

// RedisClaimIdle returns how long a Redis stream entry may stay pending with
// another consumer before it is claimed.
func (c BrokerConfig) RedisClaimIdle() time.Duration {
	return time.Duration(c.RedisClaimIdleSecs) * time.Second
}

// ServiceConfig identifies this process on outbound events.
type ServiceConfig struct {
	Name string `mapstructure:"name" validate:"required"`
}

// RealtimeConfig configures websocket fan-out.
type RealtimeConfig struct {
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds" validate:"gt=0"`
}

// WriteTimeout returns the per-push write deadline.
func (c RealtimeConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// ConsumersConfig toggles individual event consumers.
type ConsumersConfig struct {
	Audit        bool `mapstructure:"audit"`
	Recurrence   bool `mapstructure:"recurrence"`
	Reminder     bool `mapstructure:"reminder"`
	Notification bool `mapstructure:"notification"`
	Realtime     bool `mapstructure:"realtime"`
}
