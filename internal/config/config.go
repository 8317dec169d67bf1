// Package config loads process configuration from defaults, an optional
// YAML file and YTSOOB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"ytsoob/internal/infrastructure/bus"
	"ytsoob/internal/infrastructure/cache"
	"ytsoob/internal/infrastructure/http/v1/middleware"
	"ytsoob/internal/infrastructure/storage/postgres"
	"ytsoob/internal/messaging/outbox"
	"ytsoob/pkg/logger"
)

// Config is the root configuration shared by the server and the worker.
type Config struct {
	App      AppConfig      `koanf:"app"`
	HTTP     HTTPConfig     `koanf:"http"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	JWT      JWTConfig      `koanf:"jwt"`
	Outbox   OutboxConfig   `koanf:"outbox"`
	Bus      BusConfig      `koanf:"bus"`
	Cache    CacheConfig    `koanf:"cache"`
}

type AppConfig struct {
	Name string `koanf:"name" validate:"required"`
	Env  string `koanf:"env" validate:"oneof=development staging production"`
	// NodeID seeds the snowflake generator and must be unique per process.
	NodeID int64 `koanf:"node_id" validate:"gte=0,lte=1023"`
}

// IsProduction reports whether the process runs in production.
func (c AppConfig) IsProduction() bool { return c.Env == "production" }

type HTTPConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	OperatorRole    string        `koanf:"operator_role" validate:"required"`
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

type DatabaseConfig struct {
	DSN             string        `koanf:"dsn" validate:"required"`
	MaxConns        int32         `koanf:"max_conns" validate:"gte=0"`
	MinConns        int32         `koanf:"min_conns" validate:"gte=0"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
	// Migrate applies the embedded schema on startup.
	Migrate bool `koanf:"migrate"`
}

// Pool converts the section into a pool configuration.
func (c DatabaseConfig) Pool(appName string) postgres.PoolConfig {
	pc := postgres.DefaultPoolConfig(c.DSN)
	pc.ApplicationName = appName
	pc.MaxConns = c.MaxConns
	pc.MinConns = c.MinConns
	pc.MaxConnLifetime = c.MaxConnLifetime
	pc.MaxConnIdleTime = c.MaxConnIdleTime
	return pc
}

type LogConfig struct {
	Level       string `koanf:"level" validate:"oneof=debug info warn error"`
	Development bool     `koanf:"development"`
	OutputPaths []string `koanf:"output_paths"`
}

// Logger converts the section into a logger configuration.
func (c LogConfig) Logger(service string) logger.Config {
	return logger.Config{
		Level:       c.Level,
		Development: c.Development,
		OutputPaths: c.OutputPaths,
		Fields:      map[string]any{"service": service},
	}
}

type JWTConfig struct {
	Secret     string `koanf:"secret" validate:"required,min=16"`
	Issuer     string `koanf:"issuer"`
	ActorClaim string `koanf:"actor_claim" validate:"required"`
}

// Middleware converts the section into the token validator configuration.
func (c JWTConfig) Middleware() middleware.JWTConfig {
	return middleware.JWTConfig{Secret: c.Secret, Issuer: c.Issuer, ActorClaim: c.ActorClaim}
}

type OutboxConfig struct {
	PollInterval      time.Duration `koanf:"poll_interval" validate:"gt=0"`
	BatchSize         int           `koanf:"batch_size" validate:"gt=0,lte=1000"`
	MaxRetries        int           `koanf:"max_retries" validate:"gt=0"`
	Lease             time.Duration `koanf:"lease" validate:"gt=0"`
	PublishTimeout    time.Duration `koanf:"publish_timeout" validate:"gt=0,ltfield=Lease"`
	CompressThreshold int           `koanf:"compress_threshold" validate:"gte=0"`
	// WorkerID defaults to a random dispatcher name when empty.
	WorkerID string `koanf:"worker_id"`
}

// Dispatcher converts the section into a dispatcher configuration.
func (c OutboxConfig) Dispatcher() outbox.DispatcherConfig {
	dc := outbox.DefaultDispatcherConfig()
	if c.WorkerID != "" {
		dc.WorkerID = c.WorkerID
	}
	dc.PollInterval = c.PollInterval
	dc.BatchSize = c.BatchSize
	dc.MaxRetries = c.MaxRetries
	dc.Lease = c.Lease
	dc.PublishTimeout = c.PublishTimeout
	return dc
}

type BusConfig struct {
	// Enabled turns on the external NATS bus. When off, outbox-delivered
	// records are not claimed and stay queued.
	Enabled          bool          `koanf:"enabled"`
	URL              string        `koanf:"url" validate:"required_if=Enabled true"`
	TopicPrefix      string        `koanf:"topic_prefix"`
	JetStream        bool          `koanf:"jetstream"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
	BreakerFailures  uint32        `koanf:"breaker_failures" validate:"gt=0"`
	BreakerHalfOpen  uint32        `koanf:"breaker_half_open" validate:"gt=0"`
	BreakerResetTime time.Duration `koanf:"breaker_reset" validate:"gte=0"`
}

// NATS converts the section into a NATS publisher configuration.
func (c BusConfig) NATS() bus.NATSConfig {
	nc := bus.DefaultNATSConfig()
	nc.URL = c.URL
	if c.TopicPrefix != "" {
		nc.TopicPrefix = c.TopicPrefix
	}
	nc.JetStream = c.JetStream
	return nc
}

// Breaker converts the section into a circuit breaker configuration.
func (c BusConfig) Breaker() bus.BreakerConfig {
	bc := bus.DefaultBreakerConfig()
	bc.Timeout = c.BreakerTimeout
	bc.FailureThreshold = c.BreakerFailures
	bc.MaxRequests = c.BreakerHalfOpen
	bc.Interval = c.BreakerResetTime
	return bc
}

type CacheConfig struct {
	TTL     time.Duration `koanf:"ttl" validate:"gt=0"`
	MaxCost int64         `koanf:"max_cost" validate:"gt=0"`
	// Broadcast fans invalidations out to other instances through NOTIFY.
	Broadcast bool `koanf:"broadcast"`
}

// QueryCache converts the section into a query cache configuration.
func (c CacheConfig) QueryCache() cache.Config {
	return cache.Config{MaxCost: c.MaxCost, DefaultTTL: c.TTL}
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.App.IsProduction() && c.Log.Development {
		return fmt.Errorf("invalid configuration: log.development must be off in production")
	}
	return nil
}
