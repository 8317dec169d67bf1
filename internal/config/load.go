package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"ytsoob/internal/infrastructure/http/v1/middleware"
	"ytsoob/internal/messaging"
)

// EnvPrefix is stripped from environment variables; the first underscore
// after it separates section from key: YTSOOB_DATABASE_DSN -> database.dsn.
const EnvPrefix = "YTSOOB_"

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

// DefaultPaths are probed in order when PathEnvVar is unset.
var DefaultPaths = []string{"config.yaml", "config.yml", "/etc/ytsoob/config.yaml"}

// Defaults returns the configuration used before any file or env override.
func Defaults() *Config {
	return &Config{
		App: AppConfig{
			Name: "ytsoob",
			Env:  "development",
		},
		HTTP: HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 20 * time.Second,
			OperatorRole:    "admin",
		},
		Database: DatabaseConfig{
			MaxConns:        25,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
			Migrate:         true,
		},
		Log: LogConfig{
			Level: "info",
		},
		JWT: JWTConfig{
			ActorClaim: middleware.DefaultActorClaim,
		},
		Outbox: OutboxConfig{
			PollInterval:      2 * time.Second,
			BatchSize:         50,
			MaxRetries:        5,
			Lease:             30 * time.Second,
			PublishTimeout:    10 * time.Second,
			CompressThreshold: messaging.DefaultCompressThreshold,
		},
		Bus: BusConfig{
			Enabled:          true,
			URL:              "nats://127.0.0.1:4222",
			BreakerTimeout:   30 * time.Second,
			BreakerFailures:  5,
			BreakerHalfOpen:  1,
			BreakerResetTime: time.Minute,
		},
		Cache: CacheConfig{
			TTL:       5 * time.Minute,
			MaxCost:   10_000,
			Broadcast: true,
		},
	}
}

// Load builds the configuration from defaults, the first config file found
// and the environment, then validates it.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit file path; an empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
