package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("YTSOOB_DATABASE_DSN", "postgres://localhost/ytsoob")
	t.Setenv("YTSOOB_JWT_SECRET", "0123456789abcdef0123")
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("YTSOOB_HTTP_PORT", "9090")
	t.Setenv("YTSOOB_OUTBOX_MAX_RETRIES", "7")
	t.Setenv("YTSOOB_OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("YTSOOB_BUS_ENABLED", "false")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/ytsoob", cfg.Database.DSN)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.HTTP.Addr())
	assert.Equal(t, 7, cfg.Outbox.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Outbox.PollInterval)
	assert.False(t, cfg.Bus.Enabled)
	assert.Equal(t, "nameid", cfg.JWT.ActorClaim)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
}

func TestLoad_FileThenEnv(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  name: posts-api
  node_id: 12
cache:
  ttl: 1m
outbox:
  batch_size: 10
  worker_id: w-file
`), 0o600))
	t.Setenv("YTSOOB_OUTBOX_WORKER_ID", "w-env")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "posts-api", cfg.App.Name)
	assert.Equal(t, int64(12), cfg.App.NodeID)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 10, cfg.Outbox.BatchSize)
	assert.Equal(t, "w-env", cfg.Outbox.WorkerID)
	assert.Equal(t, "w-env", cfg.Outbox.Dispatcher().WorkerID)
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "alt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: 7070\n"), 0o600))
	t.Setenv(PathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.HTTP.Port)
}

func TestLoad_ValidationFailures(t *testing.T) {
	_, err := LoadFile("")
	require.Error(t, err, "dsn and secret are required")
	assert.Contains(t, err.Error(), "Database.DSN")

	setRequired(t)
	t.Setenv("YTSOOB_APP_NODE_ID", "5000")
	_, err = LoadFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NodeID")

	t.Setenv("YTSOOB_APP_NODE_ID", "1")
	t.Setenv("YTSOOB_OUTBOX_PUBLISH_TIMEOUT", "1m")
	_, err = LoadFile("")
	require.Error(t, err, "publish timeout must stay below the lease")

	t.Setenv("YTSOOB_OUTBOX_PUBLISH_TIMEOUT", "5s")
	t.Setenv("YTSOOB_APP_ENV", "production")
	t.Setenv("YTSOOB_LOG_DEVELOPMENT", "true")
	_, err = LoadFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.development")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.dsn", envKey("YTSOOB_DATABASE_DSN"))
	assert.Equal(t, "outbox.compress_threshold", envKey("YTSOOB_OUTBOX_COMPRESS_THRESHOLD"))
	assert.Equal(t, "standalone", envKey("YTSOOB_STANDALONE"))
}

func TestSectionConversions(t *testing.T) {
	cfg := Defaults()
	cfg.Database.DSN = "postgres://x"
	cfg.Bus.TopicPrefix = "ys"

	pool := cfg.Database.Pool("worker")
	assert.Equal(t, "postgres://x", pool.DSN)
	assert.Equal(t, "worker", pool.ApplicationName)
	assert.Equal(t, int32(25), pool.MaxConns)

	assert.Equal(t, "ys", cfg.Bus.NATS().TopicPrefix)
	assert.Equal(t, uint32(5), cfg.Bus.Breaker().FailureThreshold)
	assert.Equal(t, int64(10_000), cfg.Cache.QueryCache().MaxCost)
	assert.Equal(t, "service", firstKey(cfg.Log.Logger("server").Fields))
	cfg.Log.OutputPaths = []string{"stdout"}
	assert.Equal(t, []string{"stdout"}, cfg.Log.Logger("server").OutputPaths)
}

func firstKey(m map[string]any) string {
	for k := range m {
		return k
	}
	return ""
}
