package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, CatalogBundled, cfg.Catalog.Source)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, "./var/state", cfg.Storage.Dir)
	assert.Equal(t, 5<<20, cfg.Storage.QuotaBytes)
	assert.Equal(t, BackendMemory, cfg.Orders.Backend)
	assert.Equal(t, 10, cfg.Checkout.RateLimit)
	assert.Equal(t, time.Minute, cfg.Checkout.RateWindow)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.NeedsDatabase())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EMART_PORT", "9090")
	t.Setenv("EMART_STORAGE_BACKEND", "memory")
	t.Setenv("EMART_CATALOG_LATENCY", "250ms")
	t.Setenv("EMART_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Catalog.Latency)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emart.yaml")
	yml := `
port: "7000"
log_level: debug
storage:
  backend: redis
  redis_url: redis://localhost:6379/0
orders:
  backend: postgres
database_url: postgres://emart@localhost/emart
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "emart:", cfg.Storage.RedisPrefix)
	assert.True(t, cfg.NeedsDatabase())
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emart.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7000\"\n"), 0o600))
	t.Setenv("EMART_PORT", "7001")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7001", cfg.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty port":          func(c *Config) { c.Port = "" },
		"unknown catalog":     func(c *Config) { c.Catalog.Source = "s3" },
		"dir without path":    func(c *Config) { c.Catalog.Source = CatalogDir },
		"http without url":    func(c *Config) { c.Catalog.Source = CatalogHTTP },
		"redis without url":   func(c *Config) { c.Storage.Backend = BackendRedis },
		"postgres without db": func(c *Config) { c.Storage.Backend = BackendPostgres },
		"unknown backend":     func(c *Config) { c.Storage.Backend = "localStorage" },
		"negative quota":      func(c *Config) { c.Storage.QuotaBytes = -1 },
		"orders without db":   func(c *Config) { c.Orders.Backend = BackendPostgres },
		"brokers no topic": func(c *Config) {
			c.Kafka.Brokers = []string{"k:9092"}
			c.Kafka.Topic = ""
		},
		"negative latency": func(c *Config) { c.Catalog.Latency = -time.Second },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)

			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Port = ""
	cfg.Storage.Backend = "nope"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port is required")
	assert.Contains(t, err.Error(), `unknown storage.backend "nope"`)
}

func TestLoad_InvalidEnvRejected(t *testing.T) {
	t.Setenv("EMART_ORDERS_BACKEND", "mongo")

	_, err := Load("")
	assert.ErrorContains(t, err, "orders.backend")
}
