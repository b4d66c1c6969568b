package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/typecatalog/pkg/apperr"
	"github.com/nainya/typecatalog/pkg/snapshot"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 50052, cfg.Server.GRPCPort)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "en", cfg.Catalog.DefaultLanguage)
	assert.Equal(t, 8, cfg.Catalog.MaxNestingDepth)
	assert.Equal(t, 4096, cfg.Cache.Size)
	assert.Equal(t, snapshot.DefaultRoles(), cfg.Catalog.SnapshotRoles())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  grpc_port: 6000
catalog:
  default_language: de
  roles:
    - name: consumerGroup
      predicate: https://example.org/hasConsumerGroup
    - name: metadata
      predicate: https://example.org/hasMetadata
store:
  seed_files:
    - path: testdata/meta.nq
      graph: https://example.org/graphs/meta
`)
	t.Setenv("TC_CACHE_SIZE", "12")
	t.Setenv("TC_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Server.GRPCPort)
	assert.Equal(t, "de", cfg.Catalog.DefaultLanguage)
	assert.Equal(t, 12, cfg.Cache.Size)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Store.SeedFiles, 1)
	assert.Equal(t, "https://example.org/graphs/meta", cfg.Store.SeedFiles[0].Graph)

	roles := cfg.Catalog.SnapshotRoles()
	assert.Equal(t, "https://example.org/hasConsumerGroup", roles["consumerGroup"])
	assert.Len(t, roles, 2)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"bad port":           func(c *Config) { c.Server.GRPCPort = 70000 },
		"unknown driver":     func(c *Config) { c.Store.Driver = "sqlite" },
		"postgres no dsn":    func(c *Config) { c.Store.Driver = DriverPostgres },
		"journal no path": func(c *Config) {
			c.Store.Driver = DriverJournal
			c.Store.Journal.Path = ""
		},
		"relative graph iri": func(c *Config) { c.Catalog.ConfigurationGraph = "graphs/config" },
		"bad log level":      func(c *Config) { c.Logging.Level = "loud" },
		"duplicate role": func(c *Config) {
			c.Catalog.Roles = []RoleConfig{
				{Name: "metadata", Predicate: "https://example.org/a"},
				{Name: "metadata", Predicate: "https://example.org/b"},
			}
		},
		"role predicate not iri": func(c *Config) {
			c.Catalog.Roles = []RoleConfig{{Name: "metadata", Predicate: "hasMetadata"}}
		},
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation))
		})
	}
}

func TestPostgresStore(t *testing.T) {
	cfg := Default()
	cfg.Store.Postgres.DSN = "postgres://u:p@localhost/db"
	pg := cfg.Store.PostgresStore()
	assert.Equal(t, cfg.Store.Postgres.DSN, pg.DSN)
	assert.Equal(t, cfg.Store.Postgres.MaxConns, pg.MaxConns)
	assert.True(t, pg.Migrate)
}
