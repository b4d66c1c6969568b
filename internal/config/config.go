// Package config loads type catalog configuration.
//
// Sources, later overriding earlier:
//  1. Default values
//  2. Configuration file (./config.yaml, ./configs/config.yaml, /etc/typecatalog/config.yaml)
//  3. Environment variables with the TC_ prefix, e.g. TC_SERVER_GRPC_PORT=50052
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nainya/typecatalog/pkg/apperr"
	"github.com/nainya/typecatalog/pkg/cache"
	"github.com/nainya/typecatalog/pkg/graph/pgstore"
	"github.com/nainya/typecatalog/pkg/rdf"
	"github.com/nainya/typecatalog/pkg/schema"
	"github.com/nainya/typecatalog/pkg/snapshot"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverJournal  = "journal"
	DriverPostgres = "postgres"
)

// Config is the root configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds listener settings
type ServerConfig struct {
	GRPCPort        int           `mapstructure:"grpc_port" validate:"min=1,max=65535"`
	MetricsPort     int           `mapstructure:"metrics_port" validate:"min=0,max=65535"` // 0 disables
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects and configures the quad store
type StoreConfig struct {
	Driver    string         `mapstructure:"driver" validate:"oneof=memory journal postgres"`
	Journal   JournalConfig  `mapstructure:"journal"`
	Postgres  PostgresConfig `mapstructure:"postgres"`
	SeedFiles []SeedFile     `mapstructure:"seed_files" validate:"dive"`
}

// JournalConfig locates the append-only file behind the journal driver
type JournalConfig struct {
	Path          string `mapstructure:"path"`
	CompactOnOpen bool   `mapstructure:"compact_on_open"`
}

// PostgresConfig holds pgxpool settings
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns" validate:"min=1"`
	MinConns        int32         `mapstructure:"min_conns" validate:"min=0"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	Migrate         bool          `mapstructure:"migrate"`
}

// SeedFile is loaded into a partition at startup
type SeedFile struct {
	Path   string `mapstructure:"path" validate:"required"`
	Graph  string `mapstructure:"graph" validate:"required,iri"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=nquads jsonld"`
}

// CatalogConfig holds snapshot and resolver settings
type CatalogConfig struct {
	ConfigurationGraph string       `mapstructure:"configuration_graph" validate:"required,iri"`
	SnapshotBase       string       `mapstructure:"snapshot_base" validate:"required,iri"`
	DefaultLanguage    string       `mapstructure:"default_language" validate:"required"`
	MaxNestingDepth    int          `mapstructure:"max_nesting_depth" validate:"min=1,max=64"`
	Roles              []RoleConfig `mapstructure:"roles" validate:"dive"`
}

// RoleConfig binds a role name to its snapshot predicate.
// Roles are a list because viper lower-cases map keys.
type RoleConfig struct {
	Name      string `mapstructure:"name" validate:"required"`
	Predicate string `mapstructure:"predicate" validate:"required,iri"`
}

// CacheConfig sizes the shared cache
type CacheConfig struct {
	Size int `mapstructure:"size" validate:"min=1"`
}

// LoggingConfig controls zerolog output
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
	Caller bool   `mapstructure:"caller"`
}

// Load reads configuration from cfgFile, or searches the standard locations
// when cfgFile is empty
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/typecatalog")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case cfgFile != "":
			return nil, fmt.Errorf("error reading config file: %w", err)
		case !errors.As(err, &notFound) && !isFileNotFoundError(err):
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("TC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_port", 50052)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.shutdown_timeout", "10s")

	pg := pgstore.DefaultConfig("")
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.journal.path", "./data/catalog.journal")
	v.SetDefault("store.journal.compact_on_open", false)
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.max_conns", pg.MaxConns)
	v.SetDefault("store.postgres.min_conns", pg.MinConns)
	v.SetDefault("store.postgres.max_conn_lifetime", pg.MaxConnLifetime)
	v.SetDefault("store.postgres.max_conn_idle_time", pg.MaxConnIdleTime)
	v.SetDefault("store.postgres.migrate", pg.Migrate)

	v.SetDefault("catalog.configuration_graph", "https://w3id.org/typecatalog/graphs/configuration")
	v.SetDefault("catalog.snapshot_base", "https://w3id.org/typecatalog/snapshots/")
	v.SetDefault("catalog.default_language", schema.DefaultLanguage)
	v.SetDefault("catalog.max_nesting_depth", schema.DefaultMaxNestingDepth)

	v.SetDefault("cache.size", cache.DefaultSize)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
	v.SetDefault("logging.caller", false)
}

// Validate checks struct rules and cross-field constraints
func (c *Config) Validate() error {
	if err := rdf.NewValidator().Struct(c); err != nil {
		return apperr.FromValidator("config", err)
	}
	if c.Store.Driver == DriverPostgres && c.Store.Postgres.DSN == "" {
		return apperr.Validation("store.postgres.dsn is required for the postgres driver")
	}
	if c.Store.Driver == DriverJournal && c.Store.Journal.Path == "" {
		return apperr.Validation("store.journal.path is required for the journal driver")
	}
	seen := make(map[string]struct{}, len(c.Catalog.Roles))
	for _, r := range c.Catalog.Roles {
		if _, dup := seen[r.Name]; dup {
			return apperr.Validation("duplicate role %q", r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	return nil
}

// SnapshotRoles returns the configured roles, or the built-in ones when none are set
func (c *CatalogConfig) SnapshotRoles() snapshot.Roles {
	if len(c.Roles) == 0 {
		return snapshot.DefaultRoles()
	}
	roles := make(snapshot.Roles, len(c.Roles))
	for _, r := range c.Roles {
		roles[r.Name] = r.Predicate
	}
	return roles
}

// PostgresStore converts the section into pgstore settings
func (c *StoreConfig) PostgresStore() pgstore.Config {
	return pgstore.Config{
		DSN:             c.Postgres.DSN,
		MaxConns:        c.Postgres.MaxConns,
		MinConns:        c.Postgres.MinConns,
		MaxConnLifetime: c.Postgres.MaxConnLifetime,
		MaxConnIdleTime: c.Postgres.MaxConnIdleTime,
		Migrate:         c.Postgres.Migrate,
	}
}

func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}
