// ABOUTME: Wires the quad store, cache, snapshot store and resolver from config
// ABOUTME: Shared by the server and the local CLI commands

package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nainya/typecatalog/internal/config"
	"github.com/nainya/typecatalog/internal/logger"
	"github.com/nainya/typecatalog/internal/metrics"
	"github.com/nainya/typecatalog/internal/server"
	"github.com/nainya/typecatalog/pkg/cache"
	"github.com/nainya/typecatalog/pkg/graph"
	"github.com/nainya/typecatalog/pkg/graph/journal"
	"github.com/nainya/typecatalog/pkg/graph/memstore"
	"github.com/nainya/typecatalog/pkg/graph/pgstore"
	"github.com/nainya/typecatalog/pkg/rdf"
	"github.com/nainya/typecatalog/pkg/rdf/rdfio"
	"github.com/nainya/typecatalog/pkg/schema"
	"github.com/nainya/typecatalog/pkg/snapshot"
)

// App holds the wired components
type App struct {
	Config    *config.Config
	Log       *logger.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Store     graph.QuadStore
	Engine    *graph.Engine
	Cache     *cache.LRU
	Snapshots *snapshot.Store
	Resolver  *schema.Resolver

	ping func(ctx context.Context) error
}

// queryRecorder feeds graph queries to metrics and the per-kind query log
type queryRecorder struct {
	metrics *metrics.Metrics
	log     *logger.Logger
}

func (r queryRecorder) RecordQuery(kind string, duration time.Duration, rows int, err error) {
	r.metrics.RecordQuery(kind, duration, rows, err)
	r.log.QueryLogger(kind).LogQuery(duration, rows, err)
}

// New opens the configured store, loads seed files and builds the services
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Metrics:  m,
	}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pg, err := pgstore.Open(ctx, cfg.Store.PostgresStore(), log.Component("pgstore").Zerolog())
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		a.Store = pg
		a.ping = pg.Ping
	case config.DriverJournal:
		js, err := journal.Open(cfg.Store.Journal.Path, log.Component("journal").Zerolog())
		if err != nil {
			return nil, fmt.Errorf("failed to open journal store: %w", err)
		}
		if cfg.Store.Journal.CompactOnOpen {
			if err := js.Compact(ctx); err != nil {
				js.Close()
				return nil, fmt.Errorf("failed to compact journal: %w", err)
			}
		}
		a.Store = js
	default:
		a.Store = memstore.New()
	}

	a.Engine = graph.NewEngine(a.Store, graph.WithRecorder(queryRecorder{metrics: m, log: log}))

	lru, err := cache.NewLRU(cfg.Cache.Size, m)
	if err != nil {
		a.Store.Close()
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	a.Cache = lru

	a.Snapshots, err = snapshot.NewStore(a.Engine, a.Store, lru, snapshot.Config{
		ConfigurationGraph: cfg.Catalog.ConfigurationGraph,
		SnapshotBase:       cfg.Catalog.SnapshotBase,
		Roles:              cfg.Catalog.SnapshotRoles(),
	},
		snapshot.WithLogger(log.Component("snapshot").Zerolog()),
		snapshot.WithRecorder(m),
	)
	if err != nil {
		a.Store.Close()
		return nil, err
	}

	a.Resolver = schema.NewResolver(a.Snapshots, a.Engine,
		schema.WithLanguage(cfg.Catalog.DefaultLanguage),
		schema.WithMaxNestingDepth(cfg.Catalog.MaxNestingDepth),
		schema.WithLogger(log.Component("schema").Zerolog()),
		schema.WithRecorder(m),
	)

	for _, seed := range cfg.Store.SeedFiles {
		n, err := a.LoadFile(ctx, seed.Path, seed.Graph, seed.Format, false)
		if err != nil {
			a.Store.Close()
			return nil, fmt.Errorf("failed to load seed file %s: %w", seed.Path, err)
		}
		log.Info("Seed file loaded").Str("path", seed.Path).Str("graph", seed.Graph).Int("quads", n).Send()
	}

	return a, nil
}

// Server returns the gRPC service implementation over this app
func (a *App) Server() *server.Server {
	return server.NewServer(a.Snapshots, a.Resolver, a.Cache, a.Log)
}

// LoadFile reads an RDF file into graphName. Named graphs in the file keep
// their names; replace drops every target graph first.
func (a *App) LoadFile(ctx context.Context, path, graphName, format string, replace bool) (int, error) {
	if err := rdf.ValidateIRI("graph", graphName); err != nil {
		return 0, err
	}
	f, err := rdfio.ParseFormat(format)
	if err != nil {
		return 0, err
	}
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	quads, err := rdfio.Read(file, f, graphName)
	if err != nil {
		return 0, err
	}
	return a.Load(ctx, quads, replace)
}

// Load inserts quads grouped by graph and clears the cache
func (a *App) Load(ctx context.Context, quads []rdf.Quad, replace bool) (int, error) {
	byGraph := make(map[string][]rdf.Quad)
	for _, q := range quads {
		byGraph[q.Graph] = append(byGraph[q.Graph], q)
	}
	names := make([]string, 0, len(byGraph))
	for name := range byGraph {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if replace {
			if err := a.Store.DropGraph(ctx, name); err != nil {
				return 0, fmt.Errorf("failed to drop graph %s: %w", name, err)
			}
		}
		if err := a.Store.Insert(ctx, name, byGraph[name]); err != nil {
			return 0, fmt.Errorf("failed to insert into graph %s: %w", name, err)
		}
	}
	cleared := a.Cache.Len()
	a.Cache.ClearAll()
	a.Log.CacheLogger().Debug("Cache cleared after load").
		Int("entries", cleared).
		Int("quads", len(quads)).
		Send()
	return len(quads), nil
}

// Ready reports whether the store is reachable
func (a *App) Ready(ctx context.Context) error {
	if a.ping == nil {
		return nil
	}
	return a.ping(ctx)
}

// Close releases the store
func (a *App) Close() error {
	return a.Store.Close()
}
