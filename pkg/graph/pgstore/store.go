// ABOUTME: PostgreSQL quad store backed by pgxpool
// ABOUTME: Schema is managed by embedded golang-migrate migrations

package pgstore

import (
	"context"
	"crypto/sha256"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/nainya/typecatalog/pkg/graph"
	"github.com/nainya/typecatalog/pkg/rdf"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var _ graph.QuadStore = (*Store)(nil)

// Config holds connection settings
type Config struct {
	DSN             string // postgres:// URL
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	Migrate         bool
}

// DefaultConfig returns conservative pool settings
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		Migrate:         true,
	}
}

// Store keeps quads in a single table
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open connects, pings and optionally migrates
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Store, error) {
	if cfg.Migrate {
		if err := RunMigrations(cfg.DSN, log); err != nil {
			return nil, err
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, log: log}, nil
}

// RunMigrations applies the embedded migrations
func RunMigrations(dsn string, log zerolog.Logger) error {
	url, err := migrationURL(dsn)
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Quad store migrations applied")
	return nil
}

func migrationURL(dsn string) (string, error) {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "pgx5://" + strings.TrimPrefix(dsn, scheme), nil
		}
	}
	return "", fmt.Errorf("migrations need a postgres:// url, got %q", redact(dsn))
}

func redact(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		return "***" + dsn[at:]
	}
	return dsn
}

// Insert appends quads to graph in one transaction
func (s *Store) Insert(ctx context.Context, graphName string, quads []rdf.Quad) error {
	if len(quads) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		for _, q := range quads {
			q.Graph = graphName
			key := sha256.Sum256([]byte(rdf.QuadKey(q)))
			_, err := tx.Exec(ctx,
				`INSERT INTO quads (quad_key, graph, s_kind, s_value, p_value, o_kind, o_value, o_datatype, o_lang)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				 ON CONFLICT (quad_key) DO NOTHING`,
				key[:], graphName,
				int16(q.Subject.Kind), q.Subject.Value,
				q.Predicate.Value,
				int16(q.Object.Kind), q.Object.Value, q.Object.Datatype, q.Object.Lang,
			)
			if err != nil {
				return fmt.Errorf("failed to insert quad: %w", err)
			}
		}
		return nil
	})
}

// Match returns matching quads in insertion order
func (s *Store) Match(ctx context.Context, graphs []string, subj, pred, obj *rdf.Term) ([]rdf.Quad, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(graphs) > 0 {
		where = append(where, "graph = ANY("+arg(graphs)+")")
	}
	if subj != nil {
		where = append(where, "s_kind = "+arg(int16(subj.Kind)), "s_value = "+arg(subj.Value))
	}
	if pred != nil {
		if !pred.IsIRI() {
			return nil, nil
		}
		where = append(where, "p_value = "+arg(pred.Value))
	}
	if obj != nil {
		where = append(where,
			"o_kind = "+arg(int16(obj.Kind)),
			"o_value = "+arg(obj.Value),
			"o_datatype = "+arg(obj.Datatype),
			"o_lang = "+arg(obj.Lang),
		)
	}

	sql := `SELECT graph, s_kind, s_value, p_value, o_kind, o_value, o_datatype, o_lang FROM quads`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY id"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to match quads: %w", err)
	}
	defer rows.Close()

	var out []rdf.Quad
	for rows.Next() {
		var (
			q            rdf.Quad
			sKind, oKind int16
		)
		if err := rows.Scan(&q.Graph, &sKind, &q.Subject.Value, &q.Predicate.Value,
			&oKind, &q.Object.Value, &q.Object.Datatype, &q.Object.Lang); err != nil {
			return nil, fmt.Errorf("failed to scan quad: %w", err)
		}
		q.Subject.Kind = rdf.TermKind(sKind)
		q.Predicate.Kind = rdf.KindIRI
		q.Object.Kind = rdf.TermKind(oKind)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read quads: %w", err)
	}
	return out, nil
}

// DropGraph removes every quad in the graph
func (s *Store) DropGraph(ctx context.Context, graphName string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quads WHERE graph = $1`, graphName)
	if err != nil {
		return fmt.Errorf("failed to drop graph: %w", err)
	}
	s.log.Debug().Str("graph", graphName).Int64("rows", tag.RowsAffected()).Msg("Graph dropped")
	return nil
}

// Graphs lists graphs holding at least one quad, sorted
func (s *Store) Graphs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT graph FROM quads ORDER BY graph`)
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	graphs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	return graphs, nil
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.log.Error().Err(rbErr).Msg("Failed to rollback transaction")
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
