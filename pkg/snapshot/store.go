// ABOUTME: Append-only configuration snapshot store
// ABOUTME: Latest/by-id/as-of lookups and role to partition resolution, cached

package snapshot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nainya/typecatalog/pkg/apperr"
	"github.com/nainya/typecatalog/pkg/cache"
	"github.com/nainya/typecatalog/pkg/graph"
	"github.com/nainya/typecatalog/pkg/rdf"
)

// Cache keys
const (
	keyLatest     = "latest"
	keyHistory    = "history"
	keyPartitions = "partitions"
	latestMarker  = "latest"
)

// MultiplePartitionsMessage is the business rule reported by ResolveSinglePartition
const MultiplePartitionsMessage = "Multiple graphs found, which is not allowed."

// Config describes where snapshots live
type Config struct {
	ConfigurationGraph string `validate:"required,iri"`
	SnapshotBase       string `validate:"required,iri"`
	Roles              Roles  `validate:"required,min=1,dive,keys,required,endkeys,iri"`
}

// Recorder receives snapshot observations
type Recorder interface {
	RecordSnapshotCreated()
	RecordTemporalLookup(found bool)
}

// Option configures a Store
type Option func(*Store)

// WithInvalidator replaces the cache as the invalidation target
func WithInvalidator(inv cache.Invalidator) Option {
	return func(s *Store) {
		s.invalidator = inv
	}
}

// WithClock sets the time source used for start times
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator sets the suffix generator appended to the snapshot base
func WithIDGenerator(next func() string) Option {
	return func(s *Store) {
		s.newID = next
	}
}

// WithLogger sets the store logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// WithRecorder wires snapshot metrics
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// Store manages configuration snapshots
type Store struct {
	exec        graph.Executor
	writer      graph.Writer
	cache       cache.Cache
	invalidator cache.Invalidator
	cfg         Config
	byPredicate map[string]string
	validate    *validator.Validate
	now         func() time.Time
	newID       func() string
	log         zerolog.Logger
	recorder    Recorder
}

// NewStore creates a snapshot store reading through exec and appending through writer
func NewStore(exec graph.Executor, writer graph.Writer, c cache.Cache, cfg Config, opts ...Option) (*Store, error) {
	if c == nil {
		c = cache.Nop{}
	}
	if len(cfg.Roles) == 0 {
		cfg.Roles = DefaultRoles()
	}

	v := rdf.NewValidator()
	if err := v.Struct(cfg); err != nil {
		return nil, apperr.FromValidator("snapshot store config", err)
	}

	s := &Store{
		exec:        exec,
		writer:      writer,
		cache:       c,
		invalidator: c,
		cfg:         cfg,
		byPredicate: make(map[string]string, len(cfg.Roles)),
		validate:    v,
		now:         time.Now,
		newID:       uuid.NewString,
		log:         zerolog.Nop(),
	}
	for role, pred := range cfg.Roles {
		s.byPredicate[pred] = role
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Roles returns the configured role names, sorted
func (s *Store) Roles() []string {
	return s.cfg.Roles.Names()
}

// CreateSnapshot clears the cache and appends a new snapshot starting now
func (s *Store) CreateSnapshot(ctx context.Context, partitionsByRole map[string][]string, editorialNote string) (string, error) {
	req := CreateRequest{PartitionsByRole: partitionsByRole, EditorialNote: editorialNote}
	if err := s.validate.Struct(req); err != nil {
		return "", apperr.FromValidator("snapshot payload", err)
	}
	for role := range partitionsByRole {
		if _, ok := s.cfg.Roles[role]; !ok {
			return "", apperr.Validation("unknown role %q (known: %s)", role, strings.Join(s.Roles(), ", "))
		}
	}

	id := s.cfg.SnapshotBase + s.newID()
	start := s.now().UTC()
	subject := rdf.IRI(id)

	quads := []rdf.Quad{
		{Subject: subject, Predicate: rdf.IRI(rdf.RDFType), Object: rdf.IRI(rdf.CatConfigurationSnapshot)},
		{Subject: subject, Predicate: rdf.IRI(rdf.CatStartTime), Object: rdf.TypedLiteral(start.Format(time.RFC3339Nano), rdf.XSDDateTime)},
	}
	if editorialNote != "" {
		quads = append(quads, rdf.Quad{Subject: subject, Predicate: rdf.IRI(rdf.CatEditorialNote), Object: rdf.Literal(editorialNote)})
	}
	for _, role := range sortedKeys(partitionsByRole) {
		pred := rdf.IRI(s.cfg.Roles[role])
		for _, partition := range dedupSorted(partitionsByRole[role]) {
			quads = append(quads, rdf.Quad{Subject: subject, Predicate: pred, Object: rdf.IRI(partition)})
		}
	}

	// Clear first, then append. A reader in between may recompute from the
	// previous history.
	s.invalidator.ClearAll()
	if err := s.writer.Insert(ctx, s.cfg.ConfigurationGraph, quads); err != nil {
		return "", fmt.Errorf("failed to append snapshot: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordSnapshotCreated()
	}
	s.log.Info().Str("snapshot_id", id).Time("start_time", start).Int("roles", len(partitionsByRole)).Msg("Configuration snapshot created")
	return id, nil
}

// UpdateSnapshot always fails: history is append-only
func (s *Store) UpdateSnapshot(context.Context, string, map[string][]string, string) error {
	return apperr.Unsupported("configuration snapshots cannot be updated")
}

// DeleteSnapshot always fails: history is append-only
func (s *Store) DeleteSnapshot(context.Context, string) error {
	return apperr.Unsupported("configuration snapshots cannot be deleted")
}

// GetLatestSnapshot returns the snapshot with the greatest start time
func (s *Store) GetLatestSnapshot(ctx context.Context) (*ConfigurationSnapshot, error) {
	return cache.GetOrAdd(s.cache, keyLatest, func() (*ConfigurationSnapshot, error) {
		all, err := s.load(ctx, "")
		if err != nil {
			return nil, err
		}
		if len(all) == 0 {
			return nil, apperr.NotFound("no configuration snapshot exists")
		}
		latest := all[0]
		for _, snap := range all[1:] {
			if newer(snap, latest) {
				latest = snap
			}
		}
		return latest, nil
	})
}

// GetHistoryOverview returns every snapshot, newest first
func (s *Store) GetHistoryOverview(ctx context.Context) ([]SnapshotOverview, error) {
	return cache.GetOrAdd(s.cache, keyHistory, func() ([]SnapshotOverview, error) {
		all, err := s.load(ctx, "")
		if err != nil {
			return nil, err
		}
		if len(all) == 0 {
			return nil, apperr.NotFound("no configuration snapshot exists")
		}
		sort.SliceStable(all, func(i, j int) bool { return newer(all[i], all[j]) })

		out := make([]SnapshotOverview, 0, len(all))
		for _, snap := range all {
			var flat []string
			for _, parts := range snap.PartitionsByRole {
				flat = append(flat, parts...)
			}
			out = append(out, SnapshotOverview{
				ID:            snap.ID,
				StartTime:     snap.StartTime,
				EditorialNote: snap.EditorialNote,
				Partitions:    dedupSorted(flat),
			})
		}
		return out, nil
	})
}

// GetSnapshotByID looks up one snapshot; not cached
func (s *Store) GetSnapshotByID(ctx context.Context, id string) (*ConfigurationSnapshot, error) {
	if err := rdf.ValidateIRI("snapshot id", id); err != nil {
		return nil, err
	}
	found, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, apperr.NotFound("configuration snapshot %s not found", id)
	}
	return found[0], nil
}

// GetSnapshotAsOf returns the snapshot that was current at t
func (s *Store) GetSnapshotAsOf(ctx context.Context, t time.Time) (*ConfigurationSnapshot, error) {
	history, err := s.GetHistoryOverview(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range history {
		if !entry.StartTime.After(t) {
			if s.recorder != nil {
				s.recorder.RecordTemporalLookup(true)
			}
			return s.GetSnapshotByID(ctx, entry.ID)
		}
	}
	if s.recorder != nil {
		s.recorder.RecordTemporalLookup(false)
	}
	return nil, apperr.NotFound("no configuration snapshot was active at %s", t.UTC().Format(time.RFC3339))
}

// ResolvePartitions returns the partitions assigned to role by the given
// snapshot, or by the latest one when snapshotID is empty. A blank role
// yields nil without error.
func (s *Store) ResolvePartitions(ctx context.Context, role, snapshotID string) ([]string, error) {
	if strings.TrimSpace(role) == "" {
		return nil, nil
	}
	if _, ok := s.cfg.Roles[role]; !ok {
		return nil, apperr.Validation("unknown role %q", role)
	}

	marker := snapshotID
	if marker == "" {
		marker = latestMarker
	}
	key := keyPartitions + "|" + role + "|" + marker

	return cache.GetOrAdd(s.cache, key, func() ([]string, error) {
		var (
			snap *ConfigurationSnapshot
			err  error
		)
		if snapshotID == "" {
			snap, err = s.GetLatestSnapshot(ctx)
		} else {
			snap, err = s.GetSnapshotByID(ctx, snapshotID)
		}
		if err != nil {
			return nil, err
		}
		return snap.Partitions(role), nil
	})
}

// ResolvePartitionsForRoles unions the latest partitions of every role.
// Each role is mandatory.
func (s *Store) ResolvePartitionsForRoles(ctx context.Context, roles []string) ([]string, error) {
	var all []string
	for _, role := range roles {
		parts, err := s.ResolvePartitions(ctx, role, "")
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			return nil, apperr.Technical("no partitions configured for role %q", role)
		}
		all = append(all, parts...)
	}
	return dedupSorted(all), nil
}

// ResolveSinglePartition returns the only latest partition of role
func (s *Store) ResolveSinglePartition(ctx context.Context, role string) (string, error) {
	parts, err := s.ResolvePartitions(ctx, role, "")
	if err != nil {
		return "", err
	}
	switch len(parts) {
	case 0:
		return "", apperr.NotFound("no partition configured for role %q", role)
	case 1:
		return parts[0], nil
	default:
		return "", apperr.BusinessRule(MultiplePartitionsMessage)
	}
}

// load reads snapshots from the configuration graph, restricted to id when set
func (s *Store) load(ctx context.Context, id string) ([]*ConfigurationSnapshot, error) {
	preds := make([]rdf.Term, 0, len(s.cfg.Roles))
	for _, role := range s.cfg.Roles.Names() {
		preds = append(preds, rdf.IRI(s.cfg.Roles[role]))
	}

	b := graph.NewBuilder("s", "start", "note", "pred", "part").
		Where(graph.V("s"), graph.I(rdf.RDFType), graph.I(rdf.CatConfigurationSnapshot)).
		Where(graph.V("s"), graph.I(rdf.CatStartTime), graph.V("start")).
		Optional(graph.Patterns(graph.Triple(graph.V("s"), graph.I(rdf.CatEditorialNote), graph.V("note")))).
		Optional(graph.Group{
			Values:   []graph.Values{{Var: "pred", Terms: preds}},
			Patterns: []graph.Pattern{graph.Triple(graph.V("s"), graph.V("pred"), graph.V("part"))},
		})
	if id != "" {
		b.Param("s", rdf.IRI(id))
	}

	rs, err := s.exec.Select(ctx, b.Build(), []string{s.cfg.ConfigurationGraph})
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	// group rows by snapshot id, keeping first-seen order
	byID := make(map[string]*ConfigurationSnapshot)
	var order []*ConfigurationSnapshot
	for _, row := range rs.Rows {
		sid := row.Value("s")
		snap, ok := byID[sid]
		if !ok {
			start, err := time.Parse(time.RFC3339Nano, row.Value("start"))
			if err != nil {
				s.log.Warn().Str("snapshot_id", sid).Str("start_time", row.Value("start")).Msg("Skipping snapshot with unparsable start time")
				byID[sid] = nil
				continue
			}
			snap = &ConfigurationSnapshot{ID: sid, StartTime: start, PartitionsByRole: map[string][]string{}}
			byID[sid] = snap
			order = append(order, snap)
		}
		if snap == nil {
			continue
		}
		if row.Has("note") && snap.EditorialNote == "" {
			snap.EditorialNote = row.Value("note")
		}
		if row.Has("part") {
			role := s.byPredicate[row.Value("pred")]
			snap.PartitionsByRole[role] = append(snap.PartitionsByRole[role], row.Value("part"))
		}
	}

	for _, snap := range order {
		for role, parts := range snap.PartitionsByRole {
			snap.PartitionsByRole[role] = dedupSorted(parts)
		}
	}
	return order, nil
}

func sortedKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dedupSorted(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
