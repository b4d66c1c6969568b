// ABOUTME: Type resolver over the metadata partitions of a snapshot
// ABOUTME: Single types, hierarchies, ancestors, leaves and instantiable types

package schema

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/nainya/typecatalog/pkg/apperr"
	"github.com/nainya/typecatalog/pkg/graph"
	"github.com/nainya/typecatalog/pkg/rdf"
	"github.com/nainya/typecatalog/pkg/snapshot"
)

const (
	DefaultLanguage        = "en"
	DefaultMaxNestingDepth = 8
)

// SnapshotSource resolves the partitions a snapshot assigns to a role
type SnapshotSource interface {
	GetLatestSnapshot(ctx context.Context) (*snapshot.ConfigurationSnapshot, error)
	ResolvePartitions(ctx context.Context, role, snapshotID string) ([]string, error)
}

// Recorder receives schema resolution observations
type Recorder interface {
	RecordSchemaResolution(duration time.Duration, properties int, err error)
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLanguage sets the preferred literal language
func WithLanguage(lang string) Option {
	return func(r *Resolver) {
		if lang != "" {
			r.lang = lang
		}
	}
}

// WithMaxNestingDepth bounds nested schema recursion
func WithMaxNestingDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithLogger sets the resolver logger
func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

// WithRecorder wires schema metrics
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) {
		r.recorder = rec
	}
}

// Resolver answers type and schema questions
type Resolver struct {
	snapshots SnapshotSource
	exec      graph.Executor
	lang      string
	maxDepth  int
	log       zerolog.Logger
	recorder  Recorder
}

// NewResolver creates a resolver
func NewResolver(snapshots SnapshotSource, exec graph.Executor, opts ...Option) *Resolver {
	r := &Resolver{
		snapshots: snapshots,
		exec:      exec,
		lang:      DefaultLanguage,
		maxDepth:  DefaultMaxNestingDepth,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetType returns one type without traversal, or nil if nothing is recorded
func (r *Resolver) GetType(ctx context.Context, typeID string) (*TypeNode, error) {
	if err := rdf.ValidateIRI("type id", typeID); err != nil {
		return nil, err
	}
	parts, err := r.metadataPartitions(ctx, "")
	if err != nil {
		return nil, err
	}

	subject := graph.I(typeID)
	q := graph.NewBuilder().
		Where(subject, graph.V("p"), graph.V("o")).
		Filter(langFilter("o")).
		Param("defaultLang", rdf.Literal(r.lang)).
		Build()
	quads, err := r.exec.Construct(ctx, q, []graph.Pattern{graph.Triple(subject, graph.V("p"), graph.V("o"))}, parts)
	if err != nil {
		return nil, fmt.Errorf("failed to load type %s: %w", typeID, err)
	}
	if len(quads) == 0 {
		return nil, nil
	}

	b := newNodeBuilder(typeID, r.lang)
	for _, quad := range quads {
		b.add(quad.Predicate.Value, quad.Object)
	}
	return b.node, nil
}

// GetHierarchy returns rootID with every descendant attached below it.
// Each descendant appears once, under the node through which it was first
// reached breadth-first.
func (r *Resolver) GetHierarchy(ctx context.Context, rootID string) (*TypeNode, error) {
	if err := rdf.ValidateIRI("type id", rootID); err != nil {
		return nil, err
	}
	parts, err := r.metadataPartitions(ctx, "")
	if err != nil {
		return nil, err
	}
	h, err := r.loadHierarchy(ctx, parts)
	if err != nil {
		return nil, err
	}

	order, via := h.descendants(rootID)
	nodes, err := r.loadNodes(ctx, order, parts)
	if err != nil {
		return nil, err
	}
	root, ok := nodes[rootID]
	if !ok && !h.known(rootID) {
		return nil, nil
	}
	if !ok {
		root = &TypeNode{ID: rootID}
		nodes[rootID] = root
	}

	for _, id := range order {
		n, ok := nodes[id]
		if !ok {
			n = &TypeNode{ID: id}
			nodes[id] = n
		}
		n.Parents = append([]string(nil), h.parents[id]...)
	}
	for _, id := range order[1:] {
		parent := nodes[via[id]]
		parent.Children = append(parent.Children, nodes[id])
	}
	for _, n := range nodes {
		sort.Slice(n.Children, func(i, j int) bool { return n.Children[i].ID < n.Children[j].ID })
	}
	return root, nil
}

// GetAncestors returns typeID and every super-type, nearest first
func (r *Resolver) GetAncestors(ctx context.Context, typeID string) ([]string, error) {
	if err := rdf.ValidateIRI("type id", typeID); err != nil {
		return nil, err
	}
	parts, err := r.metadataPartitions(ctx, "")
	if err != nil {
		return nil, err
	}
	h, err := r.loadHierarchy(ctx, parts)
	if err != nil {
		return nil, err
	}
	return h.ancestors(typeID), nil
}

// GetLeafTypes returns the types under rootID (inclusive) that no type
// declares as super-type, sorted
func (r *Resolver) GetLeafTypes(ctx context.Context, rootID string) ([]string, error) {
	if err := rdf.ValidateIRI("type id", rootID); err != nil {
		return nil, err
	}
	parts, err := r.metadataPartitions(ctx, "")
	if err != nil {
		return nil, err
	}
	h, err := r.loadHierarchy(ctx, parts)
	if err != nil {
		return nil, err
	}
	return h.leaves(rootID), nil
}

// GetInstantiableTypes returns the leaves under rootID explicitly marked
// non-abstract, ordered by id
func (r *Resolver) GetInstantiableTypes(ctx context.Context, rootID string) ([]TypeNode, error) {
	if err := rdf.ValidateIRI("type id", rootID); err != nil {
		return nil, err
	}
	parts, err := r.metadataPartitions(ctx, "")
	if err != nil {
		return nil, err
	}
	h, err := r.loadHierarchy(ctx, parts)
	if err != nil {
		return nil, err
	}
	return r.instantiable(ctx, h, rootID, parts)
}

func (r *Resolver) instantiable(ctx context.Context, h *hierarchy, rootID string, parts []string) ([]TypeNode, error) {
	leaves := h.leaves(rootID)
	if len(leaves) == 0 {
		return nil, nil
	}

	q := graph.NewBuilder("t").
		Values("t", iris(leaves)...).
		Where(graph.V("t"), graph.I(rdf.CatAbstract), graph.V("abstract")).
		Filter(`str(abstract) == "false" || str(abstract) == "0"`).
		Distinct().
		OrderBy("t").
		Build()
	rs, err := r.exec.Select(ctx, q, parts)
	if err != nil {
		return nil, fmt.Errorf("failed to load instantiable types: %w", err)
	}

	ids := make([]string, 0, rs.Len())
	for _, row := range rs.Rows {
		ids = append(ids, row.Value("t"))
	}
	nodes, err := r.loadNodes(ctx, ids, parts)
	if err != nil {
		return nil, err
	}

	out := make([]TypeNode, 0, len(ids))
	for _, id := range ids {
		n := nodes[id]
		if n == nil {
			n = &TypeNode{ID: id}
		}
		n.Parents = append([]string(nil), h.parents[id]...)
		out = append(out, *n)
	}
	return out, nil
}

// loadNodes fetches the details of ids with one query
func (r *Resolver) loadNodes(ctx context.Context, ids []string, parts []string) (map[string]*TypeNode, error) {
	nodes := make(map[string]*TypeNode, len(ids))
	if len(ids) == 0 {
		return nodes, nil
	}

	q := graph.NewBuilder("t", "p", "o").
		Values("t", iris(ids)...).
		Where(graph.V("t"), graph.V("p"), graph.V("o")).
		Filter(langFilter("o")).
		Param("defaultLang", rdf.Literal(r.lang)).
		Build()
	rs, err := r.exec.Select(ctx, q, parts)
	if err != nil {
		return nil, fmt.Errorf("failed to load type details: %w", err)
	}

	builders := make(map[string]*nodeBuilder)
	for _, row := range rs.Rows {
		id := row.Value("t")
		b, ok := builders[id]
		if !ok {
			b = newNodeBuilder(id, r.lang)
			builders[id] = b
			nodes[id] = b.node
		}
		b.add(row.Value("p"), row["o"])
	}
	return nodes, nil
}

// metadataPartitions resolves the metadata partitions of a snapshot (latest
// when empty). Queries must never run unscoped, so none is an error.
func (r *Resolver) metadataPartitions(ctx context.Context, snapshotID string) ([]string, error) {
	parts, err := r.snapshots.ResolvePartitions(ctx, snapshot.RoleMetadata, snapshotID)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, apperr.Technical("no partitions configured for role %q", snapshot.RoleMetadata)
	}
	return parts, nil
}

// nodeBuilder folds predicate/object pairs into a TypeNode, preferring
// literals in the configured language over untagged ones
type nodeBuilder struct {
	node     *TypeNode
	lang     string
	labelTag bool
	descTag  bool
}

func newNodeBuilder(id, lang string) *nodeBuilder {
	return &nodeBuilder{
		node: &TypeNode{ID: id, Attributes: make(map[string][]string)},
		lang: lang,
	}
}

func (b *nodeBuilder) add(pred string, obj rdf.Term) {
	b.node.Attributes[pred] = append(b.node.Attributes[pred], obj.Value)

	tagged := obj.Lang != ""
	switch pred {
	case rdf.RDFSLabel:
		if b.node.Label == "" || (tagged && !b.labelTag) {
			b.node.Label = obj.Value
			b.labelTag = tagged
		}
	case rdf.RDFSComment:
		if b.node.Description == "" || (tagged && !b.descTag) {
			b.node.Description = obj.Value
			b.descTag = tagged
		}
	case rdf.RDFSSubClassOf:
		if obj.IsIRI() && obj.Value != b.node.ID {
			b.node.Parents = appendUnique(b.node.Parents, obj.Value)
		}
	}
}

func langFilter(v string) string {
	return fmt.Sprintf(`!isLiteral(%[1]s) || lang(%[1]s) == "" || langMatches(lang(%[1]s), str(defaultLang))`, v)
}

func iris(ids []string) []rdf.Term {
	out := make([]rdf.Term, len(ids))
	for i, id := range ids {
		out[i] = rdf.IRI(id)
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
