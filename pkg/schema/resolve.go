// ABOUTME: Merged attribute schema resolution for a type
// ABOUTME: Constraint and extra-property rows folded per path, nested schemas recursed with a guard

package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/nainya/typecatalog/pkg/apperr"
	"github.com/nainya/typecatalog/pkg/graph"
	"github.com/nainya/typecatalog/pkg/rdf"
	"github.com/nainya/typecatalog/pkg/snapshot"
)

// Row branch markers
const (
	branchConstraint = "constraint"
	branchExtra      = "extra"
)

// schemaRow is one decoded result row: constraintRow or extraPropertyRow
type schemaRow interface {
	bucket() string
	attribute() (key string, value rdf.Term)
}

// constraintRow is an attribute of a property constraint declared on an ancestor
type constraintRow struct {
	constraint string
	key        string
	value      rdf.Term
	nested     string
	group      *MetadataPropertyGroup
}

func (r constraintRow) bucket() string               { return "c|" + r.constraint }
func (r constraintRow) attribute() (string, rdf.Term) { return r.key, r.value }

// extraPropertyRow is an attribute of a property whose domain is an ancestor
// and which no constraint covers
type extraPropertyRow struct {
	property string
	key      string
	value    rdf.Term
}

func (r extraPropertyRow) bucket() string               { return "p|" + r.property }
func (r extraPropertyRow) attribute() (string, rdf.Term) { return r.key, r.value }

// resolution carries per-call state through nested recursion
type resolution struct {
	partitions []string
	h          *hierarchy
}

// ResolveSchema returns the path-keyed schema of typeID under the given
// snapshot (latest when empty). Not cached.
func (r *Resolver) ResolveSchema(ctx context.Context, typeID, snapshotID string) (props map[string]*MetadataProperty, err error) {
	start := time.Now()
	defer func() {
		if r.recorder != nil {
			r.recorder.RecordSchemaResolution(time.Since(start), len(props), err)
		}
	}()

	if err := rdf.ValidateIRI("type id", typeID); err != nil {
		return nil, err
	}
	if snapshotID != "" {
		if err := rdf.ValidateIRI("snapshot id", snapshotID); err != nil {
			return nil, err
		}
	} else if _, err := r.snapshots.GetLatestSnapshot(ctx); err != nil {
		return nil, err
	}

	meta, err := r.metadataPartitions(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	consumer, err := r.snapshots.ResolvePartitions(ctx, snapshot.RoleConsumerGroup, snapshotID)
	if err != nil {
		return nil, err
	}
	partitions := append(append([]string(nil), meta...), consumer...)

	h, err := r.loadHierarchy(ctx, partitions)
	if err != nil {
		return nil, err
	}

	res := &resolution{partitions: partitions, h: h}
	return r.resolve(ctx, res, typeID, map[string]struct{}{typeID: {}}, 0)
}

func (r *Resolver) resolve(ctx context.Context, res *resolution, typeID string, path map[string]struct{}, depth int) (map[string]*MetadataProperty, error) {
	ancestors := res.h.ancestors(typeID)
	rows, err := r.queryRows(ctx, res, ancestors)
	if err != nil {
		return nil, err
	}

	// group rows by constraint id or property, keeping first-seen order
	buckets := make(map[string][]schemaRow)
	var order []string
	for _, row := range rows {
		k := row.bucket()
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], row)
	}

	props := make(map[string]*MetadataProperty)
	for _, k := range order {
		group := buckets[k]
		propPath := pathOf(group)
		if propPath == "" {
			r.log.Warn().Str("type", typeID).Str("bucket", k).Msg("Skipping constraint without path")
			continue
		}
		if _, dup := props[propPath]; dup {
			r.log.Warn().Str("type", typeID).Str("path", propPath).Str("bucket", k).Msg("Duplicate property path, keeping first")
			continue
		}

		prop, err := r.fold(ctx, res, propPath, group, path, depth)
		if err != nil {
			return nil, err
		}
		props[propPath] = prop
	}

	main, hasMain := props[rdf.CatMainDistribution]
	dist, hasDist := props[rdf.CatDistribution]
	if hasMain && hasDist {
		main.NestedSchema = dist.NestedSchema
	}
	return props, nil
}

// fold merges a property's rows into one MetadataProperty
func (r *Resolver) fold(ctx context.Context, res *resolution, propPath string, rows []schemaRow, path map[string]struct{}, depth int) (*MetadataProperty, error) {
	prop := &MetadataProperty{Path: propPath, Attributes: make(map[string][]string)}
	nestedDone := false

	for _, row := range rows {
		key, value := row.attribute()
		prop.add(key, value.Value)

		cr, isConstraint := row.(constraintRow)
		if !isConstraint {
			continue
		}
		switch {
		case key == rdf.CatEditWidget && value.Value == rdf.CatNestedObjectEditor && cr.nested != "" && !nestedDone:
			nestedDone = true
			nested, err := r.nestedSchema(ctx, res, cr.nested, path, depth)
			if err != nil {
				return nil, err
			}
			prop.NestedSchema = nested
		case key == rdf.SHGroup && cr.group != nil && prop.Group == nil:
			prop.Group = cr.group
		}
	}

	if propPath == rdf.RDFType {
		prop.Attributes[rdf.RDFSRange] = []string{rdf.OWLClass}
	}
	return prop, nil
}

// nestedSchema resolves one Metadata per instantiable subtype of nestedType.
// Types already on the current path and recursion past the depth limit are
// skipped.
func (r *Resolver) nestedSchema(ctx context.Context, res *resolution, nestedType string, path map[string]struct{}, depth int) ([]Metadata, error) {
	if depth+1 > r.maxDepth {
		r.log.Debug().Str("nested_type", nestedType).Int("depth", depth).Msg("Nested schema depth limit reached")
		return nil, nil
	}
	types, err := r.instantiable(ctx, res.h, nestedType, res.partitions)
	if err != nil {
		return nil, err
	}

	var out []Metadata
	for _, t := range types {
		if _, onPath := path[t.ID]; onPath {
			r.log.Debug().Str("nested_type", t.ID).Msg("Nested schema cycle cut")
			continue
		}
		path[t.ID] = struct{}{}
		props, err := r.resolve(ctx, res, t.ID, path, depth+1)
		delete(path, t.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Metadata{ID: t.ID, Label: t.Label, Description: t.Description, Properties: props})
	}
	return out, nil
}

func (r *Resolver) queryRows(ctx context.Context, res *resolution, ancestors []string) ([]schemaRow, error) {
	owners := iris(ancestors)
	groupDetail := func(pred, v string) graph.Group {
		return graph.Group{
			Patterns: []graph.Pattern{graph.Triple(graph.V("group"), graph.I(pred), graph.V(v))},
			Filters:  []string{langFilter(v)},
		}
	}

	constraints := graph.Group{
		Values: []graph.Values{{Var: "branch", Terms: []rdf.Term{rdf.Literal(branchConstraint)}}},
		Patterns: []graph.Pattern{
			graph.Triple(graph.V("owner"), graph.I(rdf.SHProperty), graph.V("c")),
			graph.Triple(graph.V("c"), graph.V("key"), graph.V("value")),
		},
		Optionals: []graph.Group{
			graph.Patterns(graph.Triple(graph.V("c"), graph.I(rdf.SHClass), graph.V("nested"))),
			{
				Patterns: []graph.Pattern{graph.Triple(graph.V("c"), graph.I(rdf.SHGroup), graph.V("group"))},
				Optionals: []graph.Group{
					groupDetail(rdf.RDFSLabel, "groupLabel"),
					groupDetail(rdf.SHOrder, "groupOrder"),
					groupDetail(rdf.CatEditDescription, "groupEdit"),
					groupDetail(rdf.CatViewDescription, "groupView"),
				},
			},
		},
		Filters: []string{langFilter("value")},
	}

	extras := graph.Group{
		Values: []graph.Values{{Var: "branch", Terms: []rdf.Term{rdf.Literal(branchExtra)}}},
		Patterns: []graph.Pattern{
			graph.Triple(graph.V("prop"), graph.I(rdf.RDFSDomain), graph.V("owner")),
			graph.Triple(graph.V("prop"), graph.V("key"), graph.V("value")),
		},
		NotExists: []graph.Group{{
			Values: []graph.Values{{Var: "anyOwner", Terms: owners}},
			Patterns: []graph.Pattern{
				graph.Triple(graph.V("anyOwner"), graph.I(rdf.SHProperty), graph.V("covering")),
				graph.Triple(graph.V("covering"), graph.I(rdf.SHPath), graph.V("prop")),
			},
		}},
		Filters: []string{langFilter("value")},
	}

	q := graph.NewBuilder("branch", "owner", "c", "prop", "key", "value", "nested",
		"group", "groupLabel", "groupOrder", "groupEdit", "groupView").
		Values("owner", owners...).
		Union(constraints, extras).
		Param("defaultLang", rdf.Literal(r.lang)).
		Build()

	rs, err := r.exec.Select(ctx, q, res.partitions)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema rows: %w", err)
	}

	rows := make([]schemaRow, 0, rs.Len())
	for _, row := range rs.Rows {
		decoded, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		rows = append(rows, decoded)
	}
	return rows, nil
}

func decodeRow(row graph.Solution) (schemaRow, error) {
	switch row.Value("branch") {
	case branchConstraint:
		cr := constraintRow{
			constraint: row["c"].String(),
			key:        row.Value("key"),
			value:      row["value"],
			nested:     row.Value("nested"),
		}
		if row.Has("group") {
			g := &MetadataPropertyGroup{
				Key:             row.Value("group"),
				Label:           row.Value("groupLabel"),
				EditDescription: row.Value("groupEdit"),
				ViewDescription: row.Value("groupView"),
			}
			if row.Has("groupOrder") {
				if order, err := cast.ToIntE(row.Value("groupOrder")); err == nil {
					g.Order = &order
				}
			}
			cr.group = g
		}
		return cr, nil
	case branchExtra:
		return extraPropertyRow{
			property: row.Value("prop"),
			key:      row.Value("key"),
			value:    row["value"],
		}, nil
	default:
		return nil, apperr.Technical("unexpected schema row branch %q", row.Value("branch"))
	}
}

// pathOf returns the property path of a bucket
func pathOf(rows []schemaRow) string {
	for _, row := range rows {
		switch r := row.(type) {
		case extraPropertyRow:
			return r.property
		case constraintRow:
			if r.key == rdf.SHPath && r.value.IsIRI() {
				return r.value.Value
			}
		}
	}
	return ""
}
