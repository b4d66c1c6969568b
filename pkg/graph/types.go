// ABOUTME: Graph query model types
// ABOUTME: Basic graph patterns with values, unions, optionals and filters

package graph

import (
	"context"
	"sort"

	"github.com/nainya/typecatalog/pkg/rdf"
)

// Node is either a variable or a fixed term in a pattern
type Node struct {
	Var  string
	Term rdf.Term
}

// V creates a variable node
func V(name string) Node {
	return Node{Var: name}
}

// T creates a fixed term node
func T(term rdf.Term) Node {
	return Node{Term: term}
}

// I creates a fixed identifier node
func I(iri string) Node {
	return Node{Term: rdf.IRI(iri)}
}

// IsVar reports whether the node is a variable
func (n Node) IsVar() bool {
	return n.Var != ""
}

// Pattern is a single triple pattern
type Pattern struct {
	S, P, O Node
}

// Triple builds a pattern
func Triple(s, p, o Node) Pattern {
	return Pattern{S: s, P: p, O: o}
}

// Values is an inline table for one variable
type Values struct {
	Var   string
	Terms []rdf.Term
}

// Group is a block of graph patterns. Evaluation order within a group is
// Values, Patterns, Unions, Optionals, NotExists, Filters.
type Group struct {
	Values    []Values
	Patterns  []Pattern
	Unions    []Group // alternatives of a single union block
	Optionals []Group
	NotExists []Group
	Filters   []string // expr-lang expressions
}

// Query is a parameterised select over a group
type Query struct {
	Select   []string
	Where    Group
	Params   map[string]rdf.Term
	Distinct bool
	OrderBy  []string
	Limit    int
}

// Solution binds variable names to terms
type Solution map[string]rdf.Term

// Has reports whether the variable is bound
func (s Solution) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Value returns the lexical value of a bound variable or ""
func (s Solution) Value(name string) string {
	return s[name].Value
}

func (s Solution) clone() Solution {
	out := make(Solution, len(s)+2)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// RowSet is an ordered table of solutions
type RowSet struct {
	Vars []string
	Rows []Solution
}

// Len returns the number of rows
func (r *RowSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// QuadSource matches triple patterns against stored quads. Nil terms are
// wildcards; empty graphs means every graph.
type QuadSource interface {
	Match(ctx context.Context, graphs []string, s, p, o *rdf.Term) ([]rdf.Quad, error)
}

// Writer appends quads to a graph
type Writer interface {
	Insert(ctx context.Context, graph string, quads []rdf.Quad) error
}

// QuadStore is a readable and writable quad store
type QuadStore interface {
	QuadSource
	Writer
	DropGraph(ctx context.Context, graph string) error
	Graphs(ctx context.Context) ([]string, error)
	Close() error
}

// Executor runs queries scoped to partitions
type Executor interface {
	Select(ctx context.Context, q Query, partitions []string) (*RowSet, error)
	Construct(ctx context.Context, q Query, template []Pattern, partitions []string) ([]rdf.Quad, error)
}

// Builder provides a fluent interface for building queries
type Builder struct {
	query Query
}

// NewBuilder creates a builder selecting the given variables
func NewBuilder(vars ...string) *Builder {
	return &Builder{query: Query{Select: vars}}
}

// Where adds a triple pattern
func (b *Builder) Where(s, p, o Node) *Builder {
	b.query.Where.Patterns = append(b.query.Where.Patterns, Triple(s, p, o))
	return b
}

// Values adds an inline table for one variable
func (b *Builder) Values(name string, terms ...rdf.Term) *Builder {
	b.query.Where.Values = append(b.query.Where.Values, Values{Var: name, Terms: terms})
	return b
}

// Union adds a union block with the given alternatives
func (b *Builder) Union(alternatives ...Group) *Builder {
	b.query.Where.Unions = append(b.query.Where.Unions, alternatives...)
	return b
}

// Optional adds an optional group
func (b *Builder) Optional(g Group) *Builder {
	b.query.Where.Optionals = append(b.query.Where.Optionals, g)
	return b
}

// NotExists adds a negated group
func (b *Builder) NotExists(g Group) *Builder {
	b.query.Where.NotExists = append(b.query.Where.NotExists, g)
	return b
}

// Filter adds a filter expression
func (b *Builder) Filter(expression string) *Builder {
	b.query.Where.Filters = append(b.query.Where.Filters, expression)
	return b
}

// Param binds a variable before evaluation
func (b *Builder) Param(name string, term rdf.Term) *Builder {
	if b.query.Params == nil {
		b.query.Params = make(map[string]rdf.Term)
	}
	b.query.Params[name] = term
	return b
}

// Distinct removes duplicate projected rows
func (b *Builder) Distinct() *Builder {
	b.query.Distinct = true
	return b
}

// OrderBy sorts rows by the given variables
func (b *Builder) OrderBy(vars ...string) *Builder {
	b.query.OrderBy = vars
	return b
}

// Limit sets the row limit
func (b *Builder) Limit(limit int) *Builder {
	b.query.Limit = limit
	return b
}

// Build returns the constructed query
func (b *Builder) Build() Query {
	return b.query
}

// Patterns builds a group from triple patterns
func Patterns(patterns ...Pattern) Group {
	return Group{Patterns: patterns}
}

// vars lists every variable mentioned in the group, sorted
func (g Group) vars() []string {
	seen := map[string]struct{}{}
	g.collectVars(seen)
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (g Group) collectVars(seen map[string]struct{}) {
	for _, v := range g.Values {
		seen[v.Var] = struct{}{}
	}
	for _, p := range g.Patterns {
		for _, n := range []Node{p.S, p.P, p.O} {
			if n.IsVar() {
				seen[n.Var] = struct{}{}
			}
		}
	}
	for _, sub := range g.Unions {
		sub.collectVars(seen)
	}
	for _, sub := range g.Optionals {
		sub.collectVars(seen)
	}
}
