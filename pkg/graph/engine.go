// ABOUTME: Graph query engine over any quad source
// ABOUTME: Nested-loop evaluation of pattern groups, select and construct

package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	exprvm "github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"

	"github.com/nainya/typecatalog/pkg/rdf"
)

// Recorder receives per-query observations
type Recorder interface {
	RecordQuery(kind string, duration time.Duration, rows int, err error)
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithRecorder wires query metrics
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// Engine evaluates queries against a QuadSource
type Engine struct {
	source   QuadSource
	filters  *filterSet
	log      zerolog.Logger
	recorder Recorder
}

// NewEngine creates a new query engine
func NewEngine(source QuadSource, opts ...Option) *Engine {
	e := &Engine{
		source:  source,
		filters: newFilterSet(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Select evaluates q and projects the selected variables
func (e *Engine) Select(ctx context.Context, q Query, partitions []string) (rs *RowSet, err error) {
	start := time.Now()
	defer func() {
		e.observe("select", start, rs.Len(), err)
	}()

	sols, err := e.solve(ctx, q, partitions)
	if err != nil {
		return nil, err
	}

	vars := q.Select
	if len(vars) == 0 {
		vars = q.Where.vars()
	}

	rows := make([]Solution, 0, len(sols))
	seen := map[string]struct{}{}
	for _, sol := range sols {
		row := make(Solution, len(vars))
		for _, v := range vars {
			if t, ok := sol[v]; ok {
				row[v] = t
			}
		}
		if q.Distinct {
			k := rowKey(row, vars)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		rows = append(rows, row)
	}

	if len(q.OrderBy) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			return compareRows(rows[i], rows[j], q.OrderBy) < 0
		})
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return &RowSet{Vars: vars, Rows: rows}, nil
}

// Construct evaluates q and instantiates template once per solution.
// Template instances with unbound variables are skipped; duplicates are
// removed. Constructed quads carry no graph.
func (e *Engine) Construct(ctx context.Context, q Query, template []Pattern, partitions []string) (quads []rdf.Quad, err error) {
	start := time.Now()
	defer func() {
		e.observe("construct", start, len(quads), err)
	}()

	sols, err := e.solve(ctx, q, partitions)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	for _, sol := range sols {
		for _, p := range template {
			s, okS := resolve(p.S, sol)
			pr, okP := resolve(p.P, sol)
			o, okO := resolve(p.O, sol)
			if !okS || !okP || !okO {
				continue
			}
			quad := rdf.NewQuad(s, pr, o, "")
			k := rdf.QuadKey(quad)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			quads = append(quads, quad)
		}
	}
	return quads, nil
}

func (e *Engine) solve(ctx context.Context, q Query, partitions []string) ([]Solution, error) {
	initial := Solution{}
	for name, term := range q.Params {
		initial[name] = term
	}
	return e.evalGroup(ctx, q.Where, []Solution{initial}, partitions)
}

func (e *Engine) observe(kind string, start time.Time, rows int, err error) {
	duration := time.Since(start)
	if e.recorder != nil {
		e.recorder.RecordQuery(kind, duration, rows, err)
	}
	ev := e.log.Debug()
	if err != nil {
		ev = e.log.Error().Err(err)
	}
	ev.Str("kind", kind).Dur("duration", duration).Int("rows", rows).Msg("graph query")
}

func (e *Engine) evalGroup(ctx context.Context, g Group, in []Solution, graphs []string) ([]Solution, error) {
	sols := in

	for _, v := range g.Values {
		sols = joinValues(sols, v)
	}

	for _, p := range g.Patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := e.matchPattern(ctx, p, sols, graphs)
		if err != nil {
			return nil, err
		}
		sols = next
		if len(sols) == 0 {
			return nil, nil
		}
	}

	if len(g.Unions) > 0 {
		var out []Solution
		for _, alt := range g.Unions {
			r, err := e.evalGroup(ctx, alt, sols, graphs)
			if err != nil {
				return nil, err
			}
			out = append(out, r...)
		}
		sols = out
	}

	for _, opt := range g.Optionals {
		var out []Solution
		for _, sol := range sols {
			r, err := e.evalGroup(ctx, opt, []Solution{sol}, graphs)
			if err != nil {
				return nil, err
			}
			if len(r) == 0 {
				out = append(out, sol)
			} else {
				out = append(out, r...)
			}
		}
		sols = out
	}

	for _, neg := range g.NotExists {
		var out []Solution
		for _, sol := range sols {
			r, err := e.evalGroup(ctx, neg, []Solution{sol}, graphs)
			if err != nil {
				return nil, err
			}
			if len(r) == 0 {
				out = append(out, sol)
			}
		}
		sols = out
	}

	if len(g.Filters) > 0 {
		programs := make([]*exprvm.Program, 0, len(g.Filters))
		for _, f := range g.Filters {
			program, err := e.filters.compile(f)
			if err != nil {
				return nil, err
			}
			programs = append(programs, program)
		}
		out := sols[:0:0]
		for _, sol := range sols {
			if keep(programs, sol) {
				out = append(out, sol)
			}
		}
		sols = out
	}

	return sols, nil
}

func (e *Engine) matchPattern(ctx context.Context, p Pattern, in []Solution, graphs []string) ([]Solution, error) {
	var out []Solution
	for _, sol := range in {
		s := bound(p.S, sol)
		pr := bound(p.P, sol)
		o := bound(p.O, sol)

		quads, err := e.source.Match(ctx, graphs, s, pr, o)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", describe(p), err)
		}
		for _, q := range quads {
			next := sol.clone()
			if bind(next, p.S, q.Subject) && bind(next, p.P, q.Predicate) && bind(next, p.O, q.Object) {
				out = append(out, next)
			}
		}
	}
	return out, nil
}

func joinValues(in []Solution, v Values) []Solution {
	var out []Solution
	for _, sol := range in {
		if cur, ok := sol[v.Var]; ok {
			for _, t := range v.Terms {
				if cur.Equal(t) {
					out = append(out, sol)
					break
				}
			}
			continue
		}
		for _, t := range v.Terms {
			next := sol.clone()
			next[v.Var] = t
			out = append(out, next)
		}
	}
	return out
}

// bound returns the term a node is fixed to under sol, or nil for a free variable
func bound(n Node, sol Solution) *rdf.Term {
	if !n.IsVar() {
		t := n.Term
		return &t
	}
	if t, ok := sol[n.Var]; ok {
		return &t
	}
	return nil
}

func resolve(n Node, sol Solution) (rdf.Term, bool) {
	if !n.IsVar() {
		return n.Term, true
	}
	t, ok := sol[n.Var]
	return t, ok
}

// bind extends sol with n=t, failing when a variable repeats with another value
func bind(sol Solution, n Node, t rdf.Term) bool {
	if !n.IsVar() {
		return true
	}
	if cur, ok := sol[n.Var]; ok {
		return cur.Equal(t)
	}
	sol[n.Var] = t
	return true
}

func rowKey(row Solution, vars []string) string {
	var b strings.Builder
	for _, v := range vars {
		if t, ok := row[v]; ok {
			b.WriteString(t.Key())
		}
		b.WriteByte(0xFF)
	}
	return b.String()
}

// compareRows orders unbound before bound, then by value, then by full key
func compareRows(a, b Solution, vars []string) int {
	for _, v := range vars {
		ta, okA := a[v]
		tb, okB := b[v]
		switch {
		case !okA && !okB:
			continue
		case !okA:
			return -1
		case !okB:
			return 1
		}
		if c := strings.Compare(ta.Value, tb.Value); c != 0 {
			return c
		}
		if c := strings.Compare(ta.Key(), tb.Key()); c != 0 {
			return c
		}
	}
	return 0
}

func describe(p Pattern) string {
	parts := make([]string, 0, 3)
	for _, n := range []Node{p.S, p.P, p.O} {
		if n.IsVar() {
			parts = append(parts, "?"+n.Var)
		} else {
			parts = append(parts, n.Term.String())
		}
	}
	return strings.Join(parts, " ")
}
