// ABOUTME: In-memory quad store
// ABOUTME: Insertion-ordered quads with subject, predicate and object indexes

package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/nainya/typecatalog/pkg/graph"
	"github.com/nainya/typecatalog/pkg/rdf"
)

var _ graph.QuadStore = (*Store)(nil)

// Store keeps quads in memory. Deleted slots are left nil so positions held
// by the indexes stay valid.
type Store struct {
	mu     sync.RWMutex
	quads  []*rdf.Quad
	keys   map[string]int
	bySubj map[string][]int
	byPred map[string][]int
	byObj  map[string][]int
	graphs map[string]int // live quads per graph
}

// New creates an empty store
func New() *Store {
	return &Store{
		keys:   make(map[string]int),
		bySubj: make(map[string][]int),
		byPred: make(map[string][]int),
		byObj:  make(map[string][]int),
		graphs: make(map[string]int),
	}
}

// Insert appends quads to graph, skipping ones already present
func (s *Store) Insert(ctx context.Context, graphName string, quads []rdf.Quad) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range quads {
		q.Graph = graphName
		key := rdf.QuadKey(q)
		if _, exists := s.keys[key]; exists {
			continue
		}
		pos := len(s.quads)
		stored := q
		s.quads = append(s.quads, &stored)
		s.keys[key] = pos
		s.bySubj[q.Subject.Key()] = append(s.bySubj[q.Subject.Key()], pos)
		s.byPred[q.Predicate.Key()] = append(s.byPred[q.Predicate.Key()], pos)
		s.byObj[q.Object.Key()] = append(s.byObj[q.Object.Key()], pos)
		s.graphs[graphName]++
	}
	return nil
}

// Match returns quads matching the pattern in insertion order
func (s *Store) Match(ctx context.Context, graphs []string, subj, pred, obj *rdf.Term) ([]rdf.Quad, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var allowed map[string]struct{}
	if len(graphs) > 0 {
		allowed = make(map[string]struct{}, len(graphs))
		for _, g := range graphs {
			allowed[g] = struct{}{}
		}
	}

	candidates, all := s.candidates(subj, pred, obj)
	var out []rdf.Quad
	visit := func(q *rdf.Quad) {
		if q == nil {
			return
		}
		if allowed != nil {
			if _, ok := allowed[q.Graph]; !ok {
				return
			}
		}
		if subj != nil && !q.Subject.Equal(*subj) {
			return
		}
		if pred != nil && !q.Predicate.Equal(*pred) {
			return
		}
		if obj != nil && !q.Object.Equal(*obj) {
			return
		}
		out = append(out, *q)
	}

	if all {
		for _, q := range s.quads {
			visit(q)
		}
		return out, nil
	}
	for _, pos := range candidates {
		visit(s.quads[pos])
	}
	return out, nil
}

// candidates picks the smallest index for the bound positions
func (s *Store) candidates(subj, pred, obj *rdf.Term) ([]int, bool) {
	var best []int
	found := false
	consider := func(idx map[string][]int, t *rdf.Term) {
		if t == nil {
			return
		}
		list := idx[t.Key()]
		if !found || len(list) < len(best) {
			best = list
			found = true
		}
	}
	consider(s.bySubj, subj)
	consider(s.byPred, pred)
	consider(s.byObj, obj)
	return best, !found
}

// DropGraph removes every quad in the graph
func (s *Store) DropGraph(ctx context.Context, graphName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := make(map[int]struct{})
	subjects := make(map[string]struct{})
	predicates := make(map[string]struct{})
	objects := make(map[string]struct{})
	for pos, q := range s.quads {
		if q == nil || q.Graph != graphName {
			continue
		}
		delete(s.keys, rdf.QuadKey(*q))
		dropped[pos] = struct{}{}
		subjects[q.Subject.Key()] = struct{}{}
		predicates[q.Predicate.Key()] = struct{}{}
		objects[q.Object.Key()] = struct{}{}
		s.quads[pos] = nil
	}
	prune(s.bySubj, subjects, dropped)
	prune(s.byPred, predicates, dropped)
	prune(s.byObj, objects, dropped)
	delete(s.graphs, graphName)
	return nil
}

// prune removes dropped positions from the index lists of the touched keys
func prune(idx map[string][]int, touched map[string]struct{}, dropped map[int]struct{}) {
	for key := range touched {
		list := idx[key]
		kept := list[:0]
		for _, pos := range list {
			if _, gone := dropped[pos]; !gone {
				kept = append(kept, pos)
			}
		}
		if len(kept) == 0 {
			delete(idx, key)
			continue
		}
		idx[key] = kept
	}
}

// Graphs lists graphs holding at least one quad, sorted
func (s *Store) Graphs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.graphs))
	for g, n := range s.graphs {
		if n > 0 {
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Len returns the number of live quads
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
