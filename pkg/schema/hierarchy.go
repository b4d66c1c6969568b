// ABOUTME: Super-type edge set and breadth-first traversals
// ABOUTME: Visited sets keep diamonds and cycles from repeating nodes

package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/nainya/typecatalog/pkg/graph"
	"github.com/nainya/typecatalog/pkg/rdf"
)

// hierarchy is the direct sub-/super-type relation of a set of partitions
type hierarchy struct {
	parents  map[string][]string
	children map[string][]string
}

func (r *Resolver) loadHierarchy(ctx context.Context, partitions []string) (*hierarchy, error) {
	q := graph.NewBuilder("sub", "super").
		Where(graph.V("sub"), graph.I(rdf.RDFSSubClassOf), graph.V("super")).
		Filter(`isIRI(sub) && isIRI(super)`).
		Distinct().
		Build()

	rs, err := r.exec.Select(ctx, q, partitions)
	if err != nil {
		return nil, fmt.Errorf("failed to load type hierarchy: %w", err)
	}

	h := &hierarchy{
		parents:  make(map[string][]string),
		children: make(map[string][]string),
	}
	for _, row := range rs.Rows {
		sub, super := row.Value("sub"), row.Value("super")
		if sub == super {
			continue
		}
		h.parents[sub] = append(h.parents[sub], super)
		h.children[super] = append(h.children[super], sub)
	}
	for k, v := range h.parents {
		sort.Strings(v)
		h.parents[k] = v
	}
	for k, v := range h.children {
		sort.Strings(v)
		h.children[k] = v
	}
	return h, nil
}

// known reports whether id takes part in any edge
func (h *hierarchy) known(id string) bool {
	return len(h.parents[id]) > 0 || len(h.children[id]) > 0
}

// ancestors returns id followed by every super-type, nearest first
func (h *hierarchy) ancestors(id string) []string {
	order, _ := bfs(id, h.parents)
	return order
}

// descendants returns id followed by every sub-type in BFS order, plus the
// node through which each descendant was first reached
func (h *hierarchy) descendants(id string) ([]string, map[string]string) {
	return bfs(id, h.children)
}

// leaves returns the descendants of id (inclusive) without sub-types, sorted
func (h *hierarchy) leaves(id string) []string {
	order, _ := h.descendants(id)
	var out []string
	for _, n := range order {
		if len(h.children[n]) == 0 {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func bfs(start string, next map[string][]string) ([]string, map[string]string) {
	visited := map[string]struct{}{start: {}}
	via := make(map[string]string)
	order := []string{start}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range next[cur] {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			via[n] = cur
			order = append(order, n)
			queue = append(queue, n)
		}
	}
	return order, via
}
