package graph_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/typecatalog/pkg/graph"
	"github.com/nainya/typecatalog/pkg/graph/memstore"
	"github.com/nainya/typecatalog/pkg/rdf"
	"github.com/nainya/typecatalog/pkg/rdf/rdfio"
)

const (
	metaGraph  = "http://ex.org/graphs/meta"
	otherGraph = "http://ex.org/graphs/other"
)

const fixture = `
<http://ex.org/Dog> <http://www.w3.org/2000/01/rdf-schema#subClassOf> <http://ex.org/Mammal> .
<http://ex.org/Cat> <http://www.w3.org/2000/01/rdf-schema#subClassOf> <http://ex.org/Mammal> .
<http://ex.org/Mammal> <http://www.w3.org/2000/01/rdf-schema#subClassOf> <http://ex.org/Animal> .
<http://ex.org/Dog> <http://www.w3.org/2000/01/rdf-schema#label> "Dog"@en .
<http://ex.org/Dog> <http://www.w3.org/2000/01/rdf-schema#label> "Hund"@de .
<http://ex.org/Cat> <http://www.w3.org/2000/01/rdf-schema#label> "Cat" .
`

type recorder struct {
	kinds []string
}

func (r *recorder) RecordQuery(kind string, _ time.Duration, _ int, _ error) {
	r.kinds = append(r.kinds, kind)
}

func newEngine(t *testing.T, opts ...graph.Option) *graph.Engine {
	t.Helper()
	store := memstore.New()
	quads, err := rdfio.ReadNQuads(strings.NewReader(fixture), metaGraph)
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), metaGraph, quads))
	require.NoError(t, store.Insert(context.Background(), otherGraph, []rdf.Quad{
		{Subject: rdf.IRI("http://ex.org/Fish"), Predicate: rdf.IRI(rdf.RDFSSubClassOf), Object: rdf.IRI("http://ex.org/Animal")},
	}))
	return graph.NewEngine(store, opts...)
}

func TestSelectJoinsPatterns(t *testing.T) {
	e := newEngine(t)
	q := graph.NewBuilder("sub").
		Where(graph.V("sub"), graph.I(rdf.RDFSSubClassOf), graph.V("mid")).
		Where(graph.V("mid"), graph.I(rdf.RDFSSubClassOf), graph.I("http://ex.org/Animal")).
		OrderBy("sub").
		Build()

	rs, err := e.Select(context.Background(), q, nil)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, "http://ex.org/Cat", rs.Rows[0].Value("sub"))
	assert.Equal(t, "http://ex.org/Dog", rs.Rows[1].Value("sub"))
}

func TestSelectScopesPartitions(t *testing.T) {
	e := newEngine(t)
	q := graph.NewBuilder("s").
		Where(graph.V("s"), graph.I(rdf.RDFSSubClassOf), graph.I("http://ex.org/Animal")).
		OrderBy("s").
		Build()

	all, err := e.Select(context.Background(), q, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Len())

	scoped, err := e.Select(context.Background(), q, []string{metaGraph})
	require.NoError(t, err)
	require.Equal(t, 1, scoped.Len())
	assert.Equal(t, "http://ex.org/Mammal", scoped.Rows[0].Value("s"))
}

func TestParamsAndValues(t *testing.T) {
	e := newEngine(t)
	q := graph.NewBuilder("s").
		Values("s", rdf.IRI("http://ex.org/Dog"), rdf.IRI("http://ex.org/Cat"), rdf.IRI("http://ex.org/Animal")).
		Where(graph.V("s"), graph.I(rdf.RDFSSubClassOf), graph.V("parent")).
		Param("parent", rdf.IRI("http://ex.org/Mammal")).
		Build()

	rs, err := e.Select(context.Background(), q, nil)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	// values order is preserved
	assert.Equal(t, "http://ex.org/Dog", rs.Rows[0].Value("s"))
	assert.Equal(t, "http://ex.org/Cat", rs.Rows[1].Value("s"))
}

func TestUnionKeepsBranchOrder(t *testing.T) {
	e := newEngine(t)
	q := graph.NewBuilder("branch", "x").
		Union(
			graph.Group{
				Values:   []graph.Values{{Var: "branch", Terms: []rdf.Term{rdf.Literal("label")}}},
				Patterns: []graph.Pattern{graph.Triple(graph.I("http://ex.org/Cat"), graph.I(rdf.RDFSLabel), graph.V("x"))},
			},
			graph.Group{
				Values:   []graph.Values{{Var: "branch", Terms: []rdf.Term{rdf.Literal("parent")}}},
				Patterns: []graph.Pattern{graph.Triple(graph.I("http://ex.org/Cat"), graph.I(rdf.RDFSSubClassOf), graph.V("x"))},
			},
		).
		Build()

	rs, err := e.Select(context.Background(), q, nil)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, "label", rs.Rows[0].Value("branch"))
	assert.Equal(t, "Cat", rs.Rows[0].Value("x"))
	assert.Equal(t, "parent", rs.Rows[1].Value("branch"))
}

func TestOptionalAndNotExists(t *testing.T) {
	e := newEngine(t)
	q := graph.NewBuilder("s", "label").
		Where(graph.V("s"), graph.I(rdf.RDFSSubClassOf), graph.V("p")).
		Optional(graph.Patterns(graph.Triple(graph.V("s"), graph.I(rdf.RDFSLabel), graph.V("label")))).
		Filter(`!bound(label) || lang(label) == "" || lang(label) == "en"`).
		OrderBy("s").
		Build()

	rs, err := e.Select(context.Background(), q, []string{metaGraph})
	require.NoError(t, err)
	require.Equal(t, 3, rs.Len())
	assert.Equal(t, "Cat", rs.Rows[0].Value("label"))
	assert.Equal(t, "Dog", rs.Rows[1].Value("label"))
	assert.False(t, rs.Rows[2].Has("label"))

	leaves := graph.NewBuilder("s").
		Where(graph.V("s"), graph.I(rdf.RDFSSubClassOf), graph.V("p")).
		NotExists(graph.Patterns(graph.Triple(graph.V("c"), graph.I(rdf.RDFSSubClassOf), graph.V("s")))).
		OrderBy("s").
		Build()
	rs, err = e.Select(context.Background(), leaves, []string{metaGraph})
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, "http://ex.org/Cat", rs.Rows[0].Value("s"))
	assert.Equal(t, "http://ex.org/Dog", rs.Rows[1].Value("s"))
}

func TestDistinctAndLimit(t *testing.T) {
	e := newEngine(t)
	q := graph.NewBuilder("p").
		Where(graph.V("s"), graph.I(rdf.RDFSSubClassOf), graph.V("p")).
		Distinct().
		OrderBy("p").
		Build()
	rs, err := e.Select(context.Background(), q, []string{metaGraph})
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, "http://ex.org/Animal", rs.Rows[0].Value("p"))

	q.Limit = 1
	rs, err = e.Select(context.Background(), q, []string{metaGraph})
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Len())
}

func TestFilterCompileErrorFailsQuery(t *testing.T) {
	e := newEngine(t)
	q := graph.NewBuilder("s").
		Where(graph.V("s"), graph.I(rdf.RDFSSubClassOf), graph.V("p")).
		Filter(`lang(s) ==`).
		Build()
	_, err := e.Select(context.Background(), q, nil)
	assert.Error(t, err)
}

func TestFilterNonBooleanDropsRow(t *testing.T) {
	e := newEngine(t)
	q := graph.NewBuilder("s").
		Where(graph.V("s"), graph.I(rdf.RDFSSubClassOf), graph.V("p")).
		Filter(`str(s)`).
		Build()
	rs, err := e.Select(context.Background(), q, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())
}

func TestConstruct(t *testing.T) {
	rec := &recorder{}
	e := newEngine(t, graph.WithRecorder(rec))
	q := graph.NewBuilder().
		Where(graph.I("http://ex.org/Dog"), graph.V("p"), graph.V("o")).
		Build()
	template := []graph.Pattern{graph.Triple(graph.I("http://ex.org/Dog"), graph.V("p"), graph.V("o"))}

	quads, err := e.Construct(context.Background(), q, template, []string{metaGraph})
	require.NoError(t, err)
	assert.Len(t, quads, 3)
	for _, quad := range quads {
		assert.Empty(t, quad.Graph)
	}
	assert.Equal(t, []string{"construct"}, rec.kinds)
}
