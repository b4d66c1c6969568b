package rdfio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/piprate/json-gold/ld"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/typecatalog/pkg/rdf"
)

const sample = `
<http://ex.org/Dog> <http://www.w3.org/2000/01/rdf-schema#subClassOf> <http://ex.org/Mammal> .
<http://ex.org/Dog> <http://www.w3.org/2000/01/rdf-schema#label> "Dog"@en .
<http://ex.org/Dog> <http://www.w3.org/2000/01/rdf-schema#label> "Hund"@de <http://ex.org/graphs/german> .
<http://ex.org/Dog> <https://w3id.org/typecatalog/ontology#abstract> "false"^^<http://www.w3.org/2001/XMLSchema#boolean> .
`

func TestReadNQuadsPlacesDefaultGraph(t *testing.T) {
	quads, err := ReadNQuads(strings.NewReader(sample), "http://ex.org/graphs/meta")
	require.NoError(t, err)
	require.Len(t, quads, 4)

	byGraph := map[string]int{}
	for _, q := range quads {
		byGraph[q.Graph]++
	}
	assert.Equal(t, 3, byGraph["http://ex.org/graphs/meta"])
	assert.Equal(t, 1, byGraph["http://ex.org/graphs/german"])

	var sawLang, sawTyped bool
	for _, q := range quads {
		if q.Object.Lang == "en" {
			sawLang = true
			assert.Equal(t, "Dog", q.Object.Value)
		}
		if q.Object.Datatype == rdf.XSDBoolean {
			sawTyped = true
			assert.Equal(t, "false", q.Object.Value)
		}
	}
	assert.True(t, sawLang)
	assert.True(t, sawTyped)
}

func TestReadJSONLD(t *testing.T) {
	doc := `{
	  "@context": {
	    "rdfs": "http://www.w3.org/2000/01/rdf-schema#",
	    "label": {"@id": "rdfs:label", "@language": "en"},
	    "subClassOf": {"@id": "rdfs:subClassOf", "@type": "@id"}
	  },
	  "@id": "http://ex.org/Cat",
	  "label": "Cat",
	  "subClassOf": "http://ex.org/Mammal"
	}`
	quads, err := ReadJSONLD(strings.NewReader(doc), "http://ex.org/graphs/meta")
	require.NoError(t, err)
	require.Len(t, quads, 2)
	for _, q := range quads {
		assert.Equal(t, "http://ex.org/graphs/meta", q.Graph)
		assert.Equal(t, rdf.IRI("http://ex.org/Cat"), q.Subject)
	}
}

func TestWriteNQuadsOutputIsReadable(t *testing.T) {
	quads, err := ReadNQuads(strings.NewReader(sample), "http://ex.org/graphs/meta")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteNQuads(&buf, quads))
	assert.Contains(t, buf.String(), "<http://ex.org/graphs/german>")

	again, err := ReadNQuads(&buf, "http://ex.org/graphs/meta")
	require.NoError(t, err)
	assert.ElementsMatch(t, quads, again)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON-LD")
	require.NoError(t, err)
	assert.Equal(t, FormatJSONLD, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatNQuads, f)

	_, err = ParseFormat("turtle")
	assert.Error(t, err)
}

func TestToTermAcceptsValueAndPointerNodes(t *testing.T) {
	iri := ld.NewIRI("http://ex.org/a")
	blankNode := ld.NewBlankNode("_:n1")
	lit := ld.NewLiteral("Dog", rdf.XSDString, "en")

	for _, n := range []ld.Node{iri, blankNode, lit} {
		_, err := toTerm(n)
		require.NoError(t, err)
	}

	got, err := toTerm(&ld.IRI{Value: "http://ex.org/a"})
	require.NoError(t, err)
	assert.Equal(t, rdf.IRI("http://ex.org/a"), got)

	got, err = toTerm(ld.IRI{Value: "http://ex.org/a"})
	require.NoError(t, err)
	assert.Equal(t, rdf.IRI("http://ex.org/a"), got)

	got, err = toTerm(ld.BlankNode{Attribute: "_:n1"})
	require.NoError(t, err)
	assert.Equal(t, rdf.Blank("n1"), got)

	got, err = toTerm(ld.Literal{Value: "Dog", Datatype: rdf.XSDString, Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, rdf.LangLiteral("Dog", "en"), got)
}

const shape = `
<http://ex.org/Dog> <http://www.w3.org/ns/shacl#property> _:b0 .
_:b0 <http://www.w3.org/ns/shacl#path> <http://ex.org/name> .
`

func blankSubjects(quads []rdf.Quad) map[string]struct{} {
	out := map[string]struct{}{}
	for _, q := range quads {
		if q.Subject.IsBlank() {
			out[q.Subject.Value] = struct{}{}
		}
	}
	return out
}

func TestReadScopesBlankNodesPerCall(t *testing.T) {
	first, err := ReadNQuads(strings.NewReader(shape), "http://ex.org/graphs/meta")
	require.NoError(t, err)
	second, err := ReadNQuads(strings.NewReader(shape), "http://ex.org/graphs/consumer")
	require.NoError(t, err)

	// within one read the node stays shared
	require.Len(t, first, 2)
	require.True(t, first[0].Object.IsBlank() || first[1].Object.IsBlank())
	for _, q := range first {
		if q.Object.IsBlank() {
			assert.Contains(t, blankSubjects(first), q.Object.Value)
		}
	}

	a, b := blankSubjects(first), blankSubjects(second)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	for label := range a {
		assert.NotContains(t, b, label)
		assert.NotEqual(t, "b0", label)
	}
}

func TestKeepBlankLabels(t *testing.T) {
	quads, err := ReadNQuads(strings.NewReader(shape), "http://ex.org/graphs/meta", KeepBlankLabels())
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"b0": {}}, blankSubjects(quads))
}
