// ABOUTME: RDF import/export for the quad stores
// ABOUTME: N-Quads and JSON-LD parsing and N-Quads output through json-gold

package rdfio

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/piprate/json-gold/ld"

	"github.com/nainya/typecatalog/pkg/rdf"
)

const defaultGraph = "@default"

// Format names an input syntax
type Format string

const (
	FormatNQuads Format = "nquads"
	FormatJSONLD Format = "jsonld"
)

// ParseFormat accepts common aliases
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "nq", "nquads", "n-quads", "nt", "ntriples":
		return FormatNQuads, nil
	case "jsonld", "json-ld", "json":
		return FormatJSONLD, nil
	default:
		return "", fmt.Errorf("unsupported rdf format: %s", s)
	}
}

// ReadOption adjusts how input is turned into quads
type ReadOption func(*readOptions)

type readOptions struct {
	keepBlankLabels bool
}

// KeepBlankLabels keeps blank node labels exactly as written. Only input
// this package produced itself should be read this way; by default every
// call relabels blank nodes into a scope of its own, so two documents that
// both use _:b0 never share a node.
func KeepBlankLabels() ReadOption {
	return func(o *readOptions) { o.keepBlankLabels = true }
}

// Read parses r in the given format. Triples in the default graph are placed in
// graph; named graphs in the input keep their names.
func Read(r io.Reader, format Format, graph string, opts ...ReadOption) ([]rdf.Quad, error) {
	switch format {
	case FormatNQuads:
		return ReadNQuads(r, graph, opts...)
	case FormatJSONLD:
		return ReadJSONLD(r, graph, opts...)
	default:
		return nil, fmt.Errorf("unsupported rdf format: %s", format)
	}
}

// ReadNQuads parses N-Quads (or N-Triples) input
func ReadNQuads(r io.Reader, graph string, opts ...ReadOption) ([]rdf.Quad, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read n-quads: %w", err)
	}
	dataset, err := ld.ParseNQuads(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse n-quads: %w", err)
	}
	return fromDataset(dataset, graph, opts)
}

// ReadJSONLD expands a JSON-LD document to RDF
func ReadJSONLD(r io.Reader, graph string, opts ...ReadOption) ([]rdf.Quad, error) {
	var doc any
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json-ld: %w", err)
	}

	proc := ld.NewJsonLdProcessor()
	ldOpts := ld.NewJsonLdOptions("")
	out, err := proc.ToRDF(doc, ldOpts)
	if err != nil {
		return nil, fmt.Errorf("json-ld to rdf: %w", err)
	}
	dataset, ok := out.(*ld.RDFDataset)
	if !ok {
		return nil, fmt.Errorf("json-ld to rdf: unexpected result %T", out)
	}
	return fromDataset(dataset, graph, opts)
}

// WriteNQuads serialises quads; quads without a graph go to the default graph
func WriteNQuads(w io.Writer, quads []rdf.Quad) error {
	dataset := ld.NewRDFDataset()
	for _, q := range quads {
		name := q.Graph
		if name == "" {
			name = defaultGraph
		}
		dataset.Graphs[name] = append(dataset.Graphs[name],
			ld.NewQuad(toNode(q.Subject), toNode(q.Predicate), toNode(q.Object), name))
	}

	serializer := &ld.NQuadRDFSerializer{}
	out, err := serializer.Serialize(dataset)
	if err != nil {
		return fmt.Errorf("serialize n-quads: %w", err)
	}
	text, _ := out.(string)
	_, err = io.WriteString(w, text)
	return err
}

func fromDataset(dataset *ld.RDFDataset, graph string, opts []ReadOption) ([]rdf.Quad, error) {
	o := readOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	blanks := newBlankScope(o.keepBlankLabels)

	names := make([]string, 0, len(dataset.Graphs))
	for name := range dataset.Graphs {
		names = append(names, name)
	}
	sort.Strings(names)

	var quads []rdf.Quad
	for _, name := range names {
		target := name
		if name == defaultGraph {
			target = graph
		}
		for _, lq := range dataset.Graphs[name] {
			s, err := blanks.term(lq.Subject)
			if err != nil {
				return nil, err
			}
			p, err := blanks.term(lq.Predicate)
			if err != nil {
				return nil, err
			}
			o, err := blanks.term(lq.Object)
			if err != nil {
				return nil, err
			}
			quads = append(quads, rdf.NewQuad(s, p, o, target))
		}
	}
	return quads, nil
}

// blankScope prefixes blank node labels with an id unique to one read
type blankScope struct {
	prefix string
}

func newBlankScope(keep bool) blankScope {
	if keep {
		return blankScope{}
	}
	return blankScope{prefix: "r" + strings.ReplaceAll(uuid.NewString(), "-", "")}
}

func (b blankScope) term(n ld.Node) (rdf.Term, error) {
	t, err := toTerm(n)
	if err != nil || !t.IsBlank() || b.prefix == "" {
		return t, err
	}
	return rdf.Blank(b.prefix + t.Value), nil
}

// toTerm accepts value and pointer nodes
func toTerm(n ld.Node) (rdf.Term, error) {
	switch v := n.(type) {
	case ld.IRI:
		return rdf.IRI(v.Value), nil
	case *ld.IRI:
		return rdf.IRI(v.Value), nil
	case ld.BlankNode:
		return blank(v.Attribute), nil
	case *ld.BlankNode:
		return blank(v.Attribute), nil
	case ld.Literal:
		return literal(v.Value, v.Datatype, v.Language), nil
	case *ld.Literal:
		return literal(v.Value, v.Datatype, v.Language), nil
	default:
		return rdf.Term{}, fmt.Errorf("unsupported rdf node %T", n)
	}
}

func blank(attribute string) rdf.Term {
	return rdf.Blank(strings.TrimPrefix(attribute, "_:"))
}

func literal(value, datatype, lang string) rdf.Term {
	if lang != "" {
		return rdf.LangLiteral(value, lang)
	}
	return rdf.TypedLiteral(value, datatype)
}

func toNode(t rdf.Term) ld.Node {
	switch t.Kind {
	case rdf.KindBlank:
		return ld.NewBlankNode("_:" + t.Value)
	case rdf.KindLiteral:
		datatype := t.Datatype
		if datatype == "" {
			datatype = rdf.XSDString
		}
		return ld.NewLiteral(t.Value, datatype, t.Lang)
	default:
		return ld.NewIRI(t.Value)
	}
}
