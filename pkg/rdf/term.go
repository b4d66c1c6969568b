// ABOUTME: RDF term and quad data model
// ABOUTME: Terms carry a kind tag plus datatype/language for literals

package rdf

import (
	"strconv"
	"strings"
)

// TermKind tags a term as identifier, literal or blank node
type TermKind uint8

const (
	KindIRI TermKind = iota + 1
	KindLiteral
	KindBlank
)

func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindLiteral:
		return "literal"
	case KindBlank:
		return "blank"
	default:
		return "unknown"
	}
}

// Term is a node or value in the graph
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string // literals only, empty means xsd:string
	Lang     string // literals only
}

// IRI creates an identifier term
func IRI(value string) Term {
	return Term{Kind: KindIRI, Value: value}
}

// Literal creates a plain string literal
func Literal(value string) Term {
	return Term{Kind: KindLiteral, Value: value}
}

// LangLiteral creates a language-tagged literal
func LangLiteral(value, lang string) Term {
	return Term{Kind: KindLiteral, Value: value, Datatype: RDFLangString, Lang: strings.ToLower(lang)}
}

// TypedLiteral creates a literal with an explicit datatype
func TypedLiteral(value, datatype string) Term {
	if datatype == XSDString {
		datatype = ""
	}
	return Term{Kind: KindLiteral, Value: value, Datatype: datatype}
}

// Blank creates a blank node term
func Blank(id string) Term {
	return Term{Kind: KindBlank, Value: id}
}

// IsZero reports whether the term is unset
func (t Term) IsZero() bool {
	return t.Kind == 0
}

// IsIRI reports whether the term is an identifier
func (t Term) IsIRI() bool {
	return t.Kind == KindIRI
}

// IsLiteral reports whether the term is a literal
func (t Term) IsLiteral() bool {
	return t.Kind == KindLiteral
}

// IsBlank reports whether the term is a blank node
func (t Term) IsBlank() bool {
	return t.Kind == KindBlank
}

// Equal compares kind, value, datatype and language
func (t Term) Equal(o Term) bool {
	return t.Kind == o.Kind && t.Value == o.Value && t.Datatype == o.Datatype && t.Lang == o.Lang
}

// String renders the term in N-Triples syntax
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		s := strconv.Quote(t.Value)
		if t.Lang != "" {
			return s + "@" + t.Lang
		}
		if t.Datatype != "" {
			return s + "^^<" + t.Datatype + ">"
		}
		return s
	default:
		return ""
	}
}

// Quad is a triple placed in a named graph (partition)
type Quad struct {
	Subject   Term
	Predicate Term
	Object    Term
	Graph     string
}

// NewQuad builds a quad
func NewQuad(s, p, o Term, graph string) Quad {
	return Quad{Subject: s, Predicate: p, Object: o, Graph: graph}
}

// Triple returns the quad without its graph
func (q Quad) Triple() Quad {
	q.Graph = ""
	return q
}

func (q Quad) String() string {
	var b strings.Builder
	b.WriteString(q.Subject.String())
	b.WriteByte(' ')
	b.WriteString(q.Predicate.String())
	b.WriteByte(' ')
	b.WriteString(q.Object.String())
	if q.Graph != "" {
		b.WriteString(" <" + q.Graph + ">")
	}
	b.WriteString(" .")
	return b.String()
}
