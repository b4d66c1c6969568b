// ABOUTME: Order-preserving byte encoding for terms and quads
// ABOUTME: Used as dedup and index keys by the quad stores

package rdf

// Kind tags in encoded keys. None of them is 0xFF.
const (
	tagIRI     = 1
	tagLiteral = 2
	tagBlank   = 3
)

// Key encodes the term as a byte string that is unique per (kind, value,
// datatype, lang) and sorts by kind, then value
func (t Term) Key() string {
	out := make([]byte, 0, len(t.Value)+8)
	out = appendTerm(out, t)
	return string(out)
}

// QuadKey encodes graph, subject, predicate and object in that order
func QuadKey(q Quad) string {
	out := make([]byte, 0, 64)
	out = appendString(out, q.Graph)
	out = appendTerm(out, q.Subject)
	out = appendTerm(out, q.Predicate)
	out = appendTerm(out, q.Object)
	return string(out)
}

func appendTerm(out []byte, t Term) []byte {
	switch t.Kind {
	case KindIRI:
		out = append(out, tagIRI)
		out = appendString(out, t.Value)
	case KindBlank:
		out = append(out, tagBlank)
		out = appendString(out, t.Value)
	case KindLiteral:
		out = append(out, tagLiteral)
		out = appendString(out, t.Value)
		out = appendString(out, t.Datatype)
		out = appendString(out, t.Lang)
	default:
		out = append(out, 0xFE, 0x00, 0)
	}
	return out
}

// appendString escapes 0x00 and 0xFF and null-terminates
func appendString(out []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b == 0 || b == 0xFF || b == 0xFE {
			out = append(out, 0xFE, b)
		} else {
			out = append(out, b)
		}
	}
	return append(out, 0)
}
