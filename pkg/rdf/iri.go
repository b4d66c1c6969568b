package rdf

import (
	"strings"

	"github.com/piprate/json-gold/ld"

	"github.com/nainya/typecatalog/pkg/apperr"
)

// IsAbsoluteIRI reports whether s is an absolute identifier without whitespace
func IsAbsoluteIRI(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n<>\"{}|^`\\") {
		return false
	}
	if !ld.IsAbsoluteIri(s) {
		return false
	}
	scheme, rest, ok := strings.Cut(s, ":")
	if !ok || scheme == "" || rest == "" {
		return false
	}
	for i, c := range scheme {
		letter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if i == 0 && !letter {
			return false
		}
		if !letter && !(c >= '0' && c <= '9') && c != '+' && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

// ValidateIRI returns a validation error for malformed identifiers
func ValidateIRI(kind, s string) error {
	if !IsAbsoluteIRI(s) {
		return apperr.Validation("%s %q is not an absolute identifier", kind, s)
	}
	return nil
}
