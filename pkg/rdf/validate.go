package rdf

import (
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the "iri" struct tag rule
func RegisterValidators(v *validator.Validate) error {
	return v.RegisterValidation("iri", func(fl validator.FieldLevel) bool {
		return IsAbsoluteIRI(fl.Field().String())
	})
}

// NewValidator returns a validator with the rules in this package registered
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterValidators(v); err != nil {
		panic(err)
	}
	return v
}
