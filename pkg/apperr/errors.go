// ABOUTME: Error taxonomy shared by the snapshot store and schema resolver
// ABOUTME: Sentinel kinds wrapped with context, mapped to gRPC status codes

package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/codes"
)

// Error kinds. Test with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")
	ErrTechnical            = errors.New("technical error")
	ErrBusinessRule         = errors.New("business rule violated")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// NotFound reports an absent snapshot, type or entity.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Validation reports malformed input detected before any query runs.
func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

// Technical reports an inconsistent configuration, e.g. a mandatory role without partitions.
func Technical(format string, args ...any) error {
	return wrap(ErrTechnical, format, args...)
}

// BusinessRule reports a violated domain rule.
func BusinessRule(format string, args ...any) error {
	return wrap(ErrBusinessRule, format, args...)
}

// Unsupported reports an operation the component does not offer.
func Unsupported(format string, args ...any) error {
	return wrap(ErrUnsupportedOperation, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// FieldError is one failed struct constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries per-field details and matches ErrValidation.
type ValidationError struct {
	Subject string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: invalid %s: %s", ErrValidation, e.Subject, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FromValidator converts validator/v10 errors. Other errors are wrapped as validation errors.
func FromValidator(subject string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Validation("%s: %v", subject, err)
	}
	out := &ValidationError{Subject: subject}
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out.Fields = append(out.Fields, FieldError{Field: fe.Namespace(), Message: "failed on " + msg})
	}
	return out
}

// GRPCCode maps the taxonomy onto gRPC status codes.
func GRPCCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrNotFound):
		return codes.NotFound
	case errors.Is(err, ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, ErrBusinessRule):
		return codes.FailedPrecondition
	case errors.Is(err, ErrUnsupportedOperation):
		return codes.Unimplemented
	default:
		return codes.Internal
	}
}
