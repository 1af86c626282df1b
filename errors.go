// Package pyxgen transpiles a restricted, type-annotated Python dialect to
// Cython. The root package holds the error taxonomy and the compiler-directive
// configuration shared by the generation pipeline under gen/.
package pyxgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	// CodeParse means the input could not be parsed as the restricted dialect.
	CodeParse ErrorCode = "parse"

	// CodeTypeInference means a type could not be reliably resolved. Conditions
	// with this code are recoverable: the pipeline degrades the position to the
	// generic object type and records a warning.
	CodeTypeInference ErrorCode = "type_inference"

	// CodeTranslation means a syntax shape has no translation rule. Also
	// recoverable: the generator falls back to a passthrough rendering or a
	// placeholder comment.
	CodeTranslation ErrorCode = "translation"

	// CodeImbalancedScope means the scope stack was popped past its root. This
	// indicates a traversal-ordering bug, not a translatability limit; it is
	// the one fatal condition and always aborts the run.
	CodeImbalancedScope ErrorCode = "imbalanced_scope"

	// CodeInvalidConfig means the generator configuration or an in-file
	// directive failed validation.
	CodeInvalidConfig ErrorCode = "invalid_config"

	// CodeIO means an input or output file operation failed.
	CodeIO ErrorCode = "io"
)

// Error is the standard error envelope for the pipeline.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new pipeline error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new pipeline error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetail returns a new Error with the key-value pair added to details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

// Fatal reports whether err must abort the run. Only scope imbalance and file
// I/O are fatal; everything else degrades to a warning plus best-effort output.
func Fatal(err error) bool {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Code == CodeImbalancedScope || pErr.Code == CodeIO
	}
	return true
}

// FromError maps an arbitrary error to a pipeline error envelope.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		details := make(map[string]any)
		messages := make([]string, 0, len(valErrs))
		for _, ve := range valErrs {
			msg := formatValidationError(ve)
			details[ve.Field()] = msg
			messages = append(messages, ve.Field()+": "+msg)
		}
		return &Error{
			Code:    CodeInvalidConfig,
			Message: strings.Join(messages, "; "),
			Details: details,
		}
	}

	return NewError(CodeIO, err.Error())
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "dir":
		return "must be an existing directory"
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
