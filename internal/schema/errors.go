package schema

import (
	"fmt"
	"strings"
)

// FieldError describes one problem with a document. Field is the dotted
// JSON path ("llm_parameters.max_tokens"), empty for document-level problems
// such as unparseable input.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	if f.Field == "" {
		return f.Message
	}
	return f.Field + ": " + f.Message
}

// ValidationError is returned when raw content is not a valid document.
type ValidationError struct {
	FieldErrors []FieldError
}

func (e *ValidationError) Error() string {
	switch len(e.FieldErrors) {
	case 0:
		return "invalid configuration document"
	case 1:
		return "invalid configuration document: " + e.FieldErrors[0].String()
	}
	parts := make([]string, len(e.FieldErrors))
	for i, fe := range e.FieldErrors {
		parts[i] = fe.String()
	}
	return fmt.Sprintf("invalid configuration document (%d problems): %s",
		len(e.FieldErrors), strings.Join(parts, "; "))
}

// Has reports whether any problem was recorded against field.
func (e *ValidationError) Has(field string) bool {
	for _, fe := range e.FieldErrors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{FieldErrors: []FieldError{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}
