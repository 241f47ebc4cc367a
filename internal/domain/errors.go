package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateNotFound signals a missing template id.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrTemplateSchema signals a malformed template library. Fatal at load;
	// a failed reload keeps the prior template set serving.
	ErrTemplateSchema = errors.New("invalid template schema")
	// ErrNoMatch signals that no template cleared the confidence threshold.
	ErrNoMatch = errors.New("no matching template")
	// ErrParameterValidation signals one or more invalid parameter values.
	ErrParameterValidation = errors.New("parameter validation failed")
	// ErrTranslation signals a template that could not be rendered into an
	// executable query. Fatal for that candidate only.
	ErrTranslation = errors.New("query translation failed")
	// ErrCircuitOpen signals a fast-fail on an open circuit breaker.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrExecutionTimeout signals an exceeded operation deadline.
	ErrExecutionTimeout = errors.New("execution timed out")
	// ErrConnection signals a datasource connectivity failure.
	ErrConnection = errors.New("datasource connection failed")
	// ErrDomainNotFound signals an unknown knowledge domain.
	ErrDomainNotFound = errors.New("domain not found")
	// ErrUnknownStrategy signals an unrecognized execution strategy name.
	ErrUnknownStrategy = errors.New("unknown execution strategy")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrExtractionProviderError signals an LLM extraction provider failure.
	ErrExtractionProviderError = errors.New("extraction provider error")
)

// SchemaError wraps ErrTemplateSchema with the offending template id and detail.
type SchemaError struct {
	TemplateID string
	Detail     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: template %q: %s", ErrTemplateSchema.Error(), e.TemplateID, e.Detail)
}

func (e *SchemaError) Unwrap() error { return ErrTemplateSchema }

// NewSchemaError creates a template schema error.
func NewSchemaError(templateID, format string, args ...any) error {
	return &SchemaError{TemplateID: templateID, Detail: fmt.Sprintf(format, args...)}
}
