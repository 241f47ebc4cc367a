package binding

import "fmt"

// FieldError is one accumulated validation failure on a binding.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Field, e.Reason)
}

// Binding holds the validated parameter values for one template. Validation
// failures accumulate instead of aborting, so callers can inspect partial
// bindings. A binding is usable only when Usable() is true.
type Binding struct {
	templateID string
	values     map[string]Value
	errs       []FieldError
}

// New creates a binding for a template.
func New(templateID string) *Binding {
	return &Binding{
		templateID: templateID,
		values:     make(map[string]Value),
	}
}

// TemplateID returns the bound template's id.
func (b *Binding) TemplateID() string { return b.templateID }

// Set stores a validated value.
func (b *Binding) Set(name string, v Value) { b.values[name] = v }

// Get returns a bound value.
func (b *Binding) Get(name string) (Value, bool) {
	v, ok := b.values[name]
	return v, ok
}

// Values returns a copy of the bound values.
func (b *Binding) Values() map[string]Value {
	out := make(map[string]Value, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// AddError accumulates a validation failure.
func (b *Binding) AddError(field, format string, args ...any) {
	b.errs = append(b.errs, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// Errors returns the accumulated validation failures.
func (b *Binding) Errors() []FieldError { return b.errs }

// Usable reports whether the binding passed validation entirely.
func (b *Binding) Usable() bool { return len(b.errs) == 0 }
