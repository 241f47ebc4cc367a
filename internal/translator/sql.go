package translator

import (
	"fmt"
	"strings"

	"github.com/arcware-ai/intentq/internal/domain/binding"
	"github.com/arcware-ai/intentq/internal/domain/template"
)

// Dialect selects the positional placeholder style of the target driver.
type Dialect int

const (
	// DialectQuestion uses ? placeholders (sqlite, mysql, duckdb).
	DialectQuestion Dialect = iota
	// DialectDollar uses $1..$n placeholders (postgres).
	DialectDollar
)

// SQL converts %(name)s patterns into parameterized statements with
// positional driver args. Values never appear in the statement text.
type SQL struct {
	dialect Dialect
	kind    template.Backend
}

// NewSQL creates a translator for relational templates.
func NewSQL(dialect Dialect) *SQL {
	return &SQL{dialect: dialect, kind: template.BackendSQL}
}

// NewDuckDB creates a translator for analytical DuckDB templates. DuckDB
// only accepts ? placeholders.
func NewDuckDB() *SQL {
	return &SQL{dialect: DialectQuestion, kind: template.BackendDuckDB}
}

// Translate renders the pattern into a dialect statement and collects args in
// placeholder appearance order. Any placeholder without a bound value rejects
// the whole translation.
func (t *SQL) Translate(tpl template.Template, b *binding.Binding) (Query, error) {
	if err := requireUsable(tpl, b); err != nil {
		return nil, err
	}

	var (
		args    []any
		missing []string
	)
	stmt := tpl.ExpandPattern(func(name string) string {
		v, ok := b.Get(name)
		if !ok {
			missing = append(missing, name)
			return "?"
		}
		args = append(args, t.argValue(tpl, name, v))
		if t.dialect == DialectDollar {
			return fmt.Sprintf("$%d", len(args))
		}
		return "?"
	})
	if len(missing) > 0 {
		return nil, translationErr(tpl.ID(), "unbound placeholders: %s", strings.Join(missing, ", "))
	}

	return SQLQuery{Statement: stmt, Args: args, kind: t.kind}, nil
}

// argValue shapes one bound value for the driver. Fuzzy string parameters are
// wrapped for LIKE matching.
func (t *SQL) argValue(tpl template.Template, name string, v binding.Value) any {
	p, ok := tpl.ParameterByName(name)
	if ok && p.Fuzzy && v.Kind() == binding.KindString {
		return "%" + v.Text() + "%"
	}
	return v.Native()
}
