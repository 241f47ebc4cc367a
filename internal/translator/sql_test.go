package translator

import (
	"errors"
	"testing"

	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/binding"
	"github.com/arcware-ai/intentq/internal/domain/template"
)

func sqlTemplate(t *testing.T, pattern string, params []template.Parameter) template.Template {
	t.Helper()
	tpl, err := template.New("tpl", "", []string{"x"}, pattern, params, nil,
		template.SemanticTags{}, template.BackendSQL, "", "", "")
	if err != nil {
		t.Fatalf("build template: %v", err)
	}
	return tpl
}

func TestSQLTranslate_QuestionDialect(t *testing.T) {
	tpl := sqlTemplate(t,
		"SELECT * FROM logs WHERE service = %(service)s AND level = %(level)s",
		[]template.Parameter{
			{Name: "service", Type: template.TypeString, Required: true},
			{Name: "level", Type: template.TypeEnum, AllowedValues: []string{"error", "warn"}},
		})

	b := binding.New("tpl")
	b.Set("service", binding.StringValue("payments"))
	b.Set("level", binding.EnumValue("error"))

	q, err := NewSQL(DialectQuestion).Translate(tpl, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sq := q.(SQLQuery)
	want := "SELECT * FROM logs WHERE service = ? AND level = ?"
	if sq.Statement != want {
		t.Errorf("expected %q, got %q", want, sq.Statement)
	}
	if len(sq.Args) != 2 || sq.Args[0] != "payments" || sq.Args[1] != "error" {
		t.Errorf("unexpected args: %v", sq.Args)
	}
	if sq.Backend() != template.BackendSQL {
		t.Errorf("expected sql backend, got %v", sq.Backend())
	}
}

func TestSQLTranslate_DollarDialect(t *testing.T) {
	tpl := sqlTemplate(t,
		"SELECT * FROM logs WHERE a = %(a)s OR b = %(b)s OR a2 = %(a)s",
		[]template.Parameter{
			{Name: "a", Type: template.TypeString},
			{Name: "b", Type: template.TypeInt},
		})

	b := binding.New("tpl")
	b.Set("a", binding.StringValue("x"))
	b.Set("b", binding.IntValue(7))

	q, err := NewSQL(DialectDollar).Translate(tpl, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sq := q.(SQLQuery)
	want := "SELECT * FROM logs WHERE a = $1 OR b = $2 OR a2 = $3"
	if sq.Statement != want {
		t.Errorf("expected %q, got %q", want, sq.Statement)
	}
	// Repeated placeholders repeat the arg.
	if len(sq.Args) != 3 || sq.Args[2] != "x" {
		t.Errorf("unexpected args: %v", sq.Args)
	}
}

func TestSQLTranslate_ValueNeverInterpolated(t *testing.T) {
	tpl := sqlTemplate(t,
		"SELECT * FROM logs WHERE message LIKE %(phrase)s",
		[]template.Parameter{{Name: "phrase", Type: template.TypeString, Fuzzy: true}})

	b := binding.New("tpl")
	b.Set("phrase", binding.StringValue("'; DROP TABLE logs; --"))

	q, err := NewSQL(DialectQuestion).Translate(tpl, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sq := q.(SQLQuery)
	if sq.Statement != "SELECT * FROM logs WHERE message LIKE ?" {
		t.Errorf("value leaked into statement: %q", sq.Statement)
	}
	if sq.Args[0] != "%'; DROP TABLE logs; --%" {
		t.Errorf("expected fuzzy-wrapped arg, got %v", sq.Args[0])
	}
}

func TestSQLTranslate_UnboundPlaceholderRejected(t *testing.T) {
	tpl := sqlTemplate(t,
		"SELECT * FROM logs WHERE service = %(service)s",
		[]template.Parameter{{Name: "service", Type: template.TypeString, Required: true}})

	_, err := NewSQL(DialectQuestion).Translate(tpl, binding.New("tpl"))
	if !errors.Is(err, domain.ErrTranslation) {
		t.Errorf("expected ErrTranslation, got %v", err)
	}
}

func TestSQLTranslate_UnusableBindingRejected(t *testing.T) {
	tpl := sqlTemplate(t,
		"SELECT * FROM logs WHERE service = %(service)s",
		[]template.Parameter{{Name: "service", Type: template.TypeString, Required: true}})

	b := binding.New("tpl")
	b.AddError("service", "required parameter not found in query")

	_, err := NewSQL(DialectQuestion).Translate(tpl, b)
	if !errors.Is(err, domain.ErrParameterValidation) {
		t.Errorf("expected ErrParameterValidation, got %v", err)
	}
}

func TestDuckDBTranslate_QuestionPlaceholders(t *testing.T) {
	tpl, err := template.New("tpl", "", []string{"x"},
		"SELECT quantile_cont(value, 0.95) FROM metrics WHERE service = %(service)s",
		[]template.Parameter{{Name: "service", Type: template.TypeString, Required: true}},
		nil, template.SemanticTags{}, template.BackendDuckDB, "", "", "")
	if err != nil {
		t.Fatalf("build template: %v", err)
	}

	b := binding.New("tpl")
	b.Set("service", binding.StringValue("checkout"))

	q, err := NewDuckDB().Translate(tpl, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sq := q.(SQLQuery)
	if sq.Statement != "SELECT quantile_cont(value, 0.95) FROM metrics WHERE service = ?" {
		t.Errorf("unexpected statement: %q", sq.Statement)
	}
	if sq.Backend() != template.BackendDuckDB {
		t.Errorf("expected duckdb backend, got %v", sq.Backend())
	}
}
