// Package template defines the immutable query template aggregate.
package template

import (
	"regexp"

	"github.com/arcware-ai/intentq/internal/domain"
)

// Backend identifies the template's target datasource family.
type Backend string

const (
	// BackendSQL targets relational databases via database/sql.
	BackendSQL Backend = "sql"
	// BackendElasticsearch targets an Elasticsearch cluster.
	BackendElasticsearch Backend = "elasticsearch"
	// BackendDuckDB targets an embedded DuckDB database.
	BackendDuckDB Backend = "duckdb"
	// BackendHTTP targets a curated HTTP source.
	BackendHTTP Backend = "http"
)

// IsValid checks if the backend is supported.
func (b Backend) IsValid() bool {
	switch b {
	case BackendSQL, BackendElasticsearch, BackendDuckDB, BackendHTTP:
		return true
	}
	return false
}

// ParamType is the declared type of a template parameter.
type ParamType string

const (
	TypeString ParamType = "string"
	TypeInt    ParamType = "int"
	TypeFloat  ParamType = "float"
	TypeDate   ParamType = "date"
	TypeEnum   ParamType = "enum"
	TypeBool   ParamType = "bool"
)

// IsValid checks if the parameter type is supported.
func (t ParamType) IsValid() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeDate, TypeEnum, TypeBool:
		return true
	}
	return false
}

// Parameter declares one named template parameter.
type Parameter struct {
	Name          string
	Type          ParamType
	Description   string
	Required      bool
	AllowedValues []string
	Default       string
	Example       string
	// Fuzzy marks a string parameter bound into a LIKE clause; the SQL
	// translator wraps its value with % wildcards.
	Fuzzy bool
}

// SemanticTags carry the template's intent taxonomy for embedding enrichment
// and reranking.
type SemanticTags struct {
	Action          string
	PrimaryEntity   string
	SecondaryEntity string
	Qualifiers      []string
}

// Template is an immutable parameterized query pattern. Published templates
// are never mutated; reload swaps the whole set.
type Template struct {
	id           string
	description  string
	nlExamples   []string
	queryPattern string
	parameters   []Parameter
	tags         []string
	semantic     SemanticTags
	backend      Backend
	// Backend-specific addressing.
	index        string // Elasticsearch index pattern (comma-separated / wildcard)
	endpointType string // Elasticsearch endpoint: _search (default) or _count
	source       string // curated HTTP source name
}

// sqlPlaceholderRe matches %(name)s placeholders used by SQL and DuckDB patterns.
var sqlPlaceholderRe = regexp.MustCompile(`%\(([a-zA-Z_][a-zA-Z0-9_]*)\)s`)

// esPlaceholderRe matches {{.name}} placeholders in Elasticsearch DSL bodies.
var esPlaceholderRe = regexp.MustCompile(`\{\{\s*\.([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// New validates and creates a Template. Placeholders in the query pattern must
// agree with the declared parameters in both directions.
func New(
	id, description string,
	nlExamples []string,
	queryPattern string,
	parameters []Parameter,
	tags []string,
	semantic SemanticTags,
	backend Backend,
	index, endpointType, source string,
) (Template, error) {
	if id == "" {
		return Template{}, domain.NewSchemaError(id, "template id is required")
	}
	if !backend.IsValid() {
		return Template{}, domain.NewSchemaError(id, "unknown backend %q", backend)
	}
	if len(nlExamples) == 0 {
		return Template{}, domain.NewSchemaError(id, "at least one natural-language example is required")
	}

	declared := make(map[string]Parameter, len(parameters))
	for _, p := range parameters {
		if p.Name == "" {
			return Template{}, domain.NewSchemaError(id, "parameter name is required")
		}
		if !p.Type.IsValid() {
			return Template{}, domain.NewSchemaError(id, "parameter %q has unknown type %q", p.Name, p.Type)
		}
		if p.Type == TypeEnum && len(p.AllowedValues) == 0 {
			return Template{}, domain.NewSchemaError(id, "enum parameter %q has no allowed_values", p.Name)
		}
		if _, dup := declared[p.Name]; dup {
			return Template{}, domain.NewSchemaError(id, "duplicate parameter %q", p.Name)
		}
		declared[p.Name] = p
	}

	switch backend {
	case BackendSQL, BackendDuckDB, BackendElasticsearch:
		if queryPattern == "" {
			return Template{}, domain.NewSchemaError(id, "query pattern is required for backend %q", backend)
		}
		used := placeholders(queryPattern, backend)
		for name := range used {
			if _, ok := declared[name]; !ok {
				return Template{}, domain.NewSchemaError(id, "placeholder %q has no parameter declaration", name)
			}
		}
		for name := range declared {
			if !used[name] {
				return Template{}, domain.NewSchemaError(id, "parameter %q does not appear in the query pattern", name)
			}
		}
	case BackendHTTP:
		// HTTP templates address a curated source; bound parameters become
		// query-string values, so no placeholder agreement applies.
		if source == "" {
			return Template{}, domain.NewSchemaError(id, "http template requires a source name")
		}
	}

	if backend == BackendElasticsearch {
		if endpointType == "" {
			endpointType = "_search"
		}
		if endpointType != "_search" && endpointType != "_count" {
			return Template{}, domain.NewSchemaError(id, "unknown endpoint type %q", endpointType)
		}
	}

	return Template{
		id:           id,
		description:  description,
		nlExamples:   nlExamples,
		queryPattern: queryPattern,
		parameters:   parameters,
		tags:         tags,
		semantic:     semantic,
		backend:      backend,
		index:        index,
		endpointType: endpointType,
		source:       source,
	}, nil
}

func placeholders(pattern string, backend Backend) map[string]bool {
	re := sqlPlaceholderRe
	if backend == BackendElasticsearch {
		re = esPlaceholderRe
	}
	used := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(pattern, -1) {
		used[m[1]] = true
	}
	return used
}

// ExpandPattern rewrites each %(name)s placeholder of the query pattern
// through expand, in order of appearance. Used by the SQL and DuckDB
// translators to produce dialect placeholders.
func (t Template) ExpandPattern(expand func(name string) string) string {
	return sqlPlaceholderRe.ReplaceAllStringFunc(t.queryPattern, func(m string) string {
		name := sqlPlaceholderRe.FindStringSubmatch(m)[1]
		return expand(name)
	})
}

// ID returns the template identifier.
func (t Template) ID() string { return t.id }

// Description returns the template description.
func (t Template) Description() string { return t.description }

// NLExamples returns the natural-language example phrases.
func (t Template) NLExamples() []string { return t.nlExamples }

// QueryPattern returns the templated query string.
func (t Template) QueryPattern() string { return t.queryPattern }

// Parameters returns the declared parameters.
func (t Template) Parameters() []Parameter { return t.parameters }

// ParameterByName looks up a declared parameter.
func (t Template) ParameterByName(name string) (Parameter, bool) {
	for _, p := range t.parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Tags returns the semantic tag list.
func (t Template) Tags() []string { return t.tags }

// Semantic returns the structured semantic tags.
func (t Template) Semantic() SemanticTags { return t.semantic }

// Backend returns the target backend family.
func (t Template) Backend() Backend { return t.backend }

// Index returns the Elasticsearch index pattern.
func (t Template) Index() string { return t.index }

// EndpointType returns the Elasticsearch endpoint (_search or _count).
func (t Template) EndpointType() string { return t.endpointType }

// Source returns the curated HTTP source name.
func (t Template) Source() string { return t.source }
