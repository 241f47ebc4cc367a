package translator

import (
	"encoding/json"
	"strings"
	texttemplate "text/template"

	"github.com/arcware-ai/intentq/internal/domain/binding"
	"github.com/arcware-ai/intentq/internal/domain/template"
)

// Elastic renders DSL patterns with {{.name}} placeholders into request
// bodies. The rendered body must parse as JSON before it is allowed to reach
// a cluster.
type Elastic struct{}

// NewElastic creates a translator for Elasticsearch templates.
func NewElastic() *Elastic { return &Elastic{} }

// Translate renders the DSL body and validates the result as JSON.
func (t *Elastic) Translate(tpl template.Template, b *binding.Binding) (Query, error) {
	if err := requireUsable(tpl, b); err != nil {
		return nil, err
	}

	parsed, err := texttemplate.New(tpl.ID()).Option("missingkey=error").Parse(tpl.QueryPattern())
	if err != nil {
		return nil, translationErr(tpl.ID(), "parse DSL pattern: %v", err)
	}

	var buf strings.Builder
	if err := parsed.Execute(&buf, t.renderValues(b)); err != nil {
		return nil, translationErr(tpl.ID(), "render DSL pattern: %v", err)
	}

	body := []byte(buf.String())
	var probe any
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, translationErr(tpl.ID(), "rendered DSL is not valid JSON: %v", err)
	}

	return ElasticQuery{
		Index:    tpl.Index(),
		Endpoint: tpl.EndpointType(),
		Body:     body,
	}, nil
}

// renderValues maps bound values into template data. Textual kinds are
// JSON-escaped so patterns can place them inside quoted strings safely;
// numeric and boolean kinds render as bare literals.
func (t *Elastic) renderValues(b *binding.Binding) map[string]string {
	data := make(map[string]string)
	for name, v := range b.Values() {
		switch v.Kind() {
		case binding.KindInt, binding.KindFloat, binding.KindBool:
			data[name] = v.Text()
		default:
			data[name] = jsonEscape(v.Text())
		}
	}
	return data
}

// jsonEscape escapes a string for embedding inside a JSON string literal,
// without the surrounding quotes.
func jsonEscape(s string) string {
	quoted, err := json.Marshal(s)
	if err != nil {
		return s
	}
	return string(quoted[1 : len(quoted)-1])
}
