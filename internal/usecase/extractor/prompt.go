package extractor

import (
	"fmt"
	"strings"

	"github.com/arcware-ai/intentq/internal/domain/template"
)

// buildPrompt renders the extraction prompt from the template's parameter
// declarations. The model is told to return a flat JSON object with string
// values and null for anything it cannot find.
func buildPrompt(tpl template.Template, queryText string) string {
	var b strings.Builder
	b.WriteString("Extract the following parameters from the user query.\n")
	b.WriteString("Return ONLY a valid JSON object with the extracted values as strings.\n")
	b.WriteString("Use null for parameters that cannot be found.\n\n")
	b.WriteString("Parameters needed:\n")

	for _, p := range tpl.Parameters() {
		fmt.Fprintf(&b, "- %s (%s): %s", p.Name, p.Type, p.Description)
		if p.Example != "" {
			fmt.Fprintf(&b, " (Example: %s)", p.Example)
		}
		if len(p.AllowedValues) > 0 {
			fmt.Fprintf(&b, " - Allowed values: %s", strings.Join(p.AllowedValues, ", "))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nUser query: %q\n\nJSON:", queryText)
	return b.String()
}
