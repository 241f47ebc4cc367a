// Package formatter renders executor results into context documents. Output
// is deterministic: identical rows always format to identical content.
package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arcware-ai/intentq/internal/backend"
	"github.com/arcware-ai/intentq/internal/backend/elastic"
	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/contextdoc"
	"github.com/arcware-ai/intentq/internal/usecase/executor"
)

// Service formats results for one knowledge domain.
type Service struct{}

// New creates a formatter.
func New() *Service { return &Service{} }

// Format renders one successful execution result. Empty result sets become a
// zero-confidence document carrying the domain's canned message.
func (s *Service) Format(kn domain.Knowledge, res executor.Result, requestID string) contextdoc.Document {
	meta := map[string]any{
		contextdoc.MetaSource:     res.Adapter,
		contextdoc.MetaTemplateID: res.TemplateID,
		contextdoc.MetaBackend:    string(res.Backend),
		contextdoc.MetaRequestID:  requestID,
		contextdoc.MetaSimilarity: res.Similarity,
		contextdoc.MetaRowCount:   len(res.Rows),
		contextdoc.MetaDurationMS: res.Duration.Milliseconds(),
	}

	if len(res.Rows) == 0 {
		return contextdoc.Document{
			Content:    kn.NoResultsResponse(),
			Metadata:   meta,
			Confidence: 0,
		}
	}

	return contextdoc.Document{
		Content:    renderRows(res.Rows),
		Metadata:   meta,
		Confidence: res.Similarity,
	}
}

// renderRows produces a readable plain-text block, one row per line, fields
// sorted by key. Elasticsearch metadata keys render through dedicated forms.
func renderRows(rows backend.Rows) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		if aggs, ok := row[elastic.KeyAggregations]; ok && len(row) == 1 {
			b.WriteString("aggregations: ")
			b.WriteString(renderValue(aggs))
			continue
		}
		b.WriteString(renderRow(row))
	}
	return b.String()
}

func renderRow(row map[string]any) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch k {
		case elastic.KeyID, elastic.KeyScore:
			continue
		case elastic.KeyHighlight:
			parts = append(parts, "highlight="+renderValue(row[k]))
		default:
			parts = append(parts, k+"="+renderValue(row[k]))
		}
	}
	return strings.Join(parts, " | ")
}

func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; keep integral values readable.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+renderValue(t[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, renderValue(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string][]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+strings.Join(t[k], "; "))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", t)
	}
}
