package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/arcware-ai/intentq/internal/backend"
	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/contextdoc"
	"github.com/arcware-ai/intentq/internal/domain/template"
	"github.com/arcware-ai/intentq/internal/usecase/executor"
)

func testKnowledge() domain.Knowledge {
	return domain.NewKnowledge("observability", nil, domain.Vocabulary{}, nil,
		"Nothing found.", "Data unavailable.")
}

func testResult(rows backend.Rows) executor.Result {
	return executor.Result{
		TemplateID: "recent-error-logs",
		Adapter:    "logs-sqlite",
		Backend:    template.BackendSQL,
		Rows:       rows,
		Duration:   42 * time.Millisecond,
		Similarity: 0.91,
	}
}

func TestFormat_RowsBecomeDocument(t *testing.T) {
	res := testResult(backend.Rows{
		{"service": "payments", "level": "error", "message": "timeout"},
		{"service": "payments", "level": "error", "message": "refused"},
	})

	doc := New().Format(testKnowledge(), res, "req-1")
	if doc.Confidence != 0.91 {
		t.Errorf("expected confidence from similarity, got %v", doc.Confidence)
	}
	if doc.Metadata[contextdoc.MetaTemplateID] != "recent-error-logs" {
		t.Errorf("missing template provenance: %v", doc.Metadata)
	}
	if doc.Metadata[contextdoc.MetaRowCount] != 2 {
		t.Errorf("expected result_count 2, got %v", doc.Metadata[contextdoc.MetaRowCount])
	}
	if doc.Metadata[contextdoc.MetaDurationMS] != int64(42) {
		t.Errorf("expected execution_time_ms 42, got %v", doc.Metadata[contextdoc.MetaDurationMS])
	}
	if !strings.Contains(doc.Content, "message=timeout") {
		t.Errorf("content missing row data: %q", doc.Content)
	}
	if strings.Index(doc.Content, "timeout") > strings.Index(doc.Content, "refused") {
		t.Error("rows must keep execution order")
	}
}

func TestFormat_Deterministic(t *testing.T) {
	res := testResult(backend.Rows{
		{"b": "2", "a": "1", "c": "3"},
	})

	first := New().Format(testKnowledge(), res, "req-1")
	for i := 0; i < 10; i++ {
		again := New().Format(testKnowledge(), res, "req-1")
		if again.Content != first.Content {
			t.Fatalf("formatting is not deterministic: %q vs %q", first.Content, again.Content)
		}
	}
	if first.Content != "a=1 | b=2 | c=3" {
		t.Errorf("expected key-sorted rendering, got %q", first.Content)
	}
}

func TestFormat_EmptyRowsUseCannedResponse(t *testing.T) {
	doc := New().Format(testKnowledge(), testResult(nil), "req-1")
	if doc.Content != "Nothing found." {
		t.Errorf("expected canned no-results message, got %q", doc.Content)
	}
	if doc.Confidence != 0 {
		t.Errorf("expected zero confidence for empty result, got %v", doc.Confidence)
	}
	if doc.Metadata[contextdoc.MetaRowCount] != 0 {
		t.Errorf("expected result_count 0, got %v", doc.Metadata[contextdoc.MetaRowCount])
	}
}

func TestFormat_AggregationsRendered(t *testing.T) {
	res := testResult(backend.Rows{
		{"_aggregations": map[string]any{
			"by_service": map[string]any{
				"buckets": []any{
					map[string]any{"key": "payments", "doc_count": float64(120)},
					map[string]any{"key": "checkout", "doc_count": float64(80)},
				},
			},
		}},
	})

	doc := New().Format(testKnowledge(), res, "req-1")
	if !strings.HasPrefix(doc.Content, "aggregations: ") {
		t.Errorf("expected aggregation rendering, got %q", doc.Content)
	}
	for _, want := range []string{"payments", "120", "checkout", "80"} {
		if !strings.Contains(doc.Content, want) {
			t.Errorf("content missing %q: %q", want, doc.Content)
		}
	}
}

func TestFailureDocument(t *testing.T) {
	doc := contextdoc.Failure("Data unavailable.", "execution_timeout", "req-9")
	if doc.Confidence != 0 {
		t.Errorf("expected zero confidence, got %v", doc.Confidence)
	}
	if doc.Metadata[contextdoc.MetaErrorCode] != "execution_timeout" {
		t.Errorf("expected error code metadata, got %v", doc.Metadata)
	}
	if doc.Content != "Data unavailable." {
		t.Errorf("raw error leaked: %q", doc.Content)
	}
}
