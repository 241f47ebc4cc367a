// Package contextdoc defines the uniform result unit returned to callers.
package contextdoc

// Document is the normalized retrieval output: content text plus provenance
// metadata and a confidence score. Every pipeline outcome, including failures
// and empty result sets, is expressed as a Document.
type Document struct {
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Confidence float64        `json:"confidence"`
}

// Metadata keys shared across backends.
const (
	MetaSource     = "source"
	MetaTemplateID = "template_id"
	MetaBackend    = "backend"
	MetaRequestID  = "request_id"
	MetaSimilarity = "similarity"
	MetaRowCount   = "result_count"
	MetaDurationMS = "execution_time_ms"
	MetaErrorCode  = "error"
)

// Failure builds a failure document carrying the domain's canned message and
// an internal error code. Raw errors never reach the caller.
func Failure(message, errorCode string, requestID string) Document {
	return Document{
		Content: message,
		Metadata: map[string]any{
			MetaSource:    "intent",
			MetaErrorCode: errorCode,
			MetaRequestID: requestID,
		},
		Confidence: 0,
	}
}
