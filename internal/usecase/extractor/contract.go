package extractor

import "context"

// Extractor is the LLM collaborator producing loosely-typed parameter
// candidates from a prompt. Values are schema-checked locally; nothing the
// model returns is trusted.
type Extractor interface {
	ExtractCandidates(ctx context.Context, prompt string) (map[string]string, error)
}
