package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/arcware-ai/intentq/internal/domain"
)

// Extractor calls a chat-completion model to pull parameter candidates out of
// free text. Inference runs with temperature 0 so repeated extraction over the
// same query is deterministic.
type Extractor struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// ExtractorConfig holds the extraction model settings.
type ExtractorConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Logger    *zap.Logger
}

// NewExtractor creates an OpenAI-compatible extraction provider.
func NewExtractor(cfg *ExtractorConfig) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Extractor{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}
}

// ExtractCandidates implements domain.Extractor. The model is asked for a
// flat JSON object; values come back as strings and are schema-checked by the
// parameter extractor, never trusted here.
func (e *Extractor) ExtractCandidates(ctx context.Context, prompt string) (map[string]string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0,
		MaxTokens:   e.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w: %v", domain.ErrExtractionProviderError, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response: %w", domain.ErrExtractionProviderError)
	}

	content := resp.Choices[0].Message.Content
	raw, err := parseJSONObject(content)
	if err != nil {
		e.logger.Warn("Extraction response is not a JSON object",
			zap.String("model", e.model), zap.Error(err))
		return nil, fmt.Errorf("parse extraction response: %w", domain.ErrExtractionProviderError)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue // model could not find the parameter
		}
		out[k] = stringify(v)
	}
	return out, nil
}

// parseJSONObject finds and decodes the first JSON object in the completion.
// Some models wrap output in prose or code fences despite the response format.
func parseJSONObject(content string) (map[string]any, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in completion")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode completion JSON: %w", err)
	}
	return raw, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
