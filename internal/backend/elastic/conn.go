// Package elastic executes translated DSL bodies against an Elasticsearch
// cluster and normalizes hit, aggregation, and highlight payloads into rows.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/arcware-ai/intentq/internal/backend"
	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/translator"
)

// Reserved row keys carrying hit metadata next to _source fields.
const (
	KeyID           = "_id"
	KeyScore        = "_score"
	KeyHighlight    = "_highlight"
	KeyAggregations = "_aggregations"
	KeyCount        = "count"
)

// Conn wraps one cluster client.
type Conn struct {
	es *elasticsearch.Client
}

// Open creates a cluster client.
func Open(addresses []string, username, password string) (*Conn, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Conn{es: es}, nil
}

// New wraps an already built client. Used by tests with a stub transport.
func New(es *elasticsearch.Client) *Conn { return &Conn{es: es} }

// Execute dispatches the rendered body to the template's endpoint.
func (c *Conn) Execute(ctx context.Context, q translator.Query) (backend.Rows, error) {
	eq, ok := q.(translator.ElasticQuery)
	if !ok {
		return nil, fmt.Errorf("%w: elasticsearch adapter got %T", domain.ErrTranslation, q)
	}
	if eq.Endpoint == "_count" {
		return c.count(ctx, eq)
	}
	return c.search(ctx, eq)
}

func (c *Conn) search(ctx context.Context, q translator.ElasticQuery) (backend.Rows, error) {
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(q.Index),
		c.es.Search.WithBody(bytes.NewReader(q.Body)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrConnection, err)
	}
	defer res.Body.Close()

	body, err := readAPIBody(res.StatusCode, res.Body, res.IsError())
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.Index, err)
	}

	var payload struct {
		Hits struct {
			Hits []struct {
				ID        string              `json:"_id"`
				Score     *float64            `json:"_score"`
				Source    map[string]any      `json:"_source"`
				Highlight map[string][]string `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations map[string]any `json:"aggregations"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	var out backend.Rows
	for _, hit := range payload.Hits.Hits {
		row := make(map[string]any, len(hit.Source)+3)
		for k, v := range hit.Source {
			row[k] = v
		}
		row[KeyID] = hit.ID
		if hit.Score != nil {
			row[KeyScore] = *hit.Score
		}
		if len(hit.Highlight) > 0 {
			row[KeyHighlight] = hit.Highlight
		}
		out = append(out, row)
	}
	if len(payload.Aggregations) > 0 {
		out = append(out, map[string]any{KeyAggregations: payload.Aggregations})
	}
	return out, nil
}

func (c *Conn) count(ctx context.Context, q translator.ElasticQuery) (backend.Rows, error) {
	res, err := c.es.Count(
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(q.Index),
		c.es.Count.WithBody(bytes.NewReader(q.Body)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: count: %v", domain.ErrConnection, err)
	}
	defer res.Body.Close()

	body, err := readAPIBody(res.StatusCode, res.Body, res.IsError())
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", q.Index, err)
	}

	var payload struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode count response: %w", err)
	}
	return backend.Rows{{KeyCount: payload.Count}}, nil
}

// Ping verifies the cluster is reachable.
func (c *Conn) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: cluster replied %s", domain.ErrConnection, res.Status())
	}
	return nil
}

// Close is a no-op; the client holds no pooled resources beyond its
// http.Transport.
func (c *Conn) Close() error { return nil }

func readAPIBody(status int, r io.Reader, isError bool) ([]byte, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if isError {
		return nil, fmt.Errorf("cluster replied %d: %s", status, firstLine(body))
	}
	return body, nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i > 0 {
		s = s[:i]
	}
	const max = 200
	if len(s) > max {
		s = s[:max]
	}
	return s
}
