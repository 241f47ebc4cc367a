// Package httpsource fetches curated HTTP datasources. The base URL always
// comes from the translated query, which in turn only resolves registered
// sources.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arcware-ai/intentq/internal/backend"
	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/translator"
)

const maxBodyBytes = 4 << 20

// Conn fetches one domain's curated sources.
type Conn struct {
	client *http.Client
}

// New creates a connection with its own client and timeout. Per-request
// deadlines still come from the caller's context.
func New(timeout time.Duration) *Conn {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Conn{client: &http.Client{Timeout: timeout}}
}

// Execute issues one GET with the bound values as query parameters.
func (c *Conn) Execute(ctx context.Context, q translator.Query) (backend.Rows, error) {
	hq, ok := q.(translator.HTTPQuery)
	if !ok {
		return nil, fmt.Errorf("%w: http adapter got %T", domain.ErrTranslation, q)
	}

	target := hq.URL
	if enc := hq.Params.Encode(); enc != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader(hq.Formats))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch source: %v", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read source response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("source replied %d", resp.StatusCode)
	}

	return decode(body, resp.Header.Get("Content-Type")), nil
}

// Ping is a no-op; sources are external services probed lazily.
func (c *Conn) Ping(ctx context.Context) error { return nil }

// Close releases idle connections.
func (c *Conn) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// decode turns a source payload into rows. JSON objects become one row, JSON
// arrays one row per element, anything else a single raw-content row.
func decode(body []byte, contentType string) backend.Rows {
	if strings.Contains(contentType, "json") || looksLikeJSON(body) {
		var obj map[string]any
		if err := json.Unmarshal(body, &obj); err == nil {
			return backend.Rows{obj}
		}
		var arr []map[string]any
		if err := json.Unmarshal(body, &arr); err == nil {
			return arr
		}
	}
	return backend.Rows{{"content": string(body)}}
}

func looksLikeJSON(b []byte) bool {
	s := strings.TrimSpace(string(b))
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

func acceptHeader(formats []string) string {
	var parts []string
	for _, f := range formats {
		switch strings.ToLower(f) {
		case "json":
			parts = append(parts, "application/json")
		case "xml":
			parts = append(parts, "application/xml")
		case "csv":
			parts = append(parts, "text/csv")
		case "text", "txt":
			parts = append(parts, "text/plain")
		}
	}
	if len(parts) == 0 {
		return "application/json, text/plain;q=0.5"
	}
	return strings.Join(parts, ", ")
}
