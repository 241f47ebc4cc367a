package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/contextdoc"
	healthuc "github.com/arcware-ai/intentq/internal/usecase/health"
)

type stubRetriever struct {
	docs []contextdoc.Document
	err  error

	gotDomain   string
	gotQuery    string
	gotStrategy string
}

func (r *stubRetriever) Retrieve(_ context.Context, domainName, queryText, strategy string) ([]contextdoc.Document, error) {
	r.gotDomain = domainName
	r.gotQuery = queryText
	r.gotStrategy = strategy
	return r.docs, r.err
}

type stubReloader struct {
	name   string
	err    error
	called int
}

func (r *stubReloader) DomainName() string { return r.name }

func (r *stubReloader) Reload(context.Context) error {
	r.called++
	return r.err
}

type stubPinger struct {
	name string
	err  error
}

func (p stubPinger) Name() string               { return p.name }
func (p stubPinger) Ping(context.Context) error { return p.err }

func newRouter(retriever Retriever, reloaders []Reloader, health *healthuc.Service) chi.Router {
	if health == nil {
		health = healthuc.New(nil, nil, nil)
	}
	srv := NewServer(retriever, reloaders, health, zap.NewNop())
	r := chi.NewRouter()
	srv.Register(r)
	return r
}

func doJSON(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRetrieve_OK(t *testing.T) {
	retriever := &stubRetriever{docs: []contextdoc.Document{{
		Content:    "message=timeout",
		Metadata:   map[string]any{contextdoc.MetaTemplateID: "recent-error-logs"},
		Confidence: 0.91,
	}}}
	r := newRouter(retriever, nil, nil)

	rr := doJSON(t, r, "POST", "/v1/retrieve",
		`{"domain":"observability","query":"recent payment errors","strategy":"first_success"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if retriever.gotDomain != "observability" || retriever.gotStrategy != "first_success" {
		t.Errorf("request not forwarded: domain=%q strategy=%q", retriever.gotDomain, retriever.gotStrategy)
	}

	var resp retrieveResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Documents) != 1 || resp.Documents[0].Content != "message=timeout" {
		t.Errorf("unexpected documents: %+v", resp.Documents)
	}
}

func TestRetrieve_InvalidBody_400(t *testing.T) {
	r := newRouter(&stubRetriever{}, nil, nil)

	rr := doJSON(t, r, "POST", "/v1/retrieve", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRetrieve_MissingFields_400(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing domain", `{"query":"q"}`},
		{"missing query", `{"domain":"observability"}`},
		{"blank query", `{"domain":"observability","query":"   "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(&stubRetriever{}, nil, nil)
			rr := doJSON(t, r, "POST", "/v1/retrieve", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != CodeBadRequest {
				t.Errorf("error code: got %s, want %s", errResp.Code, CodeBadRequest)
			}
		})
	}
}

func TestRetrieve_DomainNotFound_404(t *testing.T) {
	retriever := &stubRetriever{err: fmt.Errorf("%w: %q", domain.ErrDomainNotFound, "billing")}
	r := newRouter(retriever, nil, nil)

	rr := doJSON(t, r, "POST", "/v1/retrieve", `{"domain":"billing","query":"q"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("got %d, want %d", rr.Code, http.StatusNotFound)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != CodeDomainNotFound {
		t.Errorf("error code: got %s, want %s", errResp.Code, CodeDomainNotFound)
	}
}

func TestRetrieve_UnknownStrategy_400(t *testing.T) {
	retriever := &stubRetriever{err: fmt.Errorf("%w: %q", domain.ErrUnknownStrategy, "fastest")}
	r := newRouter(retriever, nil, nil)

	rr := doJSON(t, r, "POST", "/v1/retrieve", `{"domain":"observability","query":"q","strategy":"fastest"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRetrieve_InternalError_500(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("store corrupted")}
	r := newRouter(retriever, nil, nil)

	rr := doJSON(t, r, "POST", "/v1/retrieve", `{"domain":"observability","query":"q"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	// The raw error must not reach the caller.
	if strings.Contains(rr.Body.String(), "corrupted") {
		t.Errorf("internal detail leaked: %s", rr.Body.String())
	}
}

func TestReload_AllDomains(t *testing.T) {
	first := &stubReloader{name: "observability"}
	second := &stubReloader{name: "support"}
	r := newRouter(&stubRetriever{}, []Reloader{first, second}, nil)

	rr := doJSON(t, r, "POST", "/v1/admin/reload", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if first.called != 1 || second.called != 1 {
		t.Errorf("expected both domains reloaded, got %d and %d", first.called, second.called)
	}

	var resp reloadResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Reloaded) != 2 {
		t.Errorf("unexpected reload list: %v", resp.Reloaded)
	}
}

func TestReload_SingleDomain(t *testing.T) {
	first := &stubReloader{name: "observability"}
	second := &stubReloader{name: "support"}
	r := newRouter(&stubRetriever{}, []Reloader{first, second}, nil)

	rr := doJSON(t, r, "POST", "/v1/admin/reload", `{"domain":"support"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	if first.called != 0 || second.called != 1 {
		t.Errorf("expected only support reloaded, got %d and %d", first.called, second.called)
	}
}

func TestReload_UnknownDomain_404(t *testing.T) {
	r := newRouter(&stubRetriever{}, []Reloader{&stubReloader{name: "observability"}}, nil)

	rr := doJSON(t, r, "POST", "/v1/admin/reload", `{"domain":"billing"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestReload_SchemaError_422(t *testing.T) {
	broken := &stubReloader{
		name: "observability",
		err:  fmt.Errorf("%w: template %q: query references undeclared parameter", domain.ErrTemplateSchema, "recent-error-logs"),
	}
	r := newRouter(&stubRetriever{}, []Reloader{broken}, nil)

	rr := doJSON(t, r, "POST", "/v1/admin/reload", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
}

func TestHealth_OK(t *testing.T) {
	health := healthuc.New(nil, nil, []healthuc.AdapterPinger{stubPinger{name: "logs-sqlite"}})
	r := newRouter(&stubRetriever{}, nil, health)

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(healthuc.Healthy) {
		t.Errorf("status: got %s, want %s", resp.Status, healthuc.Healthy)
	}
	if resp.Checks["adapter:logs-sqlite"] != string(healthuc.CheckOK) {
		t.Errorf("unexpected checks: %v", resp.Checks)
	}
}

func TestHealth_Degraded_503(t *testing.T) {
	health := healthuc.New(nil, nil, []healthuc.AdapterPinger{
		stubPinger{name: "logs-sqlite"},
		stubPinger{name: "logs-elastic", err: errors.New("connection refused")},
	})
	r := newRouter(&stubRetriever{}, nil, health)

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Checks["adapter:logs-elastic"] != string(healthuc.CheckError) {
		t.Errorf("unexpected checks: %v", resp.Checks)
	}
}
