package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/jobmarket-crawler/internal/analysis"
	"github.com/JakeFAU/jobmarket-crawler/internal/app"
	"github.com/JakeFAU/jobmarket-crawler/internal/config"
	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
	"github.com/JakeFAU/jobmarket-crawler/internal/model"
)

func TestServer_CreateAnalysis_ReturnsResult(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{outcome: sampleOutcome()}
	server := newTestServer(analyzer)

	body := `{"query":"AI","location":"Egypt","max_pages":2,"skills":["Python"]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp analysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Len(t, resp.Listings, 1)
	assert.Equal(t, "memory://runs/run-1/report.md", resp.Artifacts["report.md"])
	assert.Empty(t, resp.ExportError)

	got := analyzer.lastQuery()
	assert.Equal(t, model.SearchQuery{Query: "AI", Location: "Egypt", MaxPages: 2, Skills: []string{"Python"}}, got)
}

func TestServer_CreateAnalysis_MarkdownFormat(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAnalyzer{outcome: sampleOutcome()})
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses",
		strings.NewReader(`{"query":"AI","location":"Egypt","format":"md"}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "run-1", rec.Header().Get("X-Run-ID"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# Job Market Report: AI in Egypt"))
}

func TestServer_CreateAnalysis_ReportsExportError(t *testing.T) {
	t.Parallel()

	outcome := sampleOutcome()
	outcome.ExportErr = errors.New("bucket gone")
	server := newTestServer(&fakeAnalyzer{outcome: outcome})

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(`{"query":"AI","location":"Egypt"}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"export_error":"bucket gone"`)
}

func TestServer_CreateAnalysis_Errors(t *testing.T) {
	t.Parallel()

	firstPage := fmt.Errorf("%w: %w", crawler.ErrNoListings,
		&crawler.FetchError{URL: "https://site.test/search", Kind: crawler.FetchErrorStatus, StatusCode: 503})

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantBody string
	}{
		{"invalid json", "{invalid", nil, http.StatusBadRequest, "invalid JSON"},
		{"unknown field", `{"query":"AI","pages":3}`, nil, http.StatusBadRequest, "invalid JSON"},
		{"unknown format", `{"query":"AI","location":"Egypt","format":"pdf"}`, nil, http.StatusBadRequest, "unknown format"},
		{"invalid query", `{"query":"","location":"Egypt"}`,
			fmt.Errorf("%w: query is required", crawler.ErrInvalidQuery), http.StatusBadRequest, "query is required"},
		{"first page failed", `{"query":"AI","location":"Egypt"}`, firstPage, http.StatusBadGateway, "status 503"},
		{"unexpected", `{"query":"AI","location":"Egypt"}`, errors.New("boom"), http.StatusInternalServerError, "analysis failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := newTestServer(&fakeAnalyzer{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)
			require.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAnalyzer{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	NewServer(nil, config.Config{}, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_CreateAnalysisWithoutAnalyzer(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, config.Config{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(`{"query":"AI","location":"Egypt"}`))
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "analyzer not configured")
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAnalyzer{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Auth: config.AuthConfig{Enabled: true, APIKey: "secret"}}
	server := NewServer(&fakeAnalyzer{outcome: sampleOutcome()}, cfg, zap.NewNop())

	body := `{"query":"AI","location":"Egypt"}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(body)))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code, "probes stay open")
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAnalyzer{panicMsg: "kaboom"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(`{"query":"AI","location":"Egypt"}`))
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func TestServer_TimeoutMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Server: config.ServerConfig{RequestTimeout: 20 * time.Millisecond}}
	server := NewServer(&fakeAnalyzer{block: true}, cfg, zap.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(`{"query":"AI","location":"Egypt"}`))
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "request timed out")
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAnalyzer{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "given-id")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, "given-id", rec.Header().Get("X-Request-ID"))
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	server := NewServer(&fakeAnalyzer{}, config.Config{}, zap.New(core))

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", strings.NewReader(`{`))
	req.Header.Set("X-Request-ID", "log-id")
	server.Handler().ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "log-id", fields["request_id"])
	assert.Equal(t, int64(http.StatusBadRequest), fields["status"])
	assert.Equal(t, "/v1/analyses", fields["path"])
}

// --- helpers/fakes ---

type fakeAnalyzer struct {
	mu       sync.Mutex
	outcome  app.Outcome
	err      error
	panicMsg string
	block    bool
	queries  []model.SearchQuery
}

func (f *fakeAnalyzer) Query(query, location string, pages int, skills []string) model.SearchQuery {
	return model.SearchQuery{Query: query, Location: location, MaxPages: pages, Skills: skills}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, q model.SearchQuery) (app.Outcome, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.block {
		<-ctx.Done()
		return app.Outcome{}, nil
	}
	return f.outcome, f.err
}

func (f *fakeAnalyzer) lastQuery() model.SearchQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return model.SearchQuery{}
	}
	return f.queries[len(f.queries)-1]
}

func sampleOutcome() app.Outcome {
	listings := []model.JobListing{
		{Title: "ML Engineer", Company: "Acme", Location: "Cairo", Link: "https://site.test/jobs/1", SourcePage: 1},
	}
	return app.Outcome{
		Result: crawler.Result{
			RunID:        "run-1",
			Query:        model.SearchQuery{Query: "AI", Location: "Egypt", MaxPages: 1},
			PagesFetched: 1,
			Listings:     listings,
			Stats:        analysis.Aggregate(listings, nil),
		},
		Artifacts: app.Artifacts{"report.md": "memory://runs/run-1/report.md"},
	}
}

func newTestServer(analyzer Analyzer) *Server {
	return NewServer(analyzer, config.Config{}, zap.NewNop())
}

