package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshogin/lineage/internal/application/services"
	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/domain/services/tools"
	"github.com/mshogin/lineage/internal/infrastructure/config"
	"github.com/mshogin/lineage/internal/infrastructure/metrics"
	"github.com/mshogin/lineage/internal/testutil/fixtures"
)

// stubStats is a canned StoreStats for the health endpoint.
type stubStats struct {
	nodes, edges, documents int
	err                     error
}

func (s *stubStats) Counts(ctx context.Context) (int, int, int, error) {
	return s.nodes, s.edges, s.documents, s.err
}

func newTestHandler(dm *fixtures.MockDecisionMaker) (*Handler, *metrics.Collector) {
	vector := fixtures.NewMockVectorSearcher().WithDocuments(fixtures.SampleDocuments()...)
	keyword := fixtures.NewMockKeywordSearcher().WithDocuments(fixtures.SampleDocuments()...)
	graph := fixtures.NewMockGraphReader().WithReport(fixtures.SampleDependencyReport())
	embedder := fixtures.NewMockEmbedder()

	registry := tools.NewRegistry(tools.Deps{
		Vector:   vector,
		Keyword:  keyword,
		Graph:    graph,
		Embedder: embedder,
	})
	dispatcher := services.NewToolDispatcher(registry, 0)
	orchestrator := services.NewOrchestrator(dm, dispatcher, services.DefaultOrchestratorOptions())
	direct := services.NewDirectQueryService(embedder, vector, graph, dm)

	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter("lineage")
	exporter.RegisterCollector(collector)

	cfg := config.DefaultConfig()

	return NewHandler(direct, orchestrator, dm, &stubStats{nodes: 5, edges: 4, documents: 5}, collector, exporter, cfg, nil), collector
}

func agentScript() *fixtures.MockDecisionMaker {
	return fixtures.NewMockDecisionMaker().WithResponses(
		"1. Search for the dashboard\n2. Check dependencies",
		"search_vector_db",
		"The revenue dashboard is fed by revenue_daily.",
	)
}

func TestHandler_Health(t *testing.T) {
	handler, _ := newTestHandler(fixtures.NewMockDecisionMaker())
	router := NewRouter(handler, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])

	store, ok := body["store"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(5), store["nodes"])
	assert.Equal(t, float64(4), store["edges"])

	provider, ok := body["provider"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "mock", provider["name"])
	assert.Equal(t, true, provider["healthy"])
}

func TestHandler_Health_DegradedProvider(t *testing.T) {
	dm := fixtures.NewMockDecisionMaker().WithFailure(errors.New("connection refused"))
	handler, _ := newTestHandler(dm)
	router := NewRouter(handler, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestHandler_Query(t *testing.T) {
	dm := fixtures.NewMockDecisionMaker().WithResponses("Revenue flows from orders into revenue_daily.")
	handler, collector := newTestHandler(dm)
	router := NewRouter(handler, true)

	payload := `{"query": "What feeds into the revenue dashboard?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "What feeds into the revenue dashboard?", resp.Query)
	assert.Contains(t, resp.Answer, "revenue_daily")
	assert.NotEmpty(t, resp.ContextDocs)

	assert.Equal(t, 1, collector.GetEngineMetrics().QueryCount)
}

func TestHandler_Query_EmptyQuery(t *testing.T) {
	handler, _ := newTestHandler(fixtures.NewMockDecisionMaker())
	router := NewRouter(handler, true)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query": ""}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Error, "query")
}

func TestHandler_Query_InvalidBody(t *testing.T) {
	handler, _ := newTestHandler(fixtures.NewMockDecisionMaker())
	router := NewRouter(handler, true)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_AgentQuery(t *testing.T) {
	handler, collector := newTestHandler(agentScript())
	router := NewRouter(handler, true)

	payload := `{"query": "What feeds into the revenue dashboard?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/agent/query", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.FinalResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.PhaseDone, result.Phase)
	assert.Contains(t, result.FinalAnswer, "revenue_daily")
	assert.Equal(t, []string{"search_vector_db"}, result.ToolsInvoked)
	assert.Equal(t, 1.0, result.Confidence)

	assert.Equal(t, 1, collector.GetEngineMetrics().QueryCount)
}

func TestHandler_AgentQuery_LimitsOverride(t *testing.T) {
	dm := fixtures.NewMockDecisionMaker() // empty responses: every selection falls back
	handler, _ := newTestHandler(dm)
	router := NewRouter(handler, true)

	payload := `{"query": "What feeds into the revenue dashboard?", "max_steps": 4, "max_tools": 1}`
	req := httptest.NewRequest(http.MethodPost, "/api/agent/query", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.FinalResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.PhaseDone, result.Phase)
	assert.LessOrEqual(t, len(result.ToolResults), 1)
}

func TestHandler_AgentQuery_NegativeLimits(t *testing.T) {
	handler, _ := newTestHandler(fixtures.NewMockDecisionMaker())
	router := NewRouter(handler, true)

	payload := `{"query": "q", "max_steps": -1}`
	req := httptest.NewRequest(http.MethodPost, "/api/agent/query", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_AgentQuery_Stream(t *testing.T) {
	handler, _ := newTestHandler(agentScript())
	router := NewRouter(handler, true)

	payload := `{"query": "What feeds into the revenue dashboard?", "stream": true}`
	req := httptest.NewRequest(http.MethodPost, "/api/agent/query", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var types []string
	scanner := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		types = append(types, event.Type)
	}

	assert.Contains(t, types, "phase")
	assert.Contains(t, types, "tool")
	assert.Contains(t, types, "answer")
	assert.Equal(t, "done", types[len(types)-1])
}

func TestHandler_Metrics(t *testing.T) {
	handler, collector := newTestHandler(fixtures.NewMockDecisionMaker())
	collector.RecordQuery(0, 0.5)
	router := NewRouter(handler, true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lineage_queries_total 1")
}

func TestHandler_Metrics_Disabled(t *testing.T) {
	handler, _ := newTestHandler(fixtures.NewMockDecisionMaker())
	router := NewRouter(handler, false)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	handler, _ := newTestHandler(fixtures.NewMockDecisionMaker())
	router := NewRouter(handler, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDMiddleware_PreservesID(t *testing.T) {
	handler, _ := newTestHandler(fixtures.NewMockDecisionMaker())
	router := NewRouter(handler, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler, _ := newTestHandler(fixtures.NewMockDecisionMaker())
	router := NewRouter(handler, true)

	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
