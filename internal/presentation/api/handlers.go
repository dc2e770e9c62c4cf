package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mshogin/lineage/internal/application/services"
	"github.com/mshogin/lineage/internal/domain/models"
	domainservices "github.com/mshogin/lineage/internal/domain/services"
	"github.com/mshogin/lineage/internal/infrastructure/config"
	"github.com/mshogin/lineage/internal/infrastructure/logging"
	"github.com/mshogin/lineage/internal/infrastructure/metrics"
)

// StoreStats reports store sizes for the health endpoint.
type StoreStats interface {
	Counts(ctx context.Context) (nodes, edges, documents int, err error)
}

// Handler handles HTTP requests for the lineage engine API.
type Handler struct {
	direct        *services.DirectQueryService
	orchestrator  *services.Orchestrator
	decisionMaker domainservices.DecisionMaker
	stats         StoreStats
	collector     *metrics.Collector
	exporter      *metrics.PrometheusExporter
	config        *config.Config
	logger        *logging.StructuredLogger
}

// NewHandler creates a new Handler instance.
func NewHandler(
	direct *services.DirectQueryService,
	orchestrator *services.Orchestrator,
	decisionMaker domainservices.DecisionMaker,
	stats StoreStats,
	collector *metrics.Collector,
	exporter *metrics.PrometheusExporter,
	cfg *config.Config,
	logger *logging.StructuredLogger,
) *Handler {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Handler{
		direct:        direct,
		orchestrator:  orchestrator,
		decisionMaker: decisionMaker,
		stats:         stats,
		collector:     collector,
		exporter:      exporter,
		config:        cfg,
		logger:        logger,
	}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
	}

	if h.decisionMaker != nil {
		provider := map[string]any{
			"name":    h.decisionMaker.Name(),
			"healthy": true,
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.decisionMaker.CheckHealth(ctx); err != nil {
			provider["healthy"] = false
			provider["error"] = err.Error()
			response["status"] = "degraded"
		}
		response["provider"] = provider
	}

	if h.stats != nil {
		nodes, edges, documents, err := h.stats.Counts(r.Context())
		if err != nil {
			response["status"] = "degraded"
			response["store"] = map[string]any{"error": err.Error()}
		} else {
			response["store"] = map[string]any{
				"nodes":     nodes,
				"edges":     edges,
				"documents": documents,
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Query handles POST /api/query: the single-pass retrieve-then-answer
// pipeline.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	response, err := h.direct.Query(r.Context(), &req)
	if err != nil {
		h.logger.Error("Direct query failed", err, map[string]interface{}{
			"query": req.Query,
		})
		h.sendErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.collector != nil {
		h.collector.RecordQuery(time.Since(start), response.Confidence)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// AgentQuery handles POST /api/agent/query: a full bounded
// investigation. With "stream": true the run is delivered as
// Server-Sent Events, one event per phase and tool call.
func (h *Handler) AgentQuery(w http.ResponseWriter, r *http.Request) {
	var req models.AgentQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	maxSteps := req.MaxSteps
	if maxSteps == 0 {
		maxSteps = h.config.Agent.MaxSteps
	}
	maxTools := req.MaxTools
	if maxTools == 0 {
		maxTools = h.config.Agent.MaxTools
	}

	if req.Stream {
		h.streamAgentQuery(w, r, &req, maxSteps, maxTools)
		return
	}

	tracer := metrics.NewTracer("", r.Header.Get(RequestIDHeader))
	root := tracer.StartSpan("agent.query", "")
	ctx := metrics.ContextWithTrace(r.Context(), root.TraceID, root.SpanID)

	start := time.Now()
	result, err := h.orchestrator.Run(ctx, req.Query, maxSteps, maxTools)
	if err != nil {
		tracer.EndSpan(root.SpanID, metrics.SpanStatusError)
		h.logger.Error("Agent run failed", err, map[string]interface{}{
			"query":    req.Query,
			"trace_id": root.TraceID,
		})
		if errors.Is(err, context.Canceled) {
			// Client went away; nothing useful to write.
			return
		}
		h.sendErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	tracer.AddSpanAttribute(root.SpanID, "steps", result.StepCount)
	tracer.AddSpanAttribute(root.SpanID, "confidence", result.Confidence)
	tracer.EndSpan(root.SpanID, metrics.SpanStatusOK)

	if h.collector != nil {
		h.collector.RecordQuery(time.Since(start), result.Confidence)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// streamAgentQuery delivers an agent run as SSE.
func (h *Handler) streamAgentQuery(w http.ResponseWriter, r *http.Request, req *models.AgentQueryRequest, maxSteps, maxTools int) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.sendErrorResponse(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	start := time.Now()
	for event := range h.orchestrator.RunStream(r.Context(), req.Query, maxSteps, maxTools) {
		if event.Type == "answer" && h.collector != nil {
			if result, ok := event.Data.(*models.FinalResult); ok {
				h.collector.RecordQuery(time.Since(start), result.Confidence)
			}
		}

		sse, err := event.ToSSE()
		if err != nil {
			continue
		}
		if _, err := w.Write([]byte(sse)); err != nil {
			return
		}
		flusher.Flush()
	}
}

// Metrics handles GET /metrics in Prometheus text format.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		h.sendErrorResponse(w, http.StatusNotFound, "Metrics disabled")
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.Write([]byte(h.exporter.Export()))
}

// sendErrorResponse sends a uniform error payload.
func (h *Handler) sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: message,
		Code:  statusCode,
	})
}
