package metrics

import (
	"sync"
	"time"
)

// Collector aggregates engine metrics across investigations.
//
// Design Principles:
// - Thread-safe metric collection
// - Per-tool and per-phase tracking
// - Engine-level aggregation
// - Export to Prometheus text format
//
// Tracked Metrics:
// - Tool invocation counts, success/failure rates, durations
// - Phase transition counts and durations
// - Decision Maker call counts and token usage
// - Query counts, durations and final confidence
type Collector struct {
	startTime time.Time

	toolMetrics  map[string]*ToolMetrics
	phaseMetrics map[string]*PhaseMetrics
	mu           sync.RWMutex

	// Engine-level totals
	queryCount      int
	queryDurationMS int64
	confidenceSum   float64
	llmCalls        int
	llmFailures     int
	totalTokens     int
}

// ToolMetrics tracks metrics for a single tool across all queries.
type ToolMetrics struct {
	Tool            string
	InvocationCount int
	SuccessCount    int
	FailureCount    int
	TotalDurationMS int64
	AvgDurationMS   int64
	LastError       string
}

// PhaseMetrics tracks how often a phase ran and for how long.
type PhaseMetrics struct {
	Phase           string
	Count           int
	TotalDurationMS int64
	AvgDurationMS   int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime:    time.Now(),
		toolMetrics:  make(map[string]*ToolMetrics),
		phaseMetrics: make(map[string]*PhaseMetrics),
	}
}

// RecordToolExecution records one completed tool call.
func (c *Collector) RecordToolExecution(tool string, success bool, duration time.Duration, errMessage string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	metrics, exists := c.toolMetrics[tool]
	if !exists {
		metrics = &ToolMetrics{Tool: tool}
		c.toolMetrics[tool] = metrics
	}

	metrics.InvocationCount++
	metrics.TotalDurationMS += duration.Milliseconds()
	metrics.AvgDurationMS = metrics.TotalDurationMS / int64(metrics.InvocationCount)

	if success {
		metrics.SuccessCount++
	} else {
		metrics.FailureCount++
		metrics.LastError = errMessage
	}
}

// RecordPhase records one completed phase transition.
func (c *Collector) RecordPhase(phase string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	metrics, exists := c.phaseMetrics[phase]
	if !exists {
		metrics = &PhaseMetrics{Phase: phase}
		c.phaseMetrics[phase] = metrics
	}

	metrics.Count++
	metrics.TotalDurationMS += duration.Milliseconds()
	metrics.AvgDurationMS = metrics.TotalDurationMS / int64(metrics.Count)
}

// RecordLLMCall records one Decision Maker call.
func (c *Collector) RecordLLMCall(tokens int, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.llmCalls++
	c.totalTokens += tokens
	if failed {
		c.llmFailures++
	}
}

// RecordQuery records one completed investigation.
func (c *Collector) RecordQuery(duration time.Duration, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queryCount++
	c.queryDurationMS += duration.Milliseconds()
	c.confidenceSum += confidence
}

// GetToolMetrics returns metrics for a specific tool.
func (c *Collector) GetToolMetrics(tool string) *ToolMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	metrics, exists := c.toolMetrics[tool]
	if !exists {
		return nil
	}

	// Return a copy to avoid race conditions
	copy := *metrics
	return &copy
}

// GetAllToolMetrics returns metrics for all tools.
func (c *Collector) GetAllToolMetrics() map[string]*ToolMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]*ToolMetrics, len(c.toolMetrics))
	for name, metrics := range c.toolMetrics {
		copy := *metrics
		result[name] = &copy
	}

	return result
}

// GetEngineMetrics returns engine-level aggregate metrics.
func (c *Collector) GetEngineMetrics() EngineMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	totalInvocations := 0
	totalSuccess := 0
	totalFailures := 0

	for _, metrics := range c.toolMetrics {
		totalInvocations += metrics.InvocationCount
		totalSuccess += metrics.SuccessCount
		totalFailures += metrics.FailureCount
	}

	avgConfidence := 0.0
	avgQueryMS := int64(0)
	if c.queryCount > 0 {
		avgConfidence = c.confidenceSum / float64(c.queryCount)
		avgQueryMS = c.queryDurationMS / int64(c.queryCount)
	}

	return EngineMetrics{
		StartTime:        c.startTime,
		QueryCount:       c.queryCount,
		AvgQueryMS:       avgQueryMS,
		AvgConfidence:    avgConfidence,
		ToolInvocations:  totalInvocations,
		ToolSuccessCount: totalSuccess,
		ToolFailureCount: totalFailures,
		LLMCalls:         c.llmCalls,
		LLMFailures:      c.llmFailures,
		TotalTokens:      c.totalTokens,
		ToolCount:        len(c.toolMetrics),
	}
}

// ExportPrometheusMetrics implements the exporter interface.
func (c *Collector) ExportPrometheusMetrics() []PrometheusMetric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	metrics := make([]PrometheusMetric, 0, len(c.toolMetrics)*3+len(c.phaseMetrics)*2+5)

	for name, tool := range c.toolMetrics {
		metrics = append(metrics,
			CreateToolMetric(name, "tool_invocations_total", tool.InvocationCount, "Total tool invocations"),
			CreateToolMetric(name, "tool_failures_total", tool.FailureCount, "Total failed tool invocations"),
			CreateToolMetric(name, "tool_duration_ms_avg", tool.AvgDurationMS, "Average tool execution duration in milliseconds"),
		)
	}

	for name, phase := range c.phaseMetrics {
		metrics = append(metrics,
			CreatePhaseMetric(name, "phase_transitions_total", phase.Count, "Total phase transitions"),
			CreatePhaseMetric(name, "phase_duration_ms_avg", phase.AvgDurationMS, "Average phase duration in milliseconds"),
		)
	}

	avgConfidence := 0.0
	if c.queryCount > 0 {
		avgConfidence = c.confidenceSum / float64(c.queryCount)
	}

	metrics = append(metrics,
		PrometheusMetric{Name: "queries_total", Type: PrometheusCounter, Help: "Total investigations run", Value: c.queryCount},
		PrometheusMetric{Name: "query_confidence_avg", Type: PrometheusGauge, Help: "Average final confidence across investigations", Value: avgConfidence},
		PrometheusMetric{Name: "llm_calls_total", Type: PrometheusCounter, Help: "Total Decision Maker calls", Value: c.llmCalls},
		PrometheusMetric{Name: "llm_failures_total", Type: PrometheusCounter, Help: "Total failed Decision Maker calls", Value: c.llmFailures},
		PrometheusMetric{Name: "llm_tokens_total", Type: PrometheusCounter, Help: "Total tokens requested from the Decision Maker", Value: c.totalTokens},
	)

	return metrics
}

// GetName returns the collector name for metric prefixing.
func (c *Collector) GetName() string {
	return "engine"
}

// Reset resets all metrics (useful for testing).
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.toolMetrics = make(map[string]*ToolMetrics)
	c.phaseMetrics = make(map[string]*PhaseMetrics)
	c.queryCount = 0
	c.queryDurationMS = 0
	c.confidenceSum = 0
	c.llmCalls = 0
	c.llmFailures = 0
	c.totalTokens = 0
	c.startTime = time.Now()
}

// EngineMetrics represents engine-level aggregate metrics.
type EngineMetrics struct {
	StartTime        time.Time
	QueryCount       int
	AvgQueryMS       int64
	AvgConfidence    float64
	ToolInvocations  int
	ToolSuccessCount int
	ToolFailureCount int
	LLMCalls         int
	LLMFailures      int
	TotalTokens      int
	ToolCount        int
}

// SuccessRate returns the tool success rate as a percentage (0-100).
func (m *EngineMetrics) SuccessRate() float64 {
	if m.ToolInvocations == 0 {
		return 0.0
	}
	return float64(m.ToolSuccessCount) / float64(m.ToolInvocations) * 100.0
}
