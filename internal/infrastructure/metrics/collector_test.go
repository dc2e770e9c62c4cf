package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()

	assert.NotNil(t, collector.toolMetrics)
	assert.NotNil(t, collector.phaseMetrics)
	assert.NotZero(t, collector.startTime)
}

func TestCollector_RecordToolExecution_SingleTool(t *testing.T) {
	collector := NewCollector()

	collector.RecordToolExecution("search_vector_db", true, 100*time.Millisecond, "")

	metrics := collector.GetToolMetrics("search_vector_db")
	require.NotNil(t, metrics)

	assert.Equal(t, "search_vector_db", metrics.Tool)
	assert.Equal(t, 1, metrics.InvocationCount)
	assert.Equal(t, int64(100), metrics.TotalDurationMS)
	assert.Equal(t, int64(100), metrics.AvgDurationMS)
	assert.Equal(t, 1, metrics.SuccessCount)
	assert.Equal(t, 0, metrics.FailureCount)
	assert.Empty(t, metrics.LastError)
}

func TestCollector_RecordToolExecution_MultipleExecutions(t *testing.T) {
	collector := NewCollector()

	collector.RecordToolExecution("query_lineage_graph", true, 100*time.Millisecond, "")
	collector.RecordToolExecution("query_lineage_graph", true, 200*time.Millisecond, "")

	metrics := collector.GetToolMetrics("query_lineage_graph")
	require.NotNil(t, metrics)

	assert.Equal(t, 2, metrics.InvocationCount)
	assert.Equal(t, int64(300), metrics.TotalDurationMS)
	assert.Equal(t, int64(150), metrics.AvgDurationMS) // (100+200)/2
	assert.Equal(t, 2, metrics.SuccessCount)
}

func TestCollector_RecordToolExecution_WithError(t *testing.T) {
	collector := NewCollector()

	collector.RecordToolExecution("validate_schema_compatibility", false, 50*time.Millisecond, "node not found: x")

	metrics := collector.GetToolMetrics("validate_schema_compatibility")
	require.NotNil(t, metrics)

	assert.Equal(t, 0, metrics.SuccessCount)
	assert.Equal(t, 1, metrics.FailureCount)
	assert.Equal(t, "node not found: x", metrics.LastError)
}

func TestCollector_GetToolMetrics_Unknown(t *testing.T) {
	collector := NewCollector()

	assert.Nil(t, collector.GetToolMetrics("no_such_tool"))
}

func TestCollector_RecordPhase(t *testing.T) {
	collector := NewCollector()

	collector.RecordPhase("investigate", 10*time.Millisecond)
	collector.RecordPhase("investigate", 30*time.Millisecond)
	collector.RecordPhase("synthesize", 5*time.Millisecond)

	metrics := collector.GetEngineMetrics()
	assert.NotZero(t, metrics.StartTime)

	collector.mu.RLock()
	defer collector.mu.RUnlock()
	investigate := collector.phaseMetrics["investigate"]
	require.NotNil(t, investigate)
	assert.Equal(t, 2, investigate.Count)
	assert.Equal(t, int64(40), investigate.TotalDurationMS)
	assert.Equal(t, int64(20), investigate.AvgDurationMS)
}

func TestCollector_GetEngineMetrics(t *testing.T) {
	collector := NewCollector()

	collector.RecordToolExecution("search_vector_db", true, 100*time.Millisecond, "")
	collector.RecordToolExecution("search_vector_db", false, 100*time.Millisecond, "timeout")
	collector.RecordLLMCall(256, false)
	collector.RecordLLMCall(0, true)
	collector.RecordQuery(400*time.Millisecond, 0.5)
	collector.RecordQuery(600*time.Millisecond, 1.0)

	metrics := collector.GetEngineMetrics()

	assert.Equal(t, 2, metrics.QueryCount)
	assert.Equal(t, int64(500), metrics.AvgQueryMS)
	assert.InDelta(t, 0.75, metrics.AvgConfidence, 0.001)
	assert.Equal(t, 2, metrics.ToolInvocations)
	assert.Equal(t, 1, metrics.ToolSuccessCount)
	assert.Equal(t, 1, metrics.ToolFailureCount)
	assert.Equal(t, 2, metrics.LLMCalls)
	assert.Equal(t, 1, metrics.LLMFailures)
	assert.Equal(t, 256, metrics.TotalTokens)
	assert.Equal(t, 1, metrics.ToolCount)
	assert.InDelta(t, 50.0, metrics.SuccessRate(), 0.001)
}

func TestEngineMetrics_SuccessRate_NoInvocations(t *testing.T) {
	metrics := EngineMetrics{}

	assert.Equal(t, 0.0, metrics.SuccessRate())
}

func TestCollector_ExportPrometheusMetrics(t *testing.T) {
	collector := NewCollector()

	collector.RecordToolExecution("search_vector_db", true, 100*time.Millisecond, "")
	collector.RecordPhase("plan", 5*time.Millisecond)
	collector.RecordQuery(200*time.Millisecond, 0.7)

	metrics := collector.ExportPrometheusMetrics()
	require.NotEmpty(t, metrics)

	byName := make(map[string]PrometheusMetric)
	for _, m := range metrics {
		byName[m.Name] = m
	}

	invocations, ok := byName["tool_invocations_total"]
	require.True(t, ok)
	assert.Equal(t, "search_vector_db", invocations.Labels["tool"])
	assert.Equal(t, 1, invocations.Value)

	transitions, ok := byName["phase_transitions_total"]
	require.True(t, ok)
	assert.Equal(t, "plan", transitions.Labels["phase"])

	queries, ok := byName["queries_total"]
	require.True(t, ok)
	assert.Equal(t, PrometheusCounter, queries.Type)
	assert.Equal(t, 1, queries.Value)
}

func TestCollector_Reset(t *testing.T) {
	collector := NewCollector()

	collector.RecordToolExecution("search_vector_db", true, 100*time.Millisecond, "")
	collector.RecordQuery(time.Second, 1.0)
	collector.Reset()

	assert.Nil(t, collector.GetToolMetrics("search_vector_db"))
	metrics := collector.GetEngineMetrics()
	assert.Equal(t, 0, metrics.QueryCount)
	assert.Equal(t, 0, metrics.ToolInvocations)
}

func TestCollector_GetAllToolMetrics_ReturnsCopies(t *testing.T) {
	collector := NewCollector()

	collector.RecordToolExecution("search_vector_db", true, 100*time.Millisecond, "")

	all := collector.GetAllToolMetrics()
	require.Len(t, all, 1)

	all["search_vector_db"].InvocationCount = 99

	metrics := collector.GetToolMetrics("search_vector_db")
	assert.Equal(t, 1, metrics.InvocationCount)
}
