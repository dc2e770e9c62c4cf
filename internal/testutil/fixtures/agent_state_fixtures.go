package fixtures

import (
	"time"

	"github.com/mshogin/lineage/internal/domain/models"
)

// FixedTime provides a consistent timestamp for testing
var FixedTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// EmptyState creates a freshly initialized AgentState for a query
func EmptyState(query string) *models.AgentState {
	return models.NewAgentState(query, models.DefaultMaxSteps, models.DefaultMaxTools)
}

// StateWithPlan creates an AgentState that has completed the planning phase
func StateWithPlan(query string) *models.AgentState {
	state := EmptyState(query)
	state.Phase = models.PhaseInvestigate
	state.Plan = "1. Search the vector store for relevant tables\n2. Pull upstream dependencies\n3. Validate the path"
	state.StepCount = 1
	return state
}

// StateWithSearchResult creates an AgentState holding one successful search result
func StateWithSearchResult(query string) *models.AgentState {
	state := StateWithPlan(query)
	state.Phase = models.PhaseAct
	state.PendingTool = "search_vector_db"
	state.StepCount = 2
	state.RecordToolResult("search_vector_db", models.ToolResult{
		"success": true,
		"items": []map[string]any{
			{"id": "dashboard_revenue", "table_name": "revenue_dashboard", "similarity": 0.91},
		},
		"count":               1,
		"relevance_scores":    []float64{0.91},
		"query_embedding_dim": 384,
	})
	return state
}

// StateWithThreeResults creates an AgentState at the max-tools boundary
func StateWithThreeResults(query string) *models.AgentState {
	state := StateWithSearchResult(query)
	state.RecordToolResult("get_table_dependencies", models.ToolResult{
		"success":          true,
		"root":             "dashboard_revenue",
		"dependency_count": 4,
		"dependencies": []map[string]any{
			{"id": "table_revenue_daily", "name": "revenue_daily", "type": "Table", "depth": 0},
			{"id": "table_order_clean", "name": "order_clean", "type": "Table", "depth": 1},
			{"id": "table_users", "name": "users", "type": "Table", "depth": 1},
			{"id": "table_orders", "name": "orders", "type": "Table", "depth": 2},
		},
		"dependency_names": []string{"revenue_daily", "order_clean", "users", "orders"},
		"depth_used":       3,
	})
	state.RecordToolResult("validate_lineage_path", models.ToolResult{
		"success":     true,
		"is_valid":    true,
		"source":      "table_orders",
		"target":      "dashboard_revenue",
		"path_exists": true,
		"confidence":  0.95,
	})
	state.StepCount = 4
	return state
}

// DoneState creates a terminal AgentState with a synthesized answer
func DoneState(query string) *models.AgentState {
	state := StateWithThreeResults(query)
	state.Phase = models.PhaseDone
	state.FinalAnswer = "The revenue dashboard is fed by revenue_daily, which aggregates order_clean and users. Path: orders -> order_clean -> revenue_daily -> revenue_dashboard"
	state.Confidence = 1.0
	state.StepCount = 5
	return state
}

// StateWithFailures creates an AgentState where every tool call failed
func StateWithFailures(query string) *models.AgentState {
	state := StateWithPlan(query)
	state.Phase = models.PhaseAct
	state.StepCount = 2
	state.RecordToolResult("search_vector_db", models.FailedToolResult("vector store unavailable"))
	state.RecordToolResult("get_table_dependencies", models.FailedToolResult("graph store unavailable"))
	state.AddError("search_vector_db: vector store unavailable")
	state.AddError("get_table_dependencies: graph store unavailable")
	return state
}
