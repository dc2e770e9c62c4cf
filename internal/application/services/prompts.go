package services

import (
	"fmt"
	"strings"
)

// KnownTables is the fixed vocabulary of entity names the synthesis
// prompt allows the answer to reference. It must stay in sync with the
// sample catalog.
var KnownTables = []string{
	"users",
	"orders",
	"order_clean",
	"revenue_daily",
	"revenue_dashboard",
}

// DefaultTool is invoked when tool selection produces nothing usable.
const DefaultTool = "search_vector_db"

// toolMatchOrder fixes the priority of fuzzy tool-name matching. The
// first name that matches the selector's raw output wins, so the
// cheapest, most broadly useful tool sits first.
var toolMatchOrder = []string{
	"search_vector_db",
	"get_table_dependencies",
	"validate_lineage_path",
	"get_node_metadata",
	"trace_data_flow",
	"check_data_freshness",
}

// BuildPlanPrompt asks for a short investigation plan for the query.
func BuildPlanPrompt(query string) string {
	return fmt.Sprintf(`
You are a data lineage investigator. A user is asking:

"%s"

Your job is to plan which tools you'll use to answer this question.

Available tools:
1. search_vector_db - Search for relevant tables using natural language
2. get_table_dependencies - Get upstream dependencies of a table
3. validate_lineage_path - Confirm a data path exists
4. get_node_metadata - Get details about a specific table
5. trace_data_flow - Trace complete flow from source to destination
6. check_data_freshness - Check data quality/freshness

Create a concise investigation plan (2-3 steps):

PLAN:
`, query)
}

// BuildToolSelectionPrompt asks which tool to call next.
func BuildToolSelectionPrompt(plan, query string) string {
	return fmt.Sprintf(`
Given the investigation plan:
%s

And the original query: "%s"

Which tool should we call FIRST to make progress?

Respond with ONLY the tool name, like:
search_vector_db
`, plan, query)
}

// BuildSynthesisPrompt asks for the final answer over the accumulated
// tool results. The template forces explicit table listing from the
// known vocabulary and an arrow-separated path where one applies.
func BuildSynthesisPrompt(query, toolResultsJSON string) string {
	return fmt.Sprintf(`
You are a data lineage assistant.

You MUST:
1. Answer the question in a short sentence.
2. Then explicitly list ALL relevant table names taken from this set:
   %s
3. When describing a path, use the format:
   orders -> order_clean -> revenue_daily -> revenue_dashboard

Question:
%s

Tool results (JSON):
%s

Answer using this template:

Lineage:
<one sentence answer>

Tables:
<comma-separated list of table names>

Path:
<optional arrow-separated path if applicable>

ANSWER:
`, strings.Join(KnownTables, ", "), query, toolResultsJSON)
}

// MatchToolName resolves the selector's free-text output to a
// registered tool name. Matching is case-insensitive and bidirectional
// on substrings, so "use get_table_dependencies first" and a truncated
// "get_table_dep" both resolve. Unrecognized output falls back to
// DefaultTool.
func MatchToolName(raw string) string {
	choice := strings.ToLower(strings.TrimSpace(raw))
	for _, tool := range toolMatchOrder {
		if strings.Contains(choice, tool) || strings.Contains(tool, choice) {
			return tool
		}
	}
	return DefaultTool
}

// BuildToolInput constructs the structured input for a tool from its
// name and the raw query. Inputs are keyword-sniffed from the name so
// an unknown-but-matched tool still gets a plausible input shape.
// Entity IDs are fixed catalog defaults; extracting them from the
// query is the selector's job in a richer setup.
func BuildToolInput(toolName, query string) map[string]any {
	switch {
	case containsFold(toolName, "search"):
		return map[string]any{"query": query, "limit": 3}
	case containsFold(toolName, "dependencies"):
		return map[string]any{"table_id": "dashboard_revenue", "depth": 3}
	case containsFold(toolName, "validate"), containsFold(toolName, "trace"):
		return map[string]any{"source_id": "table_orders", "target_id": "dashboard_revenue"}
	case containsFold(toolName, "metadata"):
		return map[string]any{"node_id": "table_users"}
	case containsFold(toolName, "freshness"):
		return map[string]any{"table_id": "table_users"}
	default:
		return map[string]any{"query": query, "limit": 3}
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
