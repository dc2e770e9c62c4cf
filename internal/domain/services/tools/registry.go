// Package tools implements the fixed registry of lineage investigation
// tools. Every tool reads from shared backing stores and reports its
// outcome through a ToolResult with a success flag, so a tool failure
// degrades a single investigation step instead of aborting the run.
package tools

import (
	"github.com/mshogin/lineage/internal/domain/services"
)

// Deps carries the backing stores shared by all lineage tools. Stores
// are read-only from the tools' perspective and safe for concurrent
// queries.
type Deps struct {
	Vector   services.VectorSearcher
	Keyword  services.KeywordSearcher
	Graph    services.GraphReader
	Embedder services.Embedder
}

// NewRegistry builds the registry of the six lineage tools. Keyword is
// optional; when nil the search tool runs on the vector channel alone.
func NewRegistry(deps Deps) *services.ToolRegistry {
	return services.NewToolRegistry(
		newSearchTool(deps),
		newDependenciesTool(deps),
		newValidateTool(deps),
		newMetadataTool(deps),
		newTraceTool(deps),
		newFreshnessTool(deps),
	)
}

// stringArg reads a string field from a tool input map.
func stringArg(input map[string]any, key, fallback string) string {
	if v, ok := input[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// intArg reads an integer field, accepting the float64 that JSON
// decoding produces for numbers.
func intArg(input map[string]any, key string, fallback int) int {
	switch v := input[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
