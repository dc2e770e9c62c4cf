package tools

import (
	"context"

	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/domain/services"
)

const traceSchema = `{
	"type": "object",
	"properties": {
		"source_id": {
			"type": "string",
			"minLength": 1,
			"description": "Source table/node of the flow"
		},
		"target_id": {
			"type": "string",
			"minLength": 1,
			"description": "Destination table/node of the flow"
		}
	},
	"required": ["source_id", "target_id"]
}`

func newTraceTool(deps Deps) *services.Tool {
	return &services.Tool{
		Name:        "trace_data_flow",
		Description: "Trace complete data flow path between two nodes",
		SchemaJSON:  traceSchema,
		Fn: func(ctx context.Context, input map[string]any) models.ToolResult {
			start := stringArg(input, "source_id", "")
			end := stringArg(input, "target_id", "")

			report, err := deps.Graph.Dependencies(ctx, end, validationDepth)
			if err != nil {
				return models.ToolResult{
					"success": false,
					"error":   err.Error(),
					"start":   start,
					"end":     end,
					"path":    []string{},
				}
			}

			// Walk upstream from the destination; when the source shows
			// up, cut there and flip so the path reads source to
			// destination. No source in the chain means no known flow,
			// reported with the full upstream context at low confidence.
			path := []string{end}
			for _, dep := range report.Dependencies {
				if !containsString(path, dep.ID) {
					path = append(path, dep.ID)
				}
			}

			confidence := 0.3
			if idx := indexOfString(path, start); idx >= 0 {
				path = path[:idx+1]
				reverseStrings(path)
				confidence = 0.95
			}

			return models.ToolResult{
				"success":     true,
				"start":       start,
				"end":         end,
				"path":        path,
				"path_length": len(path),
				"confidence":  confidence,
			}
		},
	}
}

func containsString(list []string, want string) bool {
	return indexOfString(list, want) >= 0
}

func indexOfString(list []string, want string) int {
	for i, v := range list {
		if v == want {
			return i
		}
	}
	return -1
}

func reverseStrings(list []string) {
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
}
