package tools

import (
	"context"

	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/domain/services"
)

// validationDepth bounds the upstream traversal used to confirm a
// path. Ten levels is deeper than any realistic lineage chain.
const validationDepth = 10

const validateSchema = `{
	"type": "object",
	"properties": {
		"source_id": {
			"type": "string",
			"minLength": 1,
			"description": "Starting point of the proposed path"
		},
		"target_id": {
			"type": "string",
			"minLength": 1,
			"description": "Ending point of the proposed path"
		}
	},
	"required": ["source_id", "target_id"]
}`

func newValidateTool(deps Deps) *services.Tool {
	return &services.Tool{
		Name:        "validate_lineage_path",
		Description: "Validate that a proposed lineage path actually exists in the graph",
		SchemaJSON:  validateSchema,
		Fn: func(ctx context.Context, input map[string]any) models.ToolResult {
			sourceID := stringArg(input, "source_id", "")
			targetID := stringArg(input, "target_id", "")

			report, err := deps.Graph.Dependencies(ctx, targetID, validationDepth)
			if err != nil {
				return models.ToolResult{
					"success":    false,
					"error":      err.Error(),
					"is_valid":   false,
					"confidence": 0.0,
				}
			}

			upstreamIDs := report.IDs()
			isValid := sourceID == targetID || report.Contains(sourceID)

			confidence := 0.2
			if isValid {
				confidence = 0.95
			}

			return models.ToolResult{
				"success":        true,
				"is_valid":       isValid,
				"source":         sourceID,
				"target":         targetID,
				"path_exists":    isValid,
				"confidence":     confidence,
				"upstream_nodes": upstreamIDs,
			}
		},
	}
}
