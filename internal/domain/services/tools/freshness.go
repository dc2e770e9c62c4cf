package tools

import (
	"context"
	"errors"
	"time"

	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/domain/services"
)

const freshnessSchema = `{
	"type": "object",
	"properties": {
		"table_id": {
			"type": "string",
			"minLength": 1,
			"description": "Table to check"
		}
	},
	"required": ["table_id"]
}`

func newFreshnessTool(deps Deps) *services.Tool {
	return &services.Tool{
		Name:        "check_data_freshness",
		Description: "Check how fresh/reliable the data for a table is",
		SchemaJSON:  freshnessSchema,
		Fn: func(ctx context.Context, input map[string]any) models.ToolResult {
			tableID := stringArg(input, "table_id", "")

			// Freshness scoring against real update logs is not wired
			// up; the scores are fixed and only last_update comes from
			// the catalog.
			var lastUpdate any
			createdAt, err := deps.Graph.NodeCreatedAt(ctx, tableID)
			switch {
			case err == nil:
				lastUpdate = createdAt.Format(time.DateTime)
			case errors.Is(err, models.ErrNodeNotFound):
				lastUpdate = nil
			default:
				return models.ToolResult{
					"success":         false,
					"error":           err.Error(),
					"table_id":        tableID,
					"freshness_score": 0.5,
				}
			}

			return models.ToolResult{
				"success":         true,
				"table_id":        tableID,
				"freshness_score": 0.85,
				"reliability":     0.9,
				"confidence":      0.8,
				"last_update":     lastUpdate,
			}
		},
	}
}
