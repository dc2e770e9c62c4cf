package tools

import (
	"context"

	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/domain/services"
)

const dependenciesSchema = `{
	"type": "object",
	"properties": {
		"table_id": {
			"type": "string",
			"minLength": 1,
			"description": "ID of the table to analyze, e.g. table_users"
		},
		"depth": {
			"type": "integer",
			"minimum": 0,
			"maximum": 10,
			"description": "How many levels deep to traverse"
		}
	},
	"required": ["table_id"]
}`

func newDependenciesTool(deps Deps) *services.Tool {
	return &services.Tool{
		Name:        "get_table_dependencies",
		Description: "Get upstream dependencies for a table (recursive graph traversal)",
		SchemaJSON:  dependenciesSchema,
		Fn: func(ctx context.Context, input map[string]any) models.ToolResult {
			tableID := stringArg(input, "table_id", "")
			depth := intArg(input, "depth", 3)

			report, err := deps.Graph.Dependencies(ctx, tableID, depth)
			if err != nil {
				return models.ToolResult{
					"success":          false,
					"error":            err.Error(),
					"root":             tableID,
					"dependency_count": 0,
					"dependencies":     []map[string]any{},
				}
			}

			dependencies := make([]map[string]any, 0, len(report.Dependencies))
			names := make([]string, 0, len(report.Dependencies))
			for _, dep := range report.Dependencies {
				dependencies = append(dependencies, map[string]any{
					"id":    dep.ID,
					"name":  dep.Name,
					"type":  dep.Type,
					"depth": dep.Depth,
				})
				names = append(names, dep.Name)
			}

			return models.ToolResult{
				"success":          true,
				"root":             report.Root,
				"dependency_count": len(dependencies),
				"dependencies":     dependencies,
				"dependency_names": names,
				"depth_used":       depth,
			}
		},
	}
}
