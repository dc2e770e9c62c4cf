package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/domain/services"
)

const metadataSchema = `{
	"type": "object",
	"properties": {
		"node_id": {
			"type": "string",
			"minLength": 1,
			"description": "ID of the node, e.g. table_users"
		}
	},
	"required": ["node_id"]
}`

func newMetadataTool(deps Deps) *services.Tool {
	return &services.Tool{
		Name:        "get_node_metadata",
		Description: "Get detailed metadata about a specific table/dashboard",
		SchemaJSON:  metadataSchema,
		Fn: func(ctx context.Context, input map[string]any) models.ToolResult {
			nodeID := stringArg(input, "node_id", "")

			node, err := deps.Graph.Node(ctx, nodeID)
			if err != nil {
				if errors.Is(err, models.ErrNodeNotFound) {
					return models.ToolResult{
						"success": false,
						"error":   fmt.Sprintf("Node not found: %s", nodeID),
						"id":      nodeID,
					}
				}
				return models.ToolResult{
					"success": false,
					"error":   err.Error(),
					"id":      nodeID,
				}
			}

			metadata := node.Metadata
			if metadata == nil {
				metadata = map[string]any{}
			}

			return models.ToolResult{
				"success":     true,
				"id":          node.ID,
				"name":        node.Name,
				"type":        node.Type,
				"description": node.Description,
				"metadata":    metadata,
			}
		},
	}
}
