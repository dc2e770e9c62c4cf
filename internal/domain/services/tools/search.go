package tools

import (
	"context"
	"sort"

	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/domain/services"
)

const searchSchema = `{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"minLength": 1,
			"description": "Natural language description of what to find"
		},
		"limit": {
			"type": "integer",
			"minimum": 1,
			"maximum": 20,
			"description": "Maximum results to return"
		}
	},
	"required": ["query"]
}`

// rrfOffset dampens the contribution of lower ranks when fusing the
// vector and keyword result lists (standard reciprocal rank fusion).
const rrfOffset = 60.0

func newSearchTool(deps Deps) *services.Tool {
	return &services.Tool{
		Name:        "search_vector_db",
		Description: "Search vector database for relevant tables/dashboards",
		SchemaJSON:  searchSchema,
		Fn: func(ctx context.Context, input map[string]any) models.ToolResult {
			query := stringArg(input, "query", "")
			limit := intArg(input, "limit", 3)
			if limit <= 0 {
				limit = 3
			}

			embedding, err := deps.Embedder.Embed(ctx, query)
			if err != nil {
				return searchFailure(err)
			}

			vectorDocs, err := deps.Vector.Search(ctx, embedding, limit)
			if err != nil {
				return searchFailure(err)
			}

			// Keyword channel is best effort; a broken index must not
			// take semantic search down with it.
			var keywordDocs []models.Document
			if deps.Keyword != nil {
				if kw, kwErr := deps.Keyword.Search(query, limit); kwErr == nil {
					keywordDocs = kw
				}
			}

			docs := fuseByReciprocalRank(vectorDocs, keywordDocs, limit)

			items := make([]map[string]any, 0, len(docs))
			scores := make([]float64, 0, len(docs))
			for _, doc := range docs {
				items = append(items, map[string]any{
					"id":          doc.ID,
					"text":        doc.Text,
					"table_name":  doc.TableName,
					"source_type": doc.SourceType,
					"similarity":  doc.Similarity,
				})
				scores = append(scores, doc.Similarity)
			}

			return models.ToolResult{
				"success":             true,
				"items":               items,
				"count":               len(items),
				"relevance_scores":    scores,
				"query_embedding_dim": len(embedding),
			}
		},
	}
}

func searchFailure(err error) models.ToolResult {
	return models.ToolResult{
		"success": false,
		"error":   err.Error(),
		"items":   []map[string]any{},
		"count":   0,
	}
}

// fuseByReciprocalRank merges the two ranked lists by summing
// 1/(offset+rank) per document. Documents seen on both channels rank
// above single-channel hits; the similarity reported per document is
// taken from the vector channel when available since cosine scores
// are comparable across queries and keyword scores are not.
func fuseByReciprocalRank(vectorDocs, keywordDocs []models.Document, limit int) []models.Document {
	if len(keywordDocs) == 0 {
		if len(vectorDocs) > limit {
			return vectorDocs[:limit]
		}
		return vectorDocs
	}

	fused := make(map[string]float64)
	byID := make(map[string]models.Document)

	for rank, doc := range vectorDocs {
		fused[doc.ID] += 1.0 / (rrfOffset + float64(rank+1))
		byID[doc.ID] = doc
	}
	for rank, doc := range keywordDocs {
		fused[doc.ID] += 1.0 / (rrfOffset + float64(rank+1))
		if _, seen := byID[doc.ID]; !seen {
			byID[doc.ID] = doc
		}
	}

	ids := make([]string, 0, len(fused))
	for id := range fused {
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		if fused[ids[i]] != fused[ids[j]] {
			return fused[ids[i]] > fused[ids[j]]
		}
		return ids[i] < ids[j]
	})

	if len(ids) > limit {
		ids = ids[:limit]
	}
	docs := make([]models.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, byID[id])
	}
	return docs
}
