package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/mshogin/lineage/internal/domain/models"
	domainservices "github.com/mshogin/lineage/internal/domain/services"
)

// DirectQueryService answers lineage questions in a single
// retrieve-then-generate pass, without the agent loop: embed the
// query, pull the closest catalog documents, fetch the top hit's
// upstream chain and hand everything to the Decision Maker. Cheaper
// and faster than a full agent run, at the cost of no tool selection
// or validation.
type DirectQueryService struct {
	embedder      domainservices.Embedder
	vector        domainservices.VectorSearcher
	graph         domainservices.GraphReader
	decisionMaker domainservices.DecisionMaker
	maxTokens     int
}

// NewDirectQueryService wires the direct pipeline.
func NewDirectQueryService(
	embedder domainservices.Embedder,
	vector domainservices.VectorSearcher,
	graph domainservices.GraphReader,
	decisionMaker domainservices.DecisionMaker,
) *DirectQueryService {
	return &DirectQueryService{
		embedder:      embedder,
		vector:        vector,
		graph:         graph,
		decisionMaker: decisionMaker,
		maxTokens:     DefaultMaxTokens,
	}
}

// Query runs the pipeline for one request. Unlike the agent loop this
// propagates collaborator errors: the caller gets either a complete
// response or an error, never a degraded half-answer.
func (s *DirectQueryService) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	embedding, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	contextDocs, err := s.vector.Search(ctx, embedding, 3)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	// The top hit names the target table whose upstream chain we pull.
	lineage := &models.DependencyReport{Root: "", Dependencies: []models.DependencyNode{}}
	if len(contextDocs) > 0 {
		targetID := "table_" + contextDocs[0].TableName
		lineage, err = s.graph.Dependencies(ctx, targetID, req.Depth)
		if err != nil {
			return nil, fmt.Errorf("fetching lineage for %s: %w", targetID, err)
		}
	}

	answer, err := s.decisionMaker.Generate(ctx, buildDirectPrompt(req.Query, contextDocs, lineage), s.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	confidence := 0.0
	if len(contextDocs) > 0 {
		confidence = contextDocs[0].Similarity
	}

	return &models.QueryResponse{
		Query:       req.Query,
		Answer:      answer,
		ContextDocs: contextDocs,
		LineagePath: lineage,
		Confidence:  confidence,
	}, nil
}

func buildDirectPrompt(query string, docs []models.Document, lineage *models.DependencyReport) string {
	lines := make([]string, 0, len(docs))
	for _, doc := range docs {
		lines = append(lines, fmt.Sprintf("- %s: %s", doc.TableName, doc.Text))
	}

	return fmt.Sprintf(`
You are a data lineage expert. Answer the user's question about data dependencies.

Query: %s

Related data:
%s

Lineage context (what feeds into the target):
root: %s, dependencies: %s

Based on this information, answer the query concisely:
`, query, strings.Join(lines, "\n"), lineage.Root, strings.Join(lineage.Names(), ", "))
}
