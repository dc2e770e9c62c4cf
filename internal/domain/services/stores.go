package services

import (
	"context"
	"time"

	"github.com/mshogin/lineage/internal/domain/models"
)

// The store interfaces below are the seams between the tools and the
// backing systems. The domain layer defines them; the infrastructure
// layer provides SQLite and Bleve implementations, and tests provide
// deterministic fakes.

// VectorSearcher ranks stored lineage documents by similarity to a
// query embedding.
type VectorSearcher interface {
	// Search returns the limit most similar documents, highest
	// similarity first. An empty store yields an empty slice, not an
	// error.
	Search(ctx context.Context, embedding []float32, limit int) ([]models.Document, error)
}

// KeywordSearcher ranks stored lineage documents by keyword relevance
// to the raw query text. It is the lexical half of hybrid retrieval.
type KeywordSearcher interface {
	// Search returns up to limit document IDs with their match scores,
	// best first.
	Search(query string, limit int) ([]models.Document, error)
}

// GraphReader answers upstream-lineage questions against the
// dependency graph.
type GraphReader interface {
	// Dependencies walks upstream from nodeID across FEEDS_INTO edges,
	// bounded by depth, and reports every node that feeds into it.
	Dependencies(ctx context.Context, nodeID string, depth int) (*models.DependencyReport, error)

	// Node fetches a single node with its metadata. Returns
	// models.ErrNodeNotFound when the ID is unknown.
	Node(ctx context.Context, nodeID string) (*models.Node, error)

	// NodeCreatedAt returns the node's creation timestamp, used by the
	// freshness heuristics.
	NodeCreatedAt(ctx context.Context, nodeID string) (time.Time, error)
}

// Embedder turns text into a fixed-dimension embedding vector.
type Embedder interface {
	// Embed returns the embedding for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension this embedder produces.
	Dimension() int
}
