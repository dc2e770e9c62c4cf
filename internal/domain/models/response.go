package models

// Document is one entry of the semantic document store: a description
// of a table, transformation or dashboard, ranked by similarity when
// returned from a search.
type Document struct {
	// ID is the node identifier the document describes.
	ID string `json:"id"`

	// Text is the free-text description that was embedded.
	Text string `json:"text"`

	// TableName is the human-readable table or dashboard name.
	TableName string `json:"table_name"`

	// SourceType classifies the node: "source", "transform", "dashboard".
	SourceType string `json:"source_type"`

	// Similarity is the cosine similarity to the query, in [0,1].
	// Only meaningful on search results.
	Similarity float64 `json:"similarity"`
}

// DependencyNode is one upstream node discovered by graph traversal.
type DependencyNode struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Depth int    `json:"depth"`
}

// DependencyReport is the result of an upstream traversal from a root
// node, ordered by increasing depth.
type DependencyReport struct {
	Root         string           `json:"root"`
	Dependencies []DependencyNode `json:"dependencies"`
}

// Names returns the dependency names in traversal order.
func (r *DependencyReport) Names() []string {
	names := make([]string, 0, len(r.Dependencies))
	for _, dep := range r.Dependencies {
		names = append(names, dep.Name)
	}
	return names
}

// IDs returns the dependency node IDs in traversal order.
func (r *DependencyReport) IDs() []string {
	ids := make([]string, 0, len(r.Dependencies))
	for _, dep := range r.Dependencies {
		ids = append(ids, dep.ID)
	}
	return ids
}

// Contains reports whether nodeID appears among the dependencies.
func (r *DependencyReport) Contains(nodeID string) bool {
	for _, dep := range r.Dependencies {
		if dep.ID == nodeID {
			return true
		}
	}
	return false
}

// Node is a single lineage graph node with its stored metadata.
type Node struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
}

// QueryResponse is the response of the direct lineage query endpoint.
type QueryResponse struct {
	Query       string            `json:"query"`
	Answer      string            `json:"answer"`
	ContextDocs []Document        `json:"context_docs"`
	LineagePath *DependencyReport `json:"lineage_path"`
	Confidence  float64           `json:"confidence"`
}

// ErrorResponse is the uniform error payload of the HTTP API.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
