package fixtures

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/domain/services"
)

// MockDecisionMaker is a scripted implementation of DecisionMaker for testing.
//
// Design:
// - Replays a fixed queue of responses in order, one per Generate call
// - Returns empty text once the queue is exhausted
// - Supports failure injection and artificial latency
// - Records every prompt for assertions
type MockDecisionMaker struct {
	mu        sync.Mutex
	name      string
	responses []string
	next      int
	err       error
	delay     time.Duration
	prompts   []string
}

// NewMockDecisionMaker creates a new scripted decision maker.
func NewMockDecisionMaker() *MockDecisionMaker {
	return &MockDecisionMaker{name: "mock"}
}

// WithResponses queues responses returned by successive Generate calls.
func (m *MockDecisionMaker) WithResponses(responses ...string) *MockDecisionMaker {
	m.responses = append(m.responses, responses...)
	return m
}

// WithFailure configures every Generate call to fail.
func (m *MockDecisionMaker) WithFailure(err error) *MockDecisionMaker {
	m.err = err
	return m
}

// WithDelay makes Generate sleep before answering, honoring the context.
func (m *MockDecisionMaker) WithDelay(delay time.Duration) *MockDecisionMaker {
	m.delay = delay
	return m
}

// Name returns the provider name.
func (m *MockDecisionMaker) Name() string {
	return m.name
}

// Generate replays the next scripted response.
func (m *MockDecisionMaker) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if m.next >= len(m.responses) {
		return "", nil
	}
	response := m.responses[m.next]
	m.next++
	return response, nil
}

// CheckHealth reports the injected failure, if any.
func (m *MockDecisionMaker) CheckHealth(ctx context.Context) error {
	return m.err
}

// Prompts returns a copy of every prompt seen so far.
func (m *MockDecisionMaker) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// CallCount returns how many Generate calls were made.
func (m *MockDecisionMaker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

var _ services.DecisionMaker = (*MockDecisionMaker)(nil)

// MockGraphReader is a canned implementation of GraphReader for testing.
type MockGraphReader struct {
	reports   map[string]*models.DependencyReport
	nodes     map[string]*models.Node
	createdAt map[string]time.Time
	err       error
}

// NewMockGraphReader creates an empty graph reader mock.
func NewMockGraphReader() *MockGraphReader {
	return &MockGraphReader{
		reports:   make(map[string]*models.DependencyReport),
		nodes:     make(map[string]*models.Node),
		createdAt: make(map[string]time.Time),
	}
}

// WithReport registers the dependency report returned for a root node.
func (m *MockGraphReader) WithReport(report *models.DependencyReport) *MockGraphReader {
	m.reports[report.Root] = report
	return m
}

// WithNode registers node metadata.
func (m *MockGraphReader) WithNode(node *models.Node) *MockGraphReader {
	m.nodes[node.ID] = node
	m.createdAt[node.ID] = FixedTime
	return m
}

// WithFailure configures every call to fail.
func (m *MockGraphReader) WithFailure(err error) *MockGraphReader {
	m.err = err
	return m
}

// Dependencies returns the registered report or an empty one.
func (m *MockGraphReader) Dependencies(ctx context.Context, nodeID string, depth int) (*models.DependencyReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	if report, ok := m.reports[nodeID]; ok {
		return report, nil
	}
	return &models.DependencyReport{Root: nodeID, Dependencies: []models.DependencyNode{}}, nil
}

// Node returns registered node metadata.
func (m *MockGraphReader) Node(ctx context.Context, nodeID string) (*models.Node, error) {
	if m.err != nil {
		return nil, m.err
	}
	if node, ok := m.nodes[nodeID]; ok {
		return node, nil
	}
	return nil, fmt.Errorf("%w: %s", models.ErrNodeNotFound, nodeID)
}

// NodeCreatedAt returns the registration timestamp of a node.
func (m *MockGraphReader) NodeCreatedAt(ctx context.Context, nodeID string) (time.Time, error) {
	if m.err != nil {
		return time.Time{}, m.err
	}
	if ts, ok := m.createdAt[nodeID]; ok {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("%w: %s", models.ErrNodeNotFound, nodeID)
}

var _ services.GraphReader = (*MockGraphReader)(nil)

// MockVectorSearcher returns canned documents for every search.
type MockVectorSearcher struct {
	docs []models.Document
	err  error
}

// NewMockVectorSearcher creates a vector searcher mock.
func NewMockVectorSearcher() *MockVectorSearcher {
	return &MockVectorSearcher{}
}

// WithDocuments sets the ranked documents returned by Search.
func (m *MockVectorSearcher) WithDocuments(docs ...models.Document) *MockVectorSearcher {
	m.docs = docs
	return m
}

// WithFailure configures Search to fail.
func (m *MockVectorSearcher) WithFailure(err error) *MockVectorSearcher {
	m.err = err
	return m
}

// Search returns up to limit canned documents.
func (m *MockVectorSearcher) Search(ctx context.Context, embedding []float32, limit int) ([]models.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && len(m.docs) > limit {
		return m.docs[:limit], nil
	}
	return m.docs, nil
}

var _ services.VectorSearcher = (*MockVectorSearcher)(nil)

// MockKeywordSearcher returns canned documents for every search.
type MockKeywordSearcher struct {
	docs []models.Document
	err  error
}

// NewMockKeywordSearcher creates a keyword searcher mock.
func NewMockKeywordSearcher() *MockKeywordSearcher {
	return &MockKeywordSearcher{}
}

// WithDocuments sets the ranked documents returned by Search.
func (m *MockKeywordSearcher) WithDocuments(docs ...models.Document) *MockKeywordSearcher {
	m.docs = docs
	return m
}

// WithFailure configures Search to fail.
func (m *MockKeywordSearcher) WithFailure(err error) *MockKeywordSearcher {
	m.err = err
	return m
}

// Search returns up to limit canned documents.
func (m *MockKeywordSearcher) Search(query string, limit int) ([]models.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && len(m.docs) > limit {
		return m.docs[:limit], nil
	}
	return m.docs, nil
}

var _ services.KeywordSearcher = (*MockKeywordSearcher)(nil)

// MockEmbedder returns a fixed unit vector of the configured dimension.
type MockEmbedder struct {
	dimension int
	err       error
}

// NewMockEmbedder creates an embedder mock. Dimension defaults to 8.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{dimension: 8}
}

// WithDimension overrides the embedding dimension.
func (m *MockEmbedder) WithDimension(dimension int) *MockEmbedder {
	m.dimension = dimension
	return m
}

// WithFailure configures Embed to fail.
func (m *MockEmbedder) WithFailure(err error) *MockEmbedder {
	m.err = err
	return m
}

// Embed returns a deterministic unit vector.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	vec := make([]float32, m.dimension)
	vec[0] = 1
	return vec, nil
}

// Dimension returns the embedding dimension.
func (m *MockEmbedder) Dimension() int {
	return m.dimension
}

var _ services.Embedder = (*MockEmbedder)(nil)

// SampleDependencyReport returns the upstream chain of the revenue
// dashboard from the sample catalog.
func SampleDependencyReport() *models.DependencyReport {
	return &models.DependencyReport{
		Root: "dashboard_revenue",
		Dependencies: []models.DependencyNode{
			{ID: "table_revenue_daily", Name: "revenue_daily", Type: "Table", Depth: 0},
			{ID: "table_order_clean", Name: "order_clean", Type: "Table", Depth: 1},
			{ID: "table_users", Name: "users", Type: "Table", Depth: 1},
			{ID: "table_orders", Name: "orders", Type: "Table", Depth: 2},
		},
	}
}

// SampleDocuments returns the sample catalog documents ranked for a
// revenue-oriented query.
func SampleDocuments() []models.Document {
	return []models.Document{
		{ID: "dashboard_revenue", Text: "Revenue dashboard displays daily revenue trends. Depends on: revenue_daily", TableName: "revenue_dashboard", SourceType: "dashboard", Similarity: 0.91},
		{ID: "table_revenue_daily", Text: "Daily revenue aggregated by date. Depends on: order_clean, users. Aggregates to revenue per day", TableName: "revenue_daily", SourceType: "transform", Similarity: 0.84},
		{ID: "table_order_clean", Text: "Cleaned orders data with validation, deduplication. Transforms: order_raw -> order_clean", TableName: "order_clean", SourceType: "transform", Similarity: 0.62},
	}
}

// SampleNodes returns the five nodes of the sample catalog.
func SampleNodes() []*models.Node {
	return []*models.Node{
		{ID: "table_users", Type: "Table", Name: "users", Description: "User master data", Metadata: map[string]any{}},
		{ID: "table_orders", Type: "Table", Name: "orders", Description: "Raw orders", Metadata: map[string]any{}},
		{ID: "table_order_clean", Type: "Table", Name: "order_clean", Description: "Cleaned orders", Metadata: map[string]any{}},
		{ID: "table_revenue_daily", Type: "Table", Name: "revenue_daily", Description: "Daily revenue", Metadata: map[string]any{}},
		{ID: "dashboard_revenue", Type: "Dashboard", Name: "revenue_dashboard", Description: "Revenue dashboard", Metadata: map[string]any{}},
	}
}
