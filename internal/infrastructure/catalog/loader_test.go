package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshogin/lineage/internal/infrastructure/embeddings"
	"github.com/mshogin/lineage/internal/infrastructure/storage"
)

func newTestLoader(t *testing.T) (*Loader, *storage.DB, *storage.KeywordIndex) {
	t.Helper()

	db, err := storage.NewDB(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	keyword, err := storage.NewKeywordIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { keyword.Close() })

	embedder := embeddings.NewLocalEmbedder(64)

	return NewLoader(db, keyword, embedder, nil), db, keyword
}

func TestLoader_LoadSample(t *testing.T) {
	loader, db, keyword := newTestLoader(t)
	ctx := context.Background()

	err := loader.LoadSample(ctx)
	require.NoError(t, err)

	nodes, edges, documents, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, nodes)
	assert.Equal(t, 4, edges)
	assert.Equal(t, 5, documents)

	// The dashboard's upstream chain reaches the raw orders table.
	report, err := db.Dependencies(ctx, "dashboard_revenue", 3)
	require.NoError(t, err)
	assert.Equal(t, "dashboard_revenue", report.Root)
	assert.True(t, report.Contains("table_revenue_daily"))
	assert.True(t, report.Contains("table_orders"))
	assert.True(t, report.Contains("table_users"))

	// Documents are searchable through the keyword index.
	docs, err := keyword.Search("revenue dashboard", 3)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
}

func TestLoader_LoadSample_Idempotent(t *testing.T) {
	loader, db, _ := newTestLoader(t)
	ctx := context.Background()

	require.NoError(t, loader.LoadSample(ctx))
	require.NoError(t, loader.LoadSample(ctx))

	nodes, edges, documents, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, nodes)
	assert.Equal(t, 4, edges)
	assert.Equal(t, 5, documents)
}

func TestLoader_LoadFile(t *testing.T) {
	loader, db, _ := newTestLoader(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "warehouse.yaml")
	content := `nodes:
  - id: table_events
    type: Table
    name: events
    description: Raw clickstream events
  - id: table_sessions
    type: Table
    name: sessions
    description: Sessionized events
edges:
  - source: table_events
    target: table_sessions
documents:
  - id: table_sessions
    text: Sessionized clickstream grouped by visitor. Depends on events
    table_name: sessions
    source_type: transform
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	err := loader.LoadFile(ctx, path)
	require.NoError(t, err)

	node, err := db.Node(ctx, "table_sessions")
	require.NoError(t, err)
	assert.Equal(t, "sessions", node.Name)

	report, err := db.Dependencies(ctx, "table_sessions", 3)
	require.NoError(t, err)
	assert.True(t, report.Contains("table_events"))

	nodes, edges, documents, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)
	assert.Equal(t, 1, documents)
}

func TestLoader_LoadFile_InvalidYAML(t *testing.T) {
	loader, _, _ := newTestLoader(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes: [unclosed"), 0o644))

	err := loader.LoadFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse catalog file")
}

func TestLoader_LoadFile_MissingNodeID(t *testing.T) {
	loader, _, _ := newTestLoader(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.yaml")
	content := `nodes:
  - type: Table
    name: orphan
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	err := loader.LoadFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id")
}

func TestLoader_LoadDir(t *testing.T) {
	loader, db, _ := newTestLoader(t)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(`nodes:
  - id: table_a
    type: Table
    name: a
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte(`nodes:
  - id: table_b
    type: Table
    name: b
`), 0o644))
	// Non-catalog files are skipped.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644))

	err := loader.LoadDir(ctx, dir)
	require.NoError(t, err)

	nodes, _, _, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, nodes)
}

func TestLoader_LoadDir_Missing(t *testing.T) {
	loader, _, _ := newTestLoader(t)

	err := loader.LoadDir(context.Background(), "/nonexistent/catalog")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read catalog directory")
}

func TestSampleLineage_Consistency(t *testing.T) {
	nodes := SampleLineageNodes()
	edges := SampleLineageEdges()
	docs := SampleLineageDocuments()

	assert.Len(t, nodes, 5)
	assert.Len(t, edges, 4)
	assert.Len(t, docs, 5)

	ids := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		ids[node.ID] = true
	}

	for _, edge := range edges {
		assert.True(t, ids[edge.SourceID], "edge source %s must be a sample node", edge.SourceID)
		assert.True(t, ids[edge.TargetID], "edge target %s must be a sample node", edge.TargetID)
		assert.Equal(t, "FEEDS_INTO", edge.Type)
	}

	for _, doc := range docs {
		assert.True(t, ids[doc.ID], "document %s must describe a sample node", doc.ID)
		assert.NotEmpty(t, doc.Text)
	}
}
