package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/infrastructure/logging"
	"github.com/mshogin/lineage/internal/infrastructure/storage"
)

// Embedder produces the vector representation of a document text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Loader ingests lineage catalogs into the graph, vector and keyword
// stores: the built-in sample lineage and optional YAML catalog files.
type Loader struct {
	db       *storage.DB
	keyword  *storage.KeywordIndex
	embedder Embedder
	logger   *logging.StructuredLogger
}

// NewLoader creates a catalog loader over the given stores.
func NewLoader(db *storage.DB, keyword *storage.KeywordIndex, embedder Embedder, logger *logging.StructuredLogger) *Loader {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Loader{
		db:       db,
		keyword:  keyword,
		embedder: embedder,
		logger:   logger,
	}
}

// LoadSample ingests the built-in demo lineage.
func (l *Loader) LoadSample(ctx context.Context) error {
	var file catalogFile
	for _, doc := range SampleLineageDocuments() {
		file.Documents = append(file.Documents, catalogDocument{
			ID:         doc.ID,
			Text:       doc.Text,
			TableName:  doc.TableName,
			SourceType: doc.SourceType,
		})
	}
	for _, node := range SampleLineageNodes() {
		file.Nodes = append(file.Nodes, catalogNode{
			ID:          node.ID,
			Type:        node.Type,
			Name:        node.Name,
			Description: node.Description,
		})
	}
	for _, edge := range SampleLineageEdges() {
		file.Edges = append(file.Edges, catalogEdge{
			Source: edge.SourceID,
			Target: edge.TargetID,
			Type:   edge.Type,
		})
	}

	if err := l.ingest(ctx, &file); err != nil {
		return fmt.Errorf("failed to load sample catalog: %w", err)
	}

	l.logger.Info("Sample catalog loaded", map[string]interface{}{
		"nodes":     len(file.Nodes),
		"edges":     len(file.Edges),
		"documents": len(file.Documents),
	})

	return nil
}

// LoadDir ingests every YAML catalog file in dir, in lexical order.
func (l *Loader) LoadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read catalog directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !isCatalogFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := l.LoadFile(ctx, path); err != nil {
			return err
		}
		loaded++
	}

	l.logger.Info("Catalog directory loaded", map[string]interface{}{
		"dir":   dir,
		"files": loaded,
	})

	return nil
}

// LoadFile ingests a single YAML catalog file. Re-ingesting the same
// file is idempotent: nodes, edges and documents are upserted by ID.
func (l *Loader) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}

	if err := l.ingest(ctx, &file); err != nil {
		return fmt.Errorf("failed to ingest catalog file %s: %w", path, err)
	}

	l.logger.Info("Catalog file loaded", map[string]interface{}{
		"file":      path,
		"nodes":     len(file.Nodes),
		"edges":     len(file.Edges),
		"documents": len(file.Documents),
	})

	return nil
}

// ingest writes a parsed catalog into the stores: graph nodes and
// edges first, then documents embedded into the vector store and fed
// to the keyword index.
func (l *Loader) ingest(ctx context.Context, file *catalogFile) error {
	for _, node := range file.Nodes {
		if node.ID == "" {
			return fmt.Errorf("catalog node missing id")
		}
		if err := l.db.AddNode(ctx, node.ID, node.Type, node.Name, node.Description); err != nil {
			return fmt.Errorf("failed to add node %s: %w", node.ID, err)
		}
	}

	for _, edge := range file.Edges {
		if edge.Source == "" || edge.Target == "" {
			return fmt.Errorf("catalog edge missing source or target")
		}
		edgeType := edge.Type
		if edgeType == "" {
			edgeType = "FEEDS_INTO"
		}
		strength := edge.Strength
		if strength == 0 {
			strength = 1.0
		}
		if err := l.db.AddEdge(ctx, edge.Source, edge.Target, edgeType, strength); err != nil {
			return fmt.Errorf("failed to add edge %s -> %s: %w", edge.Source, edge.Target, err)
		}
	}

	for _, entry := range file.Documents {
		if entry.ID == "" {
			return fmt.Errorf("catalog document missing id")
		}

		doc := models.Document{
			ID:         entry.ID,
			Text:       entry.Text,
			TableName:  entry.TableName,
			SourceType: entry.SourceType,
		}

		embedding, err := l.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
		}

		if err := l.db.AddDocument(ctx, doc, embedding); err != nil {
			return fmt.Errorf("failed to store document %s: %w", doc.ID, err)
		}

		if l.keyword != nil {
			if err := l.keyword.IndexDocument(doc); err != nil {
				return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
			}
		}
	}

	return nil
}

// catalogFile is the on-disk YAML catalog format.
type catalogFile struct {
	Nodes     []catalogNode     `yaml:"nodes"`
	Edges     []catalogEdge     `yaml:"edges"`
	Documents []catalogDocument `yaml:"documents"`
}

type catalogNode struct {
	ID          string `yaml:"id"`
	Type        string `yaml:"type"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type catalogEdge struct {
	Source   string  `yaml:"source"`
	Target   string  `yaml:"target"`
	Type     string  `yaml:"type"`
	Strength float64 `yaml:"strength"`
}

type catalogDocument struct {
	ID         string `yaml:"id"`
	Text       string `yaml:"text"`
	TableName  string `yaml:"table_name"`
	SourceType string `yaml:"source_type"`
}

func isCatalogFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
