package storage

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/domain/services"
)

// KeywordIndex provides keyword (BM25) search over lineage documents.
// It is the lexical half of hybrid retrieval; the vector store is the
// semantic half.
type KeywordIndex struct {
	index bleve.Index
	path  string
}

// NewKeywordIndex creates or opens a keyword index at path. An empty
// path builds an in-memory index, used by tests and by deployments
// that rebuild the index from the catalog on every start.
func NewKeywordIndex(path string) (*KeywordIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(buildDocumentMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory keyword index: %w", err)
		}
		return &KeywordIndex{index: index}, nil
	}

	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, buildDocumentMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}
	return &KeywordIndex{index: index, path: path}, nil
}

// buildDocumentMapping creates the index mapping for lineage documents.
func buildDocumentMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	idField.Store = true
	idField.Index = true
	docMapping.AddFieldMappingsAt("id", idField)

	sourceTypeField := bleve.NewTextFieldMapping()
	sourceTypeField.Analyzer = keyword.Name
	sourceTypeField.Store = true
	sourceTypeField.Index = true
	docMapping.AddFieldMappingsAt("source_type", sourceTypeField)

	tableNameField := bleve.NewTextFieldMapping()
	tableNameField.Analyzer = standard.Name
	tableNameField.Store = true
	tableNameField.Index = true
	docMapping.AddFieldMappingsAt("table_name", tableNameField)

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = true
	textField.Index = true
	docMapping.AddFieldMappingsAt("text", textField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// IndexDocument adds or replaces one document in the index.
func (k *KeywordIndex) IndexDocument(doc models.Document) error {
	entry := map[string]any{
		"id":          doc.ID,
		"text":        doc.Text,
		"table_name":  doc.TableName,
		"source_type": doc.SourceType,
	}
	if err := k.index.Index(doc.ID, entry); err != nil {
		return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
	}
	return nil
}

// Search returns up to limit documents matching the query text, best
// first. Scores are bleve's BM25 scores, carried in the Similarity
// field for rank fusion; they are not comparable to cosine values.
func (k *KeywordIndex) Search(query string, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 5
	}

	matchQuery := bleve.NewMatchQuery(query)
	request := bleve.NewSearchRequest(matchQuery)
	request.Size = limit
	request.Fields = []string{"id", "text", "table_name", "source_type"}

	result, err := k.index.Search(request)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	docs := make([]models.Document, 0, len(result.Hits))
	for _, hit := range result.Hits {
		doc := models.Document{ID: hit.ID, Similarity: hit.Score}
		if text, ok := hit.Fields["text"].(string); ok {
			doc.Text = text
		}
		if name, ok := hit.Fields["table_name"].(string); ok {
			doc.TableName = name
		}
		if sourceType, ok := hit.Fields["source_type"].(string); ok {
			doc.SourceType = sourceType
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Close closes the underlying index.
func (k *KeywordIndex) Close() error {
	return k.index.Close()
}

var _ services.KeywordSearcher = (*KeywordIndex)(nil)
