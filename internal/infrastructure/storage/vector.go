package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/domain/services"
)

// AddDocument upserts a document and its embedding vector.
func (d *DB) AddDocument(ctx context.Context, doc models.Document, embedding []float32) error {
	if len(embedding) == 0 {
		return models.ErrEmptyVector
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents (id, text, table_name, source_type)
		VALUES (?, ?, ?, ?)
	`, doc.ID, doc.Text, doc.TableName, doc.SourceType)
	if err != nil {
		return fmt.Errorf("failed to store document %s: %w", doc.ID, err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO vectors (id, embedding, dimension)
		VALUES (?, ?, ?)
	`, doc.ID, encodeVector(embedding), len(embedding))
	if err != nil {
		return fmt.Errorf("failed to store vector %s: %w", doc.ID, err)
	}
	return nil
}

// Search returns the limit most similar documents to the query
// embedding, highest cosine similarity first. Similarity is computed
// in process; the store stays a plain key/value layout.
func (d *DB) Search(ctx context.Context, embedding []float32, limit int) ([]models.Document, error) {
	if len(embedding) == 0 {
		return nil, models.ErrEmptyVector
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT doc.id, doc.text, doc.table_name, doc.source_type, v.embedding, v.dimension
		FROM vectors v
		JOIN documents doc ON v.id = doc.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	defer rows.Close()

	queryNorm := vectorNorm(embedding)
	scored := make([]models.Document, 0, 16)

	for rows.Next() {
		var (
			doc       models.Document
			blob      []byte
			dimension int
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &doc.TableName, &doc.SourceType, &blob, &dimension); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}

		stored, err := decodeVector(blob, dimension)
		if err != nil || len(stored) != len(embedding) {
			// Dimension drift between embedder generations. Skip the
			// row instead of failing the whole search.
			continue
		}

		doc.Similarity = cosineSimilarity(embedding, stored, queryNorm)
		scored = append(scored, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vectors: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func cosineSimilarity(query, stored []float32, queryNorm float64) float64 {
	var dot, storedNorm float64
	for i := range query {
		dot += float64(query[i]) * float64(stored[i])
		storedNorm += float64(stored[i]) * float64(stored[i])
	}
	storedNorm = math.Sqrt(storedNorm)
	if queryNorm == 0 || storedNorm == 0 {
		return 0.0
	}
	return dot / (queryNorm * storedNorm)
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// encodeVector serializes a vector as little-endian float32.
func encodeVector(v []float32) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(len(v) * 4)
	for _, x := range v {
		binary.Write(buf, binary.LittleEndian, x)
	}
	return buf.Bytes()
}

// decodeVector deserializes a little-endian float32 vector.
func decodeVector(blob []byte, dimension int) ([]float32, error) {
	if len(blob) != dimension*4 {
		return nil, fmt.Errorf("%w: blob holds %d bytes, want %d", models.ErrDimension, len(blob), dimension*4)
	}
	v := make([]float32, dimension)
	reader := bytes.NewReader(blob)
	if err := binary.Read(reader, binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("failed to decode vector: %w", err)
	}
	return v, nil
}

var _ services.VectorSearcher = (*DB)(nil)
